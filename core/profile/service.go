package profile

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/plan"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("profile not found")
	ErrEmailExists          = errors.New("a profile with this email already exists")
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrForbidden            = core.NewForbiddenError("permission denied")
	ErrSelfDelete           = core.NewForbiddenError("you cannot delete your own profile")
	ErrSelfDemote           = core.NewForbiddenError("you cannot change your own role")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs []string, exec ...core.DBExecutor) error
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		// QueryProfiles applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Email, FullName or Phone.
		QueryProfiles(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Profile, error)
		CountProfiles(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		GetProfile(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Profile, error)
		UpdateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		DeleteProfilesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	// OwnedRecords manages the records hanging off profiles.
	OwnedRecords interface {
		// EnsureSelfStudent creates the student row of a self-registered student (id = parent_id = p.ID).
		EnsureSelfStudent(ctx context.Context, p Profile, exec core.DBExecutor) error
		// SyncSelfStudentPlan copies p.PlanType onto its self-registered student row, if any.
		SyncSelfStudentPlan(ctx context.Context, p Profile, exec core.DBExecutor) error
		// DeleteOwnedBy removes the students of the profiles with their bookings and clears their teacher assignments.
		DeleteOwnedBy(ctx context.Context, profileIDs []string, exec core.DBExecutor) error
	}

	// SessionRevoker ends every session of a profile.
	SessionRevoker interface {
		DeleteByProfile(ctx context.Context, profileID string) error
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		owned    OwnedRecords
		sessions SessionRevoker
		mailSvc  core.EmailService
		logger   core.Logger
		tokens   *tokenGenerator
		async    bool
	}
)

func NewService(
	conf *core.Config,
	tx core.Transactor,
	repo Repository,
	owned OwnedRecords,
	sessions SessionRevoker,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(owned, "owned"),
		vala.IsNotNil(sessions, "sessions"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{
		tx:       tx,
		repo:     repo,
		owned:    owned,
		sessions: sessions,
		mailSvc:  mailSvc,
		logger:   logger,
		tokens:   newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		async:    !conf.TestMode,
	}
}

// CheckUniqueness reports an email already in use as a field error.
func (svc *Service) CheckUniqueness(email string, excludedIDs ...string) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedIDs); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// SignUp creates the profile of a visitor, on the free plan.
// Self-registered students also get their own student row; both writes share one transaction.
func (svc *Service) SignUp(ctx context.Context, su SignUp) (Profile, error) {
	now := time.Now().UTC()
	fullName := su.FullName
	p := Profile{
		ID:        uuid.New().String(),
		Email:     su.Email,
		FullName:  &fullName,
		Phone:     su.Phone,
		Role:      su.Role,
		PlanType:  plan.Free,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.SetPassword(su.Password); err != nil {
		return Profile{}, errors.Wrap(err, "setting password")
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.CreateProfile(ctx, p, exec); err != nil {
			if err == ErrEmailExists {
				return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
			}
			return errors.Wrap(err, "creating profile")
		}
		if p.IsStudent() {
			if err = svc.owned.EnsureSelfStudent(ctx, p, exec); err != nil {
				return errors.Wrap(err, "creating student")
			}
		}
		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	svc.send(svc.welcomeMail(p))
	return p, nil
}

// Authenticate checks the credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Profile, error) {
	p, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return Profile{}, ErrAuthenticationFailed
		}
		return Profile{}, errors.Wrap(err, "finding profile by email")
	}
	if err = p.CheckPassword(pwd); err != nil {
		return Profile{}, ErrAuthenticationFailed
	}

	p.LastLogin = time.Now().UTC()
	if p, err = svc.repo.UpdateProfile(ctx, p); err != nil {
		return Profile{}, errors.Wrap(err, "setting last login")
	}
	return p, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Profile, error) {
	return svc.repo.GetProfile(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Profile, error) {
	return svc.repo.QueryProfiles(ctx, filter, ordering)
}

// Update applies up to the profile `id` on behalf of actor.
// Profiles may change their own name and phone; admins may change anything but their own role.
func (svc *Service) Update(ctx context.Context, actor Profile, id string, up UpdateProfile) (Profile, error) {
	if !(actor.ID == id || actor.IsAdmin()) {
		return Profile{}, ErrNotFound
	}
	if !actor.IsAdmin() && (up.Role != nil || up.PlanType != nil) {
		return Profile{}, ErrForbidden
	}
	if actor.ID == id && up.Role != nil && *up.Role != actor.Role {
		return Profile{}, ErrSelfDemote
	}

	var updated Profile
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		p, err := svc.repo.GetProfile(ctx, GetFilter{ID: id}, exec)
		if err != nil {
			return err
		}
		planChanged := up.PlanType != nil && *up.PlanType != p.PlanType

		if up.FullName != nil {
			p.FullName = up.FullName
		}
		if up.Phone != nil {
			p.Phone = up.Phone
		}
		if up.Role != nil {
			p.Role = *up.Role
		}
		if up.PlanType != nil {
			p.PlanType = *up.PlanType
		}
		p.UpdatedAt = time.Now().UTC()

		if updated, err = svc.repo.UpdateProfile(ctx, p, exec); err != nil {
			return errors.Wrap(err, "updating profile")
		}
		if updated.IsStudent() {
			if err = svc.owned.EnsureSelfStudent(ctx, updated, exec); err != nil {
				return errors.Wrap(err, "ensuring student")
			}
			if planChanged {
				if err = svc.owned.SyncSelfStudentPlan(ctx, updated, exec); err != nil {
					return errors.Wrap(err, "syncing student plan")
				}
			}
		}
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return updated, nil
}

// Delete removes profiles with everything they own, in one transaction. Admins only; never oneself.
func (svc *Service) Delete(ctx context.Context, actor Profile, ids ...string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	for _, id := range ids {
		if id == actor.ID {
			return ErrSelfDelete
		}
	}
	if len(ids) == 0 {
		return nil
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.owned.DeleteOwnedBy(ctx, ids, exec); err != nil {
			return errors.Wrap(err, "deleting owned records")
		}
		return svc.repo.DeleteProfilesByID(ctx, ids, exec)
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := svc.sessions.DeleteByProfile(ctx, id); err != nil {
			svc.logger.Error("revoking sessions", errors.Wrap(err, "revoking sessions"), map[string]interface{}{"profile_id": id})
		}
	}
	return nil
}

// SetPassword replaces the password of the profile with this email.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	p, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = p.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	p.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateProfile(ctx, p)
	return err
}

// RequestPasswordReset mails a password reset link to the profile with this email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	p, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	msg, err := svc.passwordResetMail(p)
	if err != nil {
		return err
	}
	svc.send(msg)
	return nil
}

// ResetPassword sets a new password when the reset token is valid.
func (svc *Service) ResetPassword(ctx context.Context, data ResetProfilePassword) error {
	invalidErr := core.NewValidationError(errors.New("invalid reset link"))

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidErr
	}
	p, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return invalidErr
		}
		return errors.Wrap(err, "finding profile by ID")
	}

	switch err = svc.tokens.verifyToken(p, data.Token); err {
	case nil:
	case errInvalidToken:
		return invalidErr
	case errTokenExpired:
		return core.NewValidationError(errors.New("reset link has expired"))
	default:
		return errors.Wrap(err, "verifying token")
	}

	if err = CheckPassword(data.Password, p); err != nil {
		return err
	}
	if err = p.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	p.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateProfile(ctx, p); err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return svc.sessions.DeleteByProfile(ctx, p.ID)
}

func (svc *Service) passwordResetMail(p Profile) (*core.EmailMessage, error) {
	token, err := svc.tokens.makeToken(p)
	if err != nil {
		return nil, errors.Wrap(err, "making token")
	}
	return &core.EmailMessage{
		To:           []mail.Address{p.Address()},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  p.Name(),
			"UID":   EncodeUID(p),
			"Token": token,
		},
	}, nil
}

func (svc *Service) welcomeMail(p Profile) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{p.Address()},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: map[string]string{
			"Name":      p.Name(),
			"PlanLabel": p.PlanType.Label(),
		},
	}
}

// send mails in the background, except in test mode where delivery is synchronous.
func (svc *Service) send(msg *core.EmailMessage) {
	if svc.async {
		go svc.mailSvc.SendMessages(msg)
		return
	}
	svc.mailSvc.SendMessages(msg)
}
