package student

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/profile"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("student not found")
	ErrForbidden      = core.NewForbiddenError("permission denied")
	ErrParentNotFound = errors.New("parent not found")
	ErrSelfPlan       = errors.New("the plan of a self-registered student follows its profile")
)

var _ profile.OwnedRecords = (*Service)(nil)

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		// LockStudent is GetStudent holding the student row until exec's transaction ends.
		LockStudent(ctx context.Context, id string, exec core.DBExecutor) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of FullName or GradeLevel.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		CountStudents(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	// BookingCleaner removes the bookings attached to students and teachers being deleted.
	BookingCleaner interface {
		DeleteBookingsByStudent(ctx context.Context, studentIDs []string, exec ...core.DBExecutor) error
		UnassignTeacher(ctx context.Context, teacherIDs []string, exec ...core.DBExecutor) error
	}

	ProfileGetter interface {
		GetProfile(ctx context.Context, filter profile.GetFilter, exec ...core.DBExecutor) (profile.Profile, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		bookings BookingCleaner
		profiles ProfileGetter
	}
)

func NewService(tx core.Transactor, repo Repository, bookings BookingCleaner, profiles ProfileGetter) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(bookings, "bookings"),
		vala.IsNotNil(profiles, "profiles"),
	).CheckAndPanic()

	return &Service{tx: tx, repo: repo, bookings: bookings, profiles: profiles}
}

// CanView reports whether actor may see s: admins see all students, families their own.
func CanView(actor profile.Profile, s Student) bool {
	return actor.IsAdmin() || (s.ParentID == actor.ID && actor.Role.In(profile.SignUpRoles...))
}

// Create adds a student. Admins may pick the parent and the plan;
// parents always own what they create and start on the free plan.
func (svc *Service) Create(ctx context.Context, actor profile.Profile, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	s := Student{
		ID:           uuid.New().String(),
		ParentID:     actor.ID,
		FullName:     ns.FullName,
		GradeLevel:   ns.GradeLevel,
		CurrentLevel: ns.CurrentLevel,
		PlanType:     plan.Free,
		Goals:        ns.Goals,
		Notes:        ns.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.CurrentLevel == "" {
		s.CurrentLevel = LevelLowerSecondary
	}

	switch {
	case actor.IsAdmin():
		if ns.ParentID == "" {
			return Student{}, core.NewFieldError("parent_id", "this field is required")
		}
		s.ParentID = ns.ParentID
		if ns.PlanType != nil {
			s.PlanType = *ns.PlanType
		}
	case actor.IsParent():
		if ns.PlanType != nil && *ns.PlanType != plan.Free {
			return Student{}, ErrForbidden
		}
	default:
		return Student{}, ErrForbidden
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if s.ParentID != actor.ID {
			parent, err := svc.profiles.GetProfile(ctx, profile.GetFilter{ID: s.ParentID}, exec)
			if err != nil {
				if core.IsNotFound(err) {
					return core.NewFieldError("parent_id", ErrParentNotFound.Error())
				}
				return errors.Wrap(err, "finding parent")
			}
			if !parent.IsParent() {
				return core.NewFieldError("parent_id", "profile is not a parent")
			}
		}

		var err error
		s, err = svc.repo.CreateStudent(ctx, s, exec)
		return errors.Wrap(err, "creating student")
	})
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

// Get returns the student `id` when actor may see it.
func (svc *Service) Get(ctx context.Context, actor profile.Profile, id string) (Student, error) {
	s, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !CanView(actor, s) {
		return Student{}, ErrNotFound
	}
	return s, nil
}

// Query lists the students actor may see: all of them for admins, their own for families.
func (svc *Service) Query(ctx context.Context, actor profile.Profile, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case actor.IsAdmin():
	case actor.Role.In(profile.SignUpRoles...):
		filter.ParentIDs = []string{actor.ID}
	default:
		return []Student{}, nil
	}
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

// Update applies us to the student `id`. Owning parents may edit everything but the plan.
func (svc *Service) Update(ctx context.Context, actor profile.Profile, id string, us UpdateStudent) (Student, error) {
	if !actor.IsAdmin() && us.PlanType != nil {
		return Student{}, ErrForbidden
	}

	var updated Student
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		s, err := svc.repo.GetStudent(ctx, id, exec)
		if err != nil {
			return err
		}
		if !CanView(actor, s) {
			return ErrNotFound
		}
		if us.PlanType != nil && *us.PlanType != s.PlanType && s.IsSelfRegistered() {
			return core.NewFieldError("plan_type", ErrSelfPlan.Error())
		}

		if us.FullName != nil {
			s.FullName = *us.FullName
		}
		if us.GradeLevel != nil {
			s.GradeLevel = *us.GradeLevel
		}
		if us.CurrentLevel != nil {
			s.CurrentLevel = *us.CurrentLevel
		}
		if us.PlanType != nil {
			s.PlanType = *us.PlanType
		}
		if us.Goals != nil {
			s.Goals = core.CleanStringPtr(us.Goals)
		}
		if us.Notes != nil {
			s.Notes = core.CleanStringPtr(us.Notes)
		}
		s.UpdatedAt = time.Now().UTC()

		updated, err = svc.repo.UpdateStudent(ctx, s, exec)
		return errors.Wrap(err, "updating student")
	})
	if err != nil {
		return Student{}, err
	}
	return updated, nil
}

// Delete removes students with their bookings in one transaction.
// Families may delete the students they own, except their self-registered row.
func (svc *Service) Delete(ctx context.Context, actor profile.Profile, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if !(actor.IsAdmin() || actor.IsParent()) {
		return ErrForbidden
	}

	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		for _, id := range ids {
			s, err := svc.repo.GetStudent(ctx, id, exec)
			if err != nil {
				return err
			}
			if !CanView(actor, s) {
				return ErrNotFound
			}
			if !actor.IsAdmin() && s.IsSelfRegistered() {
				return ErrForbidden
			}
		}
		if err := svc.bookings.DeleteBookingsByStudent(ctx, ids, exec); err != nil {
			return errors.Wrap(err, "deleting bookings")
		}
		return errors.Wrap(svc.repo.DeleteStudentsByID(ctx, ids, exec), "deleting students")
	})
}

// EnsureSelfStudent creates the student row of a self-registered student, unless it exists.
func (svc *Service) EnsureSelfStudent(ctx context.Context, p profile.Profile, exec core.DBExecutor) error {
	if _, err := svc.repo.GetStudent(ctx, p.ID, exec); !core.IsNotFound(err) {
		return err
	}

	now := time.Now().UTC()
	notes := selfNotes
	_, err := svc.repo.CreateStudent(ctx, Student{
		ID:           p.ID,
		ParentID:     p.ID,
		FullName:     p.Name(),
		GradeLevel:   selfGradeLevel,
		CurrentLevel: LevelLowerSecondary,
		PlanType:     p.PlanType,
		Notes:        &notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, exec)
	return err
}

// SyncSelfStudentPlan copies the plan of p onto its self-registered student row.
func (svc *Service) SyncSelfStudentPlan(ctx context.Context, p profile.Profile, exec core.DBExecutor) error {
	s, err := svc.repo.GetStudent(ctx, p.ID, exec)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return err
	}
	if s.PlanType == p.PlanType {
		return nil
	}
	s.PlanType = p.PlanType
	s.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateStudent(ctx, s, exec)
	return err
}

// DeleteOwnedBy removes the students owned by the profiles, their bookings,
// and clears the profiles from the bookings they teach.
func (svc *Service) DeleteOwnedBy(ctx context.Context, profileIDs []string, exec core.DBExecutor) error {
	owned, err := svc.repo.QueryStudents(ctx, &QueryFilter{ParentIDs: profileIDs}, nil, exec)
	if err != nil {
		return errors.Wrap(err, "querying owned students")
	}
	if len(owned) > 0 {
		ids := make([]string, 0, len(owned))
		for _, s := range owned {
			ids = append(ids, s.ID)
		}
		if err = svc.bookings.DeleteBookingsByStudent(ctx, ids, exec); err != nil {
			return errors.Wrap(err, "deleting bookings")
		}
		if err = svc.repo.DeleteStudentsByID(ctx, ids, exec); err != nil {
			return errors.Wrap(err, "deleting students")
		}
	}
	return errors.Wrap(svc.bookings.UnassignTeacher(ctx, profileIDs, exec), "unassigning teacher")
}
