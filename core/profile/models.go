package profile

import (
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/plan"
)

// Role is what a profile may do in the application.
type Role string

// Roles
const (
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

var (
	AllRoles = []Role{RoleParent, RoleStudent, RoleTeacher, RoleAdmin}

	// Roles available through self sign-up. Teachers and admins are appointed by an admin.
	SignUpRoles = []Role{RoleParent, RoleStudent}

	Roles = []RoleInfo{
		{Name: "Forelder", Value: RoleParent},
		{Name: "Elev", Value: RoleStudent},
		{Name: "Lærer", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

func (r Role) Valid() bool {
	switch r {
	case RoleParent, RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// Priority orders roles by privilege: families < teachers < admins.
func (r Role) Priority() int {
	switch r {
	case RoleParent, RoleStudent:
		return 1
	case RoleTeacher:
		return 11
	case RoleAdmin:
		return 21
	}
	return 0
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Profile is the stored record of an authenticated principal.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     *string   `json:"full_name"`
	Phone        *string   `json:"phone"`
	Role         Role      `json:"role"`
	PlanType     plan.Tier `json:"plan_type"`
	PasswordHash []byte    `json:"-"`
	LastLogin    time.Time `json:"last_login"` // UTC
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (p *Profile) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	return nil
}

func (p *Profile) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(pwd))
}

func (p *Profile) IsAdmin() bool   { return p.Role == RoleAdmin }
func (p *Profile) IsTeacher() bool { return p.Role == RoleTeacher }
func (p *Profile) IsParent() bool  { return p.Role == RoleParent }
func (p *Profile) IsStudent() bool { return p.Role == RoleStudent }

// Name is the full name, or the email when none was given.
func (p *Profile) Name() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return p.Email
}

func (p *Profile) Address() mail.Address {
	var name string
	if p.FullName != nil {
		name = *p.FullName
	}
	return mail.Address{Name: name, Address: p.Email}
}

// SignUp contains the information a visitor submits to create their account.
type SignUp struct {
	Email           string  `json:"email" validate:"required,email"`
	FullName        string  `json:"full_name" validate:"required,max=255"`
	Phone           *string `json:"phone" validate:"omitempty,phone"`
	Role            Role    `json:"role" validate:"required,signuprole"`
	Password        string  `json:"password" validate:"required"`
	PasswordConfirm string  `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (su *SignUp) Validate(validate *validator.Validate, svc *Service) error {
	su.Email = core.CleanString(su.Email, true /* lower */)
	su.FullName = core.CleanString(su.FullName)
	su.Phone = core.CleanStringPtr(su.Phone)
	su.Role = Role(core.CleanString(string(su.Role), true /* lower */))

	if err := validate.Struct(su); err != nil {
		return err
	}
	return svc.CheckUniqueness(su.Email)
}

// UpdateProfile defines what information may be provided to modify an existing Profile.
// Role and PlanType can only be changed by admins.
type UpdateProfile struct {
	FullName *string    `json:"full_name" validate:"omitempty,max=255"`
	Phone    *string    `json:"phone" validate:"omitempty,phone"`
	Role     *Role      `json:"role" validate:"omitempty,role"`
	PlanType *plan.Tier `json:"plan_type" validate:"omitempty,plantype"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.FullName = core.CleanStringPtr(up.FullName)
	up.Phone = core.CleanStringPtr(up.Phone)
	return validate.Struct(up)
}

type ResetProfilePassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetProfilePassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search      string      `query:"search"`
	Roles       []Role      `query:"role"`
	PlanTypes   []plan.Tier `query:"plan_type"`
	CreatedFrom time.Time   `query:"-"`
	CreatedTo   time.Time   `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.PlanTypes == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match applies the filter to p the way repositories do.
func (qf *QueryFilter) Match(p Profile) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" && !core.ContainsFold(qf.Search, p.Email, deref(p.FullName), deref(p.Phone)) {
		return false
	}
	if len(qf.Roles) > 0 && !p.Role.In(qf.Roles...) {
		return false
	}
	if len(qf.PlanTypes) > 0 {
		found := false
		for _, t := range qf.PlanTypes {
			if p.PlanType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !qf.CreatedFrom.IsZero() && p.CreatedAt.Before(qf.CreatedFrom) {
		return false
	}
	if !qf.CreatedTo.IsZero() && p.CreatedAt.After(qf.CreatedTo) {
		return false
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
