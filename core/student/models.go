package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/plan"
)

// Level is the school level a student currently follows.
type Level string

// Levels
const (
	LevelLowerSecondary Level = "ungdomsskole"
	LevelUpperSecondary Level = "videregående"
	LevelR1R2           Level = "r1-r2"
)

var (
	Levels = []LevelInfo{
		{Name: "Ungdomsskole", Value: LevelLowerSecondary},
		{Name: "Videregående", Value: LevelUpperSecondary},
		{Name: "R1/R2", Value: LevelR1R2},
	}

	// defaults of the student row created for a self-registered student
	selfGradeLevel = "Ikke oppgitt"
	selfNotes      = "Selvregistrert elev"
)

type LevelInfo struct {
	Name  string `json:"name"`
	Value Level  `json:"value"`
}

func (l Level) Valid() bool {
	switch l {
	case LevelLowerSecondary, LevelUpperSecondary, LevelR1R2:
		return true
	}
	return false
}

// Student is a learner followed by the business, owned by a parent profile
// (or by itself when the student registered on their own).
type Student struct {
	ID           string    `json:"id"`
	ParentID     string    `json:"parent_id"`
	FullName     string    `json:"full_name"`
	GradeLevel   string    `json:"grade_level"`
	CurrentLevel Level     `json:"current_level"`
	PlanType     plan.Tier `json:"plan_type"`
	Goals        *string   `json:"goals"`
	Notes        *string   `json:"notes"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// IsSelfRegistered reports whether the student owns itself.
func (s *Student) IsSelfRegistered() bool { return s.ID == s.ParentID }

// NewStudent contains the information required to create a Student.
// ParentID and PlanType are only honoured for admins.
type NewStudent struct {
	ParentID     string     `json:"parent_id" validate:"omitempty,uuid"`
	FullName     string     `json:"full_name" validate:"required,max=255"`
	GradeLevel   string     `json:"grade_level" validate:"required,max=64"`
	CurrentLevel Level      `json:"current_level" validate:"omitempty,level"`
	PlanType     *plan.Tier `json:"plan_type" validate:"omitempty,plantype"`
	Goals        *string    `json:"goals" validate:"omitempty,max=2000"`
	Notes        *string    `json:"notes" validate:"omitempty,max=2000"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.ParentID = core.CleanString(ns.ParentID)
	ns.FullName = core.CleanString(ns.FullName)
	ns.GradeLevel = core.CleanString(ns.GradeLevel)
	ns.CurrentLevel = Level(core.CleanString(string(ns.CurrentLevel), true /* lower */))
	ns.Goals = core.CleanStringPtr(ns.Goals)
	ns.Notes = core.CleanStringPtr(ns.Notes)
	if ns.CurrentLevel == "" {
		ns.CurrentLevel = LevelLowerSecondary
	}
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// PlanType can only be changed by admins.
type UpdateStudent struct {
	FullName     *string    `json:"full_name" validate:"omitempty,max=255"`
	GradeLevel   *string    `json:"grade_level" validate:"omitempty,max=64"`
	CurrentLevel *Level     `json:"current_level" validate:"omitempty,level"`
	PlanType     *plan.Tier `json:"plan_type" validate:"omitempty,plantype"`
	Goals        *string    `json:"goals" validate:"omitempty,max=2000"`
	Notes        *string    `json:"notes" validate:"omitempty,max=2000"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.FullName = core.CleanStringPtr(us.FullName)
	us.GradeLevel = core.CleanStringPtr(us.GradeLevel)
	return validate.Struct(us)
}

type QueryFilter struct {
	Search    string      `query:"search"`
	Levels    []Level     `query:"current_level"`
	PlanTypes []plan.Tier `query:"plan_type"`
	ParentIDs []string    `query:"parent_id"`
	IDs       []string    `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Levels == nil && qf.PlanTypes == nil && qf.ParentIDs == nil && qf.IDs == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match applies the filter to s the way repositories do.
func (qf *QueryFilter) Match(s Student) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" && !core.ContainsFold(qf.Search, s.FullName, s.GradeLevel) {
		return false
	}
	if len(qf.Levels) > 0 && !containsLevel(qf.Levels, s.CurrentLevel) {
		return false
	}
	if len(qf.PlanTypes) > 0 && !containsTier(qf.PlanTypes, s.PlanType) {
		return false
	}
	if len(qf.ParentIDs) > 0 && !containsString(qf.ParentIDs, s.ParentID) {
		return false
	}
	if qf.IDs != nil && !containsString(qf.IDs, s.ID) {
		return false
	}
	return true
}

func containsLevel(levels []Level, l Level) bool {
	for _, lvl := range levels {
		if lvl == l {
			return true
		}
	}
	return false
}

func containsTier(tiers []plan.Tier, t plan.Tier) bool {
	for _, tier := range tiers {
		if tier == t {
			return true
		}
	}
	return false
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
