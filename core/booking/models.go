package booking

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/plan"
)

// Status is where a booking stands.
type Status string

// Statuses
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

const defaultDuration = 30 // minutes

var (
	Statuses = []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

	// statuses counted against the monthly allowance of a plan
	activeStatuses = []Status{StatusPending, StatusConfirmed, StatusCompleted}
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) In(statuses ...Status) bool {
	for _, st := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Booking is a consultation, assessment or lesson reserved for a student.
type Booking struct {
	ID              string           `json:"id"`
	StudentID       string           `json:"student_id"`
	TeacherID       *string          `json:"teacher_id"`
	BookingType     plan.BookingType `json:"booking_type"`
	ScheduledDate   time.Time        `json:"scheduled_date"` // UTC
	DurationMinutes int              `json:"duration_minutes"`
	Status          Status           `json:"status"`
	Notes           *string          `json:"notes"`
	CreatedAt       time.Time        `json:"created_at"` // UTC
	UpdatedAt       time.Time        `json:"updated_at"` // UTC
}

// IsUpcoming reports whether b is still to happen at `now`.
func (b *Booking) IsUpcoming(now time.Time) bool {
	return b.ScheduledDate.After(now) && b.Status.In(StatusPending, StatusConfirmed)
}

// NewBooking contains the information required to create a Booking.
// TeacherID, DurationMinutes and Status are only honoured for admins.
type NewBooking struct {
	StudentID       string           `json:"student_id" validate:"required"`
	TeacherID       *string          `json:"teacher_id" validate:"omitempty,uuid"`
	BookingType     plan.BookingType `json:"booking_type" validate:"required,bookingtype"`
	ScheduledDate   time.Time        `json:"scheduled_date" validate:"required"`
	DurationMinutes int              `json:"duration_minutes" validate:"omitempty,min=15,max=240"`
	Status          *Status          `json:"status" validate:"omitempty,status"`
	Notes           *string          `json:"notes" validate:"omitempty,max=2000"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.StudentID = core.CleanString(nb.StudentID)
	nb.TeacherID = core.CleanStringPtr(nb.TeacherID)
	nb.BookingType = plan.BookingType(core.CleanString(string(nb.BookingType), true /* lower */))
	nb.Notes = core.CleanStringPtr(nb.Notes)
	nb.ScheduledDate = nb.ScheduledDate.UTC()
	return validate.Struct(nb)
}

// UpdateBooking defines what an admin may change on a Booking.
// An empty TeacherID unassigns the teacher.
type UpdateBooking struct {
	TeacherID       *string           `json:"teacher_id" validate:"omitempty,uuid"`
	BookingType     *plan.BookingType `json:"booking_type" validate:"omitempty,bookingtype"`
	ScheduledDate   *time.Time        `json:"scheduled_date"`
	DurationMinutes *int              `json:"duration_minutes" validate:"omitempty,min=15,max=240"`
	Status          *Status           `json:"status" validate:"omitempty,status"`
	Notes           *string           `json:"notes" validate:"omitempty,max=2000"`
}

func (ub *UpdateBooking) Validate(validate *validator.Validate) error {
	if ub.Status != nil {
		st := Status(core.CleanString(string(*ub.Status), true /* lower */))
		ub.Status = &st
	}
	if ub.BookingType != nil {
		bt := plan.BookingType(core.CleanString(string(*ub.BookingType), true /* lower */))
		ub.BookingType = &bt
	}

	checked := *ub
	if ub.TeacherID != nil {
		tid := core.CleanString(*ub.TeacherID)
		ub.TeacherID = &tid
		checked.TeacherID = core.CleanStringPtr(&tid) // unassigning is not checked as a uuid
	}
	return validate.Struct(checked)
}

type StatusChange struct {
	Status Status `json:"status" validate:"required,status"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Status = Status(core.CleanString(string(sc.Status), true /* lower */))
	return validate.Struct(sc)
}

// QueryFilter selects bookings. ScheduledTo is exclusive.
type QueryFilter struct {
	Statuses      []Status           `query:"status"`
	BookingTypes  []plan.BookingType `query:"booking_type"`
	StudentIDs    []string           `query:"student_id"`
	TeacherIDs    []string           `query:"-"`
	ScheduledFrom time.Time          `query:"-"`
	ScheduledTo   time.Time          `query:"-"`
	Limit         int                `query:"-"` // 0 lists everything
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Statuses == nil && qf.BookingTypes == nil && qf.StudentIDs == nil && qf.TeacherIDs == nil &&
		qf.ScheduledFrom.IsZero() && qf.ScheduledTo.IsZero()
}

// Match applies the filter to b the way repositories do.
func (qf *QueryFilter) Match(b Booking) bool {
	if qf == nil {
		return true
	}
	if len(qf.Statuses) > 0 && !b.Status.In(qf.Statuses...) {
		return false
	}
	if len(qf.BookingTypes) > 0 {
		found := false
		for _, bt := range qf.BookingTypes {
			if b.BookingType == bt {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.StudentIDs != nil && !containsString(qf.StudentIDs, b.StudentID) {
		return false
	}
	if qf.TeacherIDs != nil && (b.TeacherID == nil || !containsString(qf.TeacherIDs, *b.TeacherID)) {
		return false
	}
	if !qf.ScheduledFrom.IsZero() && b.ScheduledDate.Before(qf.ScheduledFrom) {
		return false
	}
	if !qf.ScheduledTo.IsZero() && !b.ScheduledDate.Before(qf.ScheduledTo) {
		return false
	}
	return true
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
