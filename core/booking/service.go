package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/student"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("booking not found")
	ErrForbidden        = core.NewForbiddenError("permission denied")
	ErrStudentNotFound  = errors.New("student not found")
	ErrTeacherNotFound  = errors.New("teacher not found")
	ErrTypeNotInPlan    = errors.New("booking type is not included in the student's plan")
	ErrMonthlyLimit     = errors.New("the student's plan allows no more bookings this month")
	ErrCancelOnly       = core.NewForbiddenError("you can only cancel a booking")
	ErrStatusChangeDeny = core.NewForbiddenError("you cannot change the status of this booking")

	errInvalidStatus   = errors.New(statusText)
	errInvalidDuration = errors.New("duration must be a positive number of minutes")
)

var _ student.BookingCleaner = (Repository)(nil)

type (
	Repository interface {
		CreateBooking(ctx context.Context, b Booking, exec ...core.DBExecutor) (Booking, error)
		GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (Booking, error)
		QueryBookings(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Booking, error)
		CountBookings(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		UpdateBooking(ctx context.Context, b Booking, exec ...core.DBExecutor) (Booking, error)
		DeleteBookingsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
		DeleteBookingsByStudent(ctx context.Context, studentIDs []string, exec ...core.DBExecutor) error
		UnassignTeacher(ctx context.Context, teacherIDs []string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		students student.Repository
		profiles student.ProfileGetter
		nowFunc  func() time.Time
	}
)

func NewService(tx core.Transactor, repo Repository, students student.Repository, profiles student.ProfileGetter) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(students, "students"),
		vala.IsNotNil(profiles, "profiles"),
	).CheckAndPanic()

	return &Service{
		tx:       tx,
		repo:     repo,
		students: students,
		profiles: profiles,
		nowFunc:  time.Now,
	}
}

// Create books a session for a student.
//
// Families book for the students they own: the booking starts pending, lasts 30 minutes, has no teacher,
// and counts against the monthly allowance of the student's plan.
// Admins choose the status, duration and teacher, and are not bound by the allowance.
// The booking type must be part of the student's plan in every case.
func (svc *Service) Create(ctx context.Context, actor profile.Profile, nb NewBooking) (Booking, error) {
	if !(actor.IsAdmin() || actor.Role.In(profile.SignUpRoles...)) {
		return Booking{}, ErrForbidden
	}

	now := svc.nowFunc().UTC()
	b := Booking{
		ID:              uuid.New().String(),
		StudentID:       nb.StudentID,
		BookingType:     nb.BookingType,
		ScheduledDate:   nb.ScheduledDate.UTC(),
		DurationMinutes: defaultDuration,
		Status:          StatusPending,
		Notes:           nb.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if actor.IsAdmin() {
		b.TeacherID = nb.TeacherID
		if nb.DurationMinutes > 0 {
			b.DurationMinutes = nb.DurationMinutes
		}
		if nb.Status != nil {
			b.Status = *nb.Status
		}
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		// concurrent bookings of the student wait here, so the allowance is counted once at a time
		st, err := svc.students.LockStudent(ctx, b.StudentID, exec)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("student_id", ErrStudentNotFound.Error())
			}
			return errors.Wrap(err, "finding student")
		}
		if !student.CanView(actor, st) {
			return core.NewFieldError("student_id", ErrStudentNotFound.Error())
		}

		if !plan.Allows(st.PlanType, b.BookingType) {
			return core.NewFieldError("booking_type", ErrTypeNotInPlan.Error())
		}

		if actor.IsAdmin() {
			if err = svc.checkTeacher(ctx, b.TeacherID, exec); err != nil {
				return err
			}
		} else if err = svc.checkAllowance(ctx, st, b.ScheduledDate, exec); err != nil {
			return err
		}

		b, err = svc.repo.CreateBooking(ctx, b, exec)
		return errors.Wrap(err, "creating booking")
	})
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}

// checkAllowance fails when st already used its plan's bookings for the month of `at`.
func (svc *Service) checkAllowance(ctx context.Context, st student.Student, at time.Time, exec core.DBExecutor) error {
	from, to := core.MonthBounds(at)
	count, err := svc.repo.CountBookings(ctx, &QueryFilter{
		StudentIDs:    []string{st.ID},
		Statuses:      activeStatuses,
		ScheduledFrom: from,
		ScheduledTo:   to,
	}, exec)
	if err != nil {
		return errors.Wrap(err, "counting bookings")
	}
	if limit := plan.FeaturesFor(st.PlanType).MaxBookingsPerMonth; count >= limit {
		return core.NewValidationError(
			ErrMonthlyLimit,
			core.FieldError{Field: "scheduled_date", Error: fmt.Sprintf("%s (%d/%d)", ErrMonthlyLimit, count, limit)},
		)
	}
	return nil
}

func (svc *Service) checkTeacher(ctx context.Context, teacherID *string, exec core.DBExecutor) error {
	if teacherID == nil {
		return nil
	}
	teacher, err := svc.profiles.GetProfile(ctx, profile.GetFilter{ID: *teacherID}, exec)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("teacher_id", ErrTeacherNotFound.Error())
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !teacher.IsTeacher() {
		return core.NewFieldError("teacher_id", ErrTeacherNotFound.Error())
	}
	return nil
}

// canView reports whether actor may see b: admins see all, teachers what they teach,
// families the bookings of their students.
func (svc *Service) canView(ctx context.Context, actor profile.Profile, b Booking, exec ...core.DBExecutor) (bool, error) {
	switch {
	case actor.IsAdmin():
		return true, nil
	case actor.IsTeacher():
		return b.TeacherID != nil && *b.TeacherID == actor.ID, nil
	}
	st, err := svc.students.GetStudent(ctx, b.StudentID, exec...)
	if err != nil {
		if core.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "finding student")
	}
	return student.CanView(actor, st), nil
}

// Get returns the booking `id` when actor may see it.
func (svc *Service) Get(ctx context.Context, actor profile.Profile, id string) (Booking, error) {
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	ok, err := svc.canView(ctx, actor, b)
	if err != nil {
		return Booking{}, err
	}
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

// Query lists the bookings actor may see, by scheduled date unless ordered otherwise.
func (svc *Service) Query(ctx context.Context, actor profile.Profile, filter *QueryFilter, ordering []core.DBOrdering) ([]Booking, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "scheduled_date", Ascending: true}}
	}

	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		filter.TeacherIDs = []string{actor.ID}
	default:
		owned, err := svc.students.QueryStudents(ctx, &student.QueryFilter{ParentIDs: []string{actor.ID}}, nil)
		if err != nil {
			return nil, errors.Wrap(err, "querying owned students")
		}
		ids := make([]string, 0, len(owned))
		for _, st := range owned {
			if filter.StudentIDs == nil || containsString(filter.StudentIDs, st.ID) {
				ids = append(ids, st.ID)
			}
		}
		if len(ids) == 0 {
			return []Booking{}, nil
		}
		filter.StudentIDs = ids
	}
	return svc.repo.QueryBookings(ctx, filter, ordering)
}

// Update applies ub to the booking `id`. Admins only.
// The booking type is checked against the student's plan again when it changes.
func (svc *Service) Update(ctx context.Context, actor profile.Profile, id string, ub UpdateBooking) (Booking, error) {
	if !actor.IsAdmin() {
		return Booking{}, ErrForbidden
	}

	var updated Booking
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		b, err := svc.repo.GetBooking(ctx, id, exec)
		if err != nil {
			return err
		}

		if ub.BookingType != nil && *ub.BookingType != b.BookingType {
			st, err := svc.students.GetStudent(ctx, b.StudentID, exec)
			if err != nil {
				return errors.Wrap(err, "finding student")
			}
			if !plan.Allows(st.PlanType, *ub.BookingType) {
				return core.NewFieldError("booking_type", ErrTypeNotInPlan.Error())
			}
			b.BookingType = *ub.BookingType
		}
		if ub.TeacherID != nil {
			if *ub.TeacherID == "" {
				b.TeacherID = nil
			} else {
				if err = svc.checkTeacher(ctx, ub.TeacherID, exec); err != nil {
					return err
				}
				b.TeacherID = ub.TeacherID
			}
		}
		if ub.ScheduledDate != nil {
			b.ScheduledDate = ub.ScheduledDate.UTC()
		}
		if ub.DurationMinutes != nil {
			if *ub.DurationMinutes <= 0 {
				return core.NewFieldError("duration_minutes", errInvalidDuration.Error())
			}
			b.DurationMinutes = *ub.DurationMinutes
		}
		if ub.Status != nil {
			if !ub.Status.Valid() {
				return core.NewFieldError("status", errInvalidStatus.Error())
			}
			b.Status = *ub.Status
		}
		if ub.Notes != nil {
			b.Notes = core.CleanStringPtr(ub.Notes)
		}
		b.UpdatedAt = svc.nowFunc().UTC()

		updated, err = svc.repo.UpdateBooking(ctx, b, exec)
		return errors.Wrap(err, "updating booking")
	})
	if err != nil {
		return Booking{}, err
	}
	return updated, nil
}

// SetStatus moves the booking `id` to status.
// Admins and the assigned teacher may set any status; the owning family may only cancel.
func (svc *Service) SetStatus(ctx context.Context, actor profile.Profile, id string, status Status) (Booking, error) {
	if !status.Valid() {
		return Booking{}, core.NewFieldError("status", errInvalidStatus.Error())
	}

	var updated Booking
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		b, err := svc.repo.GetBooking(ctx, id, exec)
		if err != nil {
			return err
		}
		ok, err := svc.canView(ctx, actor, b, exec)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}

		switch {
		case actor.IsAdmin(), actor.IsTeacher():
		case actor.Role.In(profile.SignUpRoles...):
			if status != StatusCancelled {
				return ErrCancelOnly
			}
		default:
			return ErrStatusChangeDeny
		}

		b.Status = status
		b.UpdatedAt = svc.nowFunc().UTC()
		updated, err = svc.repo.UpdateBooking(ctx, b, exec)
		return errors.Wrap(err, "updating booking status")
	})
	if err != nil {
		return Booking{}, err
	}
	return updated, nil
}

// Delete removes bookings. Admins only.
func (svc *Service) Delete(ctx context.Context, actor profile.Profile, ids ...string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if len(ids) == 0 {
		return nil
	}
	return svc.repo.DeleteBookingsByID(ctx, ids)
}
