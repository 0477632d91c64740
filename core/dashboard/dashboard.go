// Package dashboard gathers the role scoped overviews shown after login.
package dashboard

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/student"
)

const (
	recentBookingsLen = 10
	nextUpLen         = 5
)

type (
	AdminOverview struct {
		TotalUsers        int               `json:"total_users"`
		TotalStudents     int               `json:"total_students"`
		TotalBookings     int               `json:"total_bookings"`
		PendingBookings   int               `json:"pending_bookings"`
		CompletedBookings int               `json:"completed_bookings"`
		ActiveTeachers    int               `json:"active_teachers"`
		RecentBookings    []booking.Booking `json:"recent_bookings"`
	}

	MentorOverview struct {
		Bookings       []booking.Booking `json:"bookings"`
		Students       []student.Student `json:"students"`
		UniqueStudents int               `json:"unique_students"`
		Upcoming       int               `json:"upcoming"`
		Completed      int               `json:"completed"`
		Pending        int               `json:"pending"`
		Today          []booking.Booking `json:"today"`
		NextUp         []booking.Booking `json:"next_up"`
	}

	FamilyOverview struct {
		Profile  profile.Profile   `json:"profile"`
		Plan     plan.Features     `json:"plan"`
		Students []student.Student `json:"students"`
		Bookings []booking.Booking `json:"bookings"`
	}

	Service struct {
		profiles   profile.Repository
		students   student.Repository
		bookings   booking.Repository
		studentSvc *student.Service
		bookingSvc *booking.Service
		nowFunc    func() time.Time
	}
)

func NewService(
	profiles profile.Repository,
	students student.Repository,
	bookings booking.Repository,
	studentSvc *student.Service,
	bookingSvc *booking.Service,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(profiles, "profiles"),
		vala.IsNotNil(students, "students"),
		vala.IsNotNil(bookings, "bookings"),
		vala.IsNotNil(studentSvc, "studentSvc"),
		vala.IsNotNil(bookingSvc, "bookingSvc"),
	).CheckAndPanic()

	return &Service{
		profiles:   profiles,
		students:   students,
		bookings:   bookings,
		studentSvc: studentSvc,
		bookingSvc: bookingSvc,
		nowFunc:    time.Now,
	}
}

// Admin counts everything in the store and lists the latest bookings.
func (svc *Service) Admin(ctx context.Context) (AdminOverview, error) {
	var (
		ov  AdminOverview
		err error
	)
	if ov.TotalUsers, err = svc.profiles.CountProfiles(ctx, nil); err != nil {
		return AdminOverview{}, errors.Wrap(err, "counting profiles")
	}
	if ov.ActiveTeachers, err = svc.profiles.CountProfiles(ctx, &profile.QueryFilter{Roles: []profile.Role{profile.RoleTeacher}}); err != nil {
		return AdminOverview{}, errors.Wrap(err, "counting teachers")
	}
	if ov.TotalStudents, err = svc.students.CountStudents(ctx, nil); err != nil {
		return AdminOverview{}, errors.Wrap(err, "counting students")
	}
	if ov.TotalBookings, err = svc.bookings.CountBookings(ctx, nil); err != nil {
		return AdminOverview{}, errors.Wrap(err, "counting bookings")
	}
	if ov.PendingBookings, err = svc.bookings.CountBookings(ctx, &booking.QueryFilter{Statuses: []booking.Status{booking.StatusPending}}); err != nil {
		return AdminOverview{}, errors.Wrap(err, "counting pending bookings")
	}
	if ov.CompletedBookings, err = svc.bookings.CountBookings(ctx, &booking.QueryFilter{Statuses: []booking.Status{booking.StatusCompleted}}); err != nil {
		return AdminOverview{}, errors.Wrap(err, "counting completed bookings")
	}

	ov.RecentBookings, err = svc.bookings.QueryBookings(ctx, &booking.QueryFilter{Limit: recentBookingsLen}, []core.DBOrdering{{Field: "created_at"}})
	if err != nil {
		return AdminOverview{}, errors.Wrap(err, "querying recent bookings")
	}
	return ov, nil
}

// Mentor sums up the bookings the teacher is assigned to.
func (svc *Service) Mentor(ctx context.Context, teacher profile.Profile) (MentorOverview, error) {
	bookings, err := svc.bookingSvc.Query(ctx, teacher, nil, nil)
	if err != nil {
		return MentorOverview{}, errors.Wrap(err, "querying bookings")
	}

	now := svc.nowFunc().UTC()
	dayStart, dayEnd := core.DayBounds(now)
	ov := MentorOverview{
		Bookings: bookings,
		Students: []student.Student{},
		Today:    []booking.Booking{},
		NextUp:   []booking.Booking{},
	}
	studentIDs := make([]string, 0, len(bookings))
	seen := make(map[string]bool, len(bookings))

	for _, b := range bookings {
		if !seen[b.StudentID] {
			seen[b.StudentID] = true
			studentIDs = append(studentIDs, b.StudentID)
		}
		switch b.Status {
		case booking.StatusCompleted:
			ov.Completed++
		case booking.StatusPending:
			ov.Pending++
		}
		if b.IsUpcoming(now) {
			ov.Upcoming++
			if len(ov.NextUp) < nextUpLen {
				ov.NextUp = append(ov.NextUp, b)
			}
		}
		if !b.ScheduledDate.Before(dayStart) && b.ScheduledDate.Before(dayEnd) {
			ov.Today = append(ov.Today, b)
		}
	}
	ov.UniqueStudents = len(studentIDs)

	if len(studentIDs) > 0 {
		ov.Students, err = svc.students.QueryStudents(
			ctx, &student.QueryFilter{IDs: studentIDs}, []core.DBOrdering{{Field: "full_name", Ascending: true}},
		)
		if err != nil {
			return MentorOverview{}, errors.Wrap(err, "querying students")
		}
	}
	return ov, nil
}

// Family shows a parent or a student their plan, their students and their bookings.
func (svc *Service) Family(ctx context.Context, p profile.Profile) (FamilyOverview, error) {
	students, err := svc.studentSvc.Query(ctx, p, nil, []core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return FamilyOverview{}, errors.Wrap(err, "querying students")
	}
	bookings, err := svc.bookingSvc.Query(ctx, p, nil, nil)
	if err != nil {
		return FamilyOverview{}, errors.Wrap(err, "querying bookings")
	}
	return FamilyOverview{
		Profile:  p,
		Plan:     p.PlanType.Features(),
		Students: students,
		Bookings: bookings,
	}, nil
}
