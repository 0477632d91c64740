package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/student"
	"github.com/agoras/agoras/tests"
)

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.NotEmpty(t, vErr.Fields)
	return vErr.Fields[0].Field
}

func countBookings(t *testing.T, repo booking.Repository) int {
	t.Helper()
	count, err := repo.CountBookings(context.Background(), nil)
	require.NoError(t, err)
	return count
}

func TestService_Create_PlanGate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free)
	kari := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)
	ola := testutil.CreateStudent(t, env.StudentRepo, kari.ID, "Ola", plan.Free)
	when := time.Date(2031, time.March, 10, 16, 0, 0, 0, time.UTC)

	for _, bt := range []plan.BookingType{plan.Assessment, plan.Lesson} {
		_, err := env.Bookings.Create(ctx, kari, booking.NewBooking{StudentID: ola.ID, BookingType: bt, ScheduledDate: when})
		assert.Equal(t, "booking_type", fieldOf(t, err), bt)

		// admins are bound by the plan too
		_, err = env.Bookings.Create(ctx, admin, booking.NewBooking{StudentID: ola.ID, BookingType: bt, ScheduledDate: when})
		assert.Equal(t, "booking_type", fieldOf(t, err), bt)
	}
	assert.Equal(t, 0, countBookings(t, env.BookingRepo))

	// upgrading unlocks lessons
	pluss := plan.Pluss
	_, err := env.Students.Update(ctx, admin, ola.ID, student.UpdateStudent{PlanType: &pluss})
	require.NoError(t, err)

	b, err := env.Bookings.Create(ctx, kari, booking.NewBooking{StudentID: ola.ID, BookingType: plan.Lesson, ScheduledDate: when})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, 30, b.DurationMinutes)
	assert.Nil(t, b.TeacherID)
}

func TestService_Create_MonthlyAllowance(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free)
	kari := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)
	ola := testutil.CreateStudent(t, env.StudentRepo, kari.ID, "Ola", plan.Free)
	march := time.Date(2031, time.March, 31, 23, 30, 0, 0, time.UTC)
	april := time.Date(2031, time.April, 1, 0, 0, 0, 0, time.UTC)

	nb := func(at time.Time) booking.NewBooking {
		return booking.NewBooking{StudentID: ola.ID, BookingType: plan.Consultation, ScheduledDate: at}
	}

	first, err := env.Bookings.Create(ctx, kari, nb(march))
	require.NoError(t, err)

	_, err = env.Bookings.Create(ctx, kari, nb(march.Add(-24*time.Hour)))
	assert.Equal(t, "scheduled_date", fieldOf(t, err))
	assert.Equal(t, 1, countBookings(t, env.BookingRepo))

	_, err = env.Bookings.Create(ctx, kari, nb(april))
	require.NoError(t, err)

	// cancelled bookings do not count
	_, err = env.Bookings.SetStatus(ctx, kari, first.ID, booking.StatusCancelled)
	require.NoError(t, err)
	_, err = env.Bookings.Create(ctx, kari, nb(march))
	require.NoError(t, err)

	// admins are not bound by the allowance
	confirmed := booking.StatusConfirmed
	b, err := env.Bookings.Create(ctx, admin, booking.NewBooking{
		StudentID: ola.ID, BookingType: plan.Consultation, ScheduledDate: march, DurationMinutes: 60, Status: &confirmed,
	})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.Equal(t, 60, b.DurationMinutes)
}

// lockingStudents records the students locked by a transaction.
type lockingStudents struct {
	student.Repository
	mu     sync.Mutex
	locked []string
}

func (r *lockingStudents) LockStudent(ctx context.Context, id string, exec core.DBExecutor) (student.Student, error) {
	r.mu.Lock()
	r.locked = append(r.locked, id)
	r.mu.Unlock()
	return r.Repository.LockStudent(ctx, id, exec)
}

func TestService_Create_Concurrent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	kari := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)
	ola := testutil.CreateStudent(t, env.StudentRepo, kari.ID, "Ola", plan.Free)
	students := &lockingStudents{Repository: env.StudentRepo}
	svc := booking.NewService(env.DB, env.BookingRepo, students, env.ProfileRepo)
	when := time.Date(2031, time.May, 5, 16, 0, 0, 0, time.UTC)

	const attempts = 5
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, kari, booking.NewBooking{StudentID: ola.ID, BookingType: plan.Consultation, ScheduledDate: when})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var created int
	for err := range errs {
		if err == nil {
			created++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, countBookings(t, env.BookingRepo))
	assert.Len(t, students.locked, attempts)
	for _, id := range students.locked {
		assert.Equal(t, ola.ID, id)
	}
}

func TestService_Create_Access(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free)
	kari := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)
	per := testutil.CreateProfile(t, env.ProfileRepo, "Per", "per@test.no", profile.RoleParent, plan.Free)
	teacher := testutil.CreateProfile(t, env.ProfileRepo, "Lærer", "teacher@test.no", profile.RoleTeacher, plan.Free)
	ola := testutil.CreateStudent(t, env.StudentRepo, kari.ID, "Ola", plan.Premium)
	when := time.Now().Add(72 * time.Hour)

	_, err := env.Bookings.Create(ctx, teacher, booking.NewBooking{StudentID: ola.ID, BookingType: plan.Lesson, ScheduledDate: when})
	assert.Equal(t, booking.ErrForbidden, err)

	_, err = env.Bookings.Create(ctx, per, booking.NewBooking{StudentID: ola.ID, BookingType: plan.Lesson, ScheduledDate: when})
	assert.Equal(t, "student_id", fieldOf(t, err))

	_, err = env.Bookings.Create(ctx, kari, booking.NewBooking{StudentID: "unknown", BookingType: plan.Lesson, ScheduledDate: when})
	assert.Equal(t, "student_id", fieldOf(t, err))

	_, err = env.Bookings.Create(ctx, admin, booking.NewBooking{
		StudentID: ola.ID, TeacherID: &per.ID, BookingType: plan.Lesson, ScheduledDate: when,
	})
	assert.Equal(t, "teacher_id", fieldOf(t, err))

	// families cannot pick the teacher
	b, err := env.Bookings.Create(ctx, kari, booking.NewBooking{
		StudentID: ola.ID, TeacherID: &teacher.ID, BookingType: plan.Lesson, ScheduledDate: when,
	})
	require.NoError(t, err)
	assert.Nil(t, b.TeacherID)

	b, err = env.Bookings.Create(ctx, admin, booking.NewBooking{
		StudentID: ola.ID, TeacherID: &teacher.ID, BookingType: plan.Lesson, ScheduledDate: when,
	})
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, *b.TeacherID)
}

func TestService_QueryAndStatus(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free)
	kari := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)
	per := testutil.CreateProfile(t, env.ProfileRepo, "Per", "per@test.no", profile.RoleParent, plan.Free)
	teacher := testutil.CreateProfile(t, env.ProfileRepo, "Lærer", "teacher@test.no", profile.RoleTeacher, plan.Free)
	other := testutil.CreateProfile(t, env.ProfileRepo, "Lærer 2", "teacher2@test.no", profile.RoleTeacher, plan.Free)
	ola := testutil.CreateStudent(t, env.StudentRepo, kari.ID, "Ola", plan.Premium)
	lars := testutil.CreateStudent(t, env.StudentRepo, per.ID, "Lars", plan.Premium)

	now := time.Now().UTC()
	b1 := testutil.CreateBooking(t, env.BookingRepo, ola.ID, &teacher.ID, plan.Lesson, booking.StatusConfirmed, now.Add(time.Hour))
	b2 := testutil.CreateBooking(t, env.BookingRepo, ola.ID, nil, plan.Consultation, booking.StatusPending, now.Add(2*time.Hour))
	b3 := testutil.CreateBooking(t, env.BookingRepo, lars.ID, &teacher.ID, plan.Assessment, booking.StatusPending, now.Add(3*time.Hour))

	tests := []struct {
		name   string
		actor  profile.Profile
		filter *booking.QueryFilter
		want   []booking.Booking
	}{
		{name: "admin", actor: admin, want: []booking.Booking{b1, b2, b3}},
		{name: "admin filtered", actor: admin, filter: &booking.QueryFilter{Statuses: []booking.Status{booking.StatusPending}}, want: []booking.Booking{b2, b3}},
		{name: "parent", actor: kari, want: []booking.Booking{b1, b2}},
		{name: "parent asking for others", actor: kari, filter: &booking.QueryFilter{StudentIDs: []string{lars.ID}}, want: []booking.Booking{}},
		{name: "teacher", actor: teacher, want: []booking.Booking{b1, b3}},
		{name: "other teacher", actor: other, want: []booking.Booking{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.Bookings.Query(ctx, tt.actor, tt.filter, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := env.Bookings.Get(ctx, per, b1.ID)
	assert.True(t, core.IsNotFound(err))
	_, err = env.Bookings.Get(ctx, other, b1.ID)
	assert.True(t, core.IsNotFound(err))

	_, err = env.Bookings.SetStatus(ctx, kari, b2.ID, booking.StatusConfirmed)
	assert.Equal(t, booking.ErrCancelOnly, err)
	_, err = env.Bookings.SetStatus(ctx, per, b2.ID, booking.StatusCancelled)
	assert.True(t, core.IsNotFound(err))
	_, err = env.Bookings.SetStatus(ctx, other, b1.ID, booking.StatusCompleted)
	assert.True(t, core.IsNotFound(err))

	b, err := env.Bookings.SetStatus(ctx, teacher, b1.ID, booking.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, b.Status)

	b, err = env.Bookings.SetStatus(ctx, kari, b2.ID, booking.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, b.Status)

	assert.Equal(t, booking.ErrForbidden, env.Bookings.Delete(ctx, kari, b2.ID))
	require.NoError(t, env.Bookings.Delete(ctx, admin, b2.ID))
	assert.Equal(t, 2, countBookings(t, env.BookingRepo))
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free)
	kari := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)
	teacher := testutil.CreateProfile(t, env.ProfileRepo, "Lærer", "teacher@test.no", profile.RoleTeacher, plan.Free)
	ola := testutil.CreateStudent(t, env.StudentRepo, kari.ID, "Ola", plan.Standard)
	b := testutil.CreateBooking(t, env.BookingRepo, ola.ID, nil, plan.Consultation, booking.StatusPending, time.Now().Add(time.Hour))

	lesson, assessment := plan.Lesson, plan.Assessment
	_, err := env.Bookings.Update(ctx, kari, b.ID, booking.UpdateBooking{BookingType: &assessment})
	assert.Equal(t, booking.ErrForbidden, err)

	_, err = env.Bookings.Update(ctx, admin, b.ID, booking.UpdateBooking{BookingType: &lesson})
	assert.Equal(t, "booking_type", fieldOf(t, err))

	updated, err := env.Bookings.Update(ctx, admin, b.ID, booking.UpdateBooking{BookingType: &assessment, TeacherID: &teacher.ID})
	require.NoError(t, err)
	assert.Equal(t, plan.Assessment, updated.BookingType)
	assert.Equal(t, teacher.ID, *updated.TeacherID)

	unassign := ""
	updated, err = env.Bookings.Update(ctx, admin, b.ID, booking.UpdateBooking{TeacherID: &unassign})
	require.NoError(t, err)
	assert.Nil(t, updated.TeacherID)

	bogus, negative := booking.Status("bogus"), -5
	_, err = env.Bookings.Update(ctx, admin, b.ID, booking.UpdateBooking{TeacherID: &unassign, Status: &bogus})
	assert.Equal(t, "status", fieldOf(t, err))
	_, err = env.Bookings.Update(ctx, admin, b.ID, booking.UpdateBooking{TeacherID: &unassign, DurationMinutes: &negative})
	assert.Equal(t, "duration_minutes", fieldOf(t, err))
	_, err = env.Bookings.SetStatus(ctx, admin, b.ID, bogus)
	assert.Equal(t, "status", fieldOf(t, err))

	stored, err := env.BookingRepo.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, stored.Status)
	assert.Equal(t, 30, stored.DurationMinutes)
}
