package inmemdb

import (
	"context"
	"time"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/core/student"
)

type bookingRepository struct {
	db *DB
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *DB) *bookingRepository {
	return &bookingRepository{db: db}
}

func (repo *bookingRepository) CreateBooking(_ context.Context, b booking.Booking, _ ...core.DBExecutor) (booking.Booking, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[b.StudentID]; !ok {
		return booking.Booking{}, student.ErrNotFound
	}
	repo.db.bookings[b.ID] = b
	return b, nil
}

func (repo *bookingRepository) GetBooking(_ context.Context, id string, _ ...core.DBExecutor) (booking.Booking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if b, ok := repo.db.bookings[id]; ok {
		return b, nil
	}
	return booking.Booking{}, booking.ErrNotFound
}

func (repo *bookingRepository) QueryBookings(
	_ context.Context,
	filter *booking.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]booking.Booking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	bookings := make([]booking.Booking, 0, len(repo.db.bookings))
	for _, b := range repo.db.bookings {
		if filter.Match(b) {
			bookings = append(bookings, b)
		}
	}

	sortRecords(bookings, ordering, core.DBOrdering{Field: "scheduled_date", Ascending: true}, func(i, j int, field string) int {
		a, b := bookings[i], bookings[j]
		switch field {
		case "id":
			return cmpStrings(a.ID, b.ID)
		case "scheduled_date":
			return cmpTimes(a.ScheduledDate, b.ScheduledDate)
		case "booking_type":
			return cmpStrings(string(a.BookingType), string(b.BookingType))
		case "status":
			return cmpStrings(string(a.Status), string(b.Status))
		case "duration_minutes":
			return cmpInts(a.DurationMinutes, b.DurationMinutes)
		case "created_at":
			return cmpTimes(a.CreatedAt, b.CreatedAt)
		}
		return 0
	})
	if filter != nil && filter.Limit > 0 && len(bookings) > filter.Limit {
		bookings = bookings[:filter.Limit]
	}
	return bookings, nil
}

func (repo *bookingRepository) CountBookings(_ context.Context, filter *booking.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, b := range repo.db.bookings {
		if filter.Match(b) {
			count++
		}
	}
	return count, nil
}

func (repo *bookingRepository) UpdateBooking(_ context.Context, b booking.Booking, _ ...core.DBExecutor) (booking.Booking, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.bookings[b.ID]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	b.StudentID = orig.StudentID
	b.CreatedAt = orig.CreatedAt
	repo.db.bookings[b.ID] = b
	return b, nil
}

func (repo *bookingRepository) DeleteBookingsByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for _, id := range ids {
		delete(repo.db.bookings, id)
	}
	return nil
}

func (repo *bookingRepository) DeleteBookingsByStudent(_ context.Context, studentIDs []string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for id, b := range repo.db.bookings {
		if containsString(studentIDs, b.StudentID) {
			delete(repo.db.bookings, id)
		}
	}
	return nil
}

func (repo *bookingRepository) UnassignTeacher(_ context.Context, teacherIDs []string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	now := time.Now().UTC()
	for id, b := range repo.db.bookings {
		if b.TeacherID != nil && containsString(teacherIDs, *b.TeacherID) {
			b.TeacherID = nil
			b.UpdatedAt = now
			repo.db.bookings[id] = b
		}
	}
	return nil
}
