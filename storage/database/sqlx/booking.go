package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/core/plan"
)

const bookingColumns = "id, student_id, teacher_id, booking_type, scheduled_date, duration_minutes, status, notes, created_at, updated_at"

type bookingRow struct {
	ID              string      `db:"id"`
	StudentID       string      `db:"student_id"`
	TeacherID       null.String `db:"teacher_id"`
	BookingType     string      `db:"booking_type"`
	ScheduledDate   time.Time   `db:"scheduled_date"`
	DurationMinutes int         `db:"duration_minutes"`
	Status          string      `db:"status"`
	Notes           null.String `db:"notes"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func toBookingRow(b booking.Booking) bookingRow {
	return bookingRow{
		ID:              b.ID,
		StudentID:       b.StudentID,
		TeacherID:       null.StringFromPtr(b.TeacherID),
		BookingType:     string(b.BookingType),
		ScheduledDate:   b.ScheduledDate.UTC(),
		DurationMinutes: b.DurationMinutes,
		Status:          string(b.Status),
		Notes:           null.StringFromPtr(b.Notes),
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
	}
}

func (row bookingRow) booking() booking.Booking {
	return booking.Booking{
		ID:              row.ID,
		StudentID:       row.StudentID,
		TeacherID:       row.TeacherID.Ptr(),
		BookingType:     plan.BookingType(row.BookingType),
		ScheduledDate:   row.ScheduledDate.UTC(),
		DurationMinutes: row.DurationMinutes,
		Status:          booking.Status(row.Status),
		Notes:           row.Notes.Ptr(),
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

type bookingRepository struct {
	repo
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *sqlx.DB) *bookingRepository {
	return &bookingRepository{repo{db: db}}
}

func (r *bookingRepository) CreateBooking(ctx context.Context, b booking.Booking, exec ...core.DBExecutor) (booking.Booking, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return booking.Booking{}, err
	}

	q := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES (:id, :student_id, :teacher_id, :booking_type, :scheduled_date, :duration_minutes, :status, :notes, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, ext, q, toBookingRow(b)); err != nil {
		return booking.Booking{}, errors.Wrap(err, "inserting booking")
	}
	return r.GetBooking(ctx, b.ID, exec...)
}

func (r *bookingRepository) GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (booking.Booking, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return booking.Booking{}, err
	}

	var row bookingRow
	if err = sqlx.GetContext(ctx, ext, &row, "SELECT "+bookingColumns+" FROM bookings WHERE id::text = $1", id); err != nil {
		return booking.Booking{}, trapNoRowsErr(err, booking.ErrNotFound, "selecting booking")
	}
	return row.booking(), nil
}

func bookingWhere(filter *booking.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		w.add("status = ANY(?)", stringsToArray(statuses))
	}
	if len(filter.BookingTypes) > 0 {
		types := make([]string, 0, len(filter.BookingTypes))
		for _, bt := range filter.BookingTypes {
			types = append(types, string(bt))
		}
		w.add("booking_type = ANY(?)", stringsToArray(types))
	}
	if filter.StudentIDs != nil {
		w.add("student_id::text = ANY(?)", stringsToArray(filter.StudentIDs))
	}
	if filter.TeacherIDs != nil {
		w.add("teacher_id::text = ANY(?)", stringsToArray(filter.TeacherIDs))
	}
	if !filter.ScheduledFrom.IsZero() {
		w.add("scheduled_date >= ?", filter.ScheduledFrom.UTC())
	}
	if !filter.ScheduledTo.IsZero() {
		w.add("scheduled_date < ?", filter.ScheduledTo.UTC())
	}
	return w
}

func (r *bookingRepository) QueryBookings(
	ctx context.Context,
	filter *booking.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]booking.Booking, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return nil, err
	}

	w := bookingWhere(filter)
	q := "SELECT " + bookingColumns + " FROM bookings" + w.String() +
		orderBy(ordering, "scheduled_date ASC", "scheduled_date", "booking_type", "status", "duration_minutes", "created_at")
	args := w.args
	if filter != nil && filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []bookingRow
	if err = sqlx.SelectContext(ctx, ext, &rows, bind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting bookings")
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, row.booking())
	}
	return bookings, nil
}

func (r *bookingRepository) CountBookings(ctx context.Context, filter *booking.QueryFilter, exec ...core.DBExecutor) (int, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return 0, err
	}

	w := bookingWhere(filter)
	var count int
	if err = sqlx.GetContext(ctx, ext, &count, bind("SELECT COUNT(*) FROM bookings"+w.String()), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting bookings")
	}
	return count, nil
}

func (r *bookingRepository) UpdateBooking(ctx context.Context, b booking.Booking, exec ...core.DBExecutor) (booking.Booking, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return booking.Booking{}, err
	}

	q := `UPDATE bookings SET
		teacher_id = :teacher_id, booking_type = :booking_type, scheduled_date = :scheduled_date,
		duration_minutes = :duration_minutes, status = :status, notes = :notes, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, ext, q, toBookingRow(b))
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "updating booking")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return booking.Booking{}, booking.ErrNotFound
	}
	return r.GetBooking(ctx, b.ID, exec...)
}

func (r *bookingRepository) DeleteBookingsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	return r.exec(ctx, exec, "deleting bookings", "DELETE FROM bookings WHERE id::text = ANY($1)", stringsToArray(ids))
}

func (r *bookingRepository) DeleteBookingsByStudent(ctx context.Context, studentIDs []string, exec ...core.DBExecutor) error {
	return r.exec(ctx, exec, "deleting student bookings", "DELETE FROM bookings WHERE student_id::text = ANY($1)", stringsToArray(studentIDs))
}

func (r *bookingRepository) UnassignTeacher(ctx context.Context, teacherIDs []string, exec ...core.DBExecutor) error {
	return r.exec(
		ctx, exec, "unassigning teacher",
		"UPDATE bookings SET teacher_id = NULL, updated_at = $2 WHERE teacher_id::text = ANY($1)",
		stringsToArray(teacherIDs), time.Now().UTC(),
	)
}

func (r *bookingRepository) exec(ctx context.Context, svcExec []core.DBExecutor, msg, query string, args ...interface{}) error {
	ext, err := r.getExec(svcExec)
	if err != nil {
		return err
	}
	_, err = ext.ExecContext(ctx, query, args...)
	return errors.Wrap(err, msg)
}
