package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/student"
)

const studentColumns = "id, parent_id, full_name, grade_level, current_level, plan_type, goals, notes, created_at, updated_at"

type studentRow struct {
	ID           string      `db:"id"`
	ParentID     string      `db:"parent_id"`
	FullName     string      `db:"full_name"`
	GradeLevel   string      `db:"grade_level"`
	CurrentLevel string      `db:"current_level"`
	PlanType     string      `db:"plan_type"`
	Goals        null.String `db:"goals"`
	Notes        null.String `db:"notes"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func toStudentRow(s student.Student) studentRow {
	return studentRow{
		ID:           s.ID,
		ParentID:     s.ParentID,
		FullName:     s.FullName,
		GradeLevel:   s.GradeLevel,
		CurrentLevel: string(s.CurrentLevel),
		PlanType:     string(s.PlanType),
		Goals:        null.StringFromPtr(s.Goals),
		Notes:        null.StringFromPtr(s.Notes),
		CreatedAt:    s.CreatedAt.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
	}
}

func (row studentRow) student() student.Student {
	return student.Student{
		ID:           row.ID,
		ParentID:     row.ParentID,
		FullName:     row.FullName,
		GradeLevel:   row.GradeLevel,
		CurrentLevel: student.Level(row.CurrentLevel),
		PlanType:     plan.Tier(row.PlanType),
		Goals:        row.Goals.Ptr(),
		Notes:        row.Notes.Ptr(),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type studentRepository struct {
	repo
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{repo{db: db}}
}

func (r *studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return student.Student{}, err
	}

	q := `INSERT INTO students (` + studentColumns + `)
		VALUES (:id, :parent_id, :full_name, :grade_level, :current_level, :plan_type, :goals, :notes, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, ext, q, toStudentRow(s)); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return r.GetStudent(ctx, s.ID, exec...)
}

func (r *studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return student.Student{}, err
	}

	var row studentRow
	if err = sqlx.GetContext(ctx, ext, &row, "SELECT "+studentColumns+" FROM students WHERE id::text = $1", id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "selecting student")
	}
	return row.student(), nil
}

func (r *studentRepository) LockStudent(ctx context.Context, id string, exec core.DBExecutor) (student.Student, error) {
	ext, err := r.getExec([]core.DBExecutor{exec})
	if err != nil {
		return student.Student{}, err
	}

	var row studentRow
	q := "SELECT " + studentColumns + " FROM students WHERE id::text = $1 FOR UPDATE"
	if err = sqlx.GetContext(ctx, ext, &row, q, id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "locking student")
	}
	return row.student(), nil
}

func studentWhere(filter *student.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(full_name ILIKE ? OR grade_level ILIKE ?)", pattern, pattern)
	}
	if len(filter.Levels) > 0 {
		levels := make([]string, 0, len(filter.Levels))
		for _, l := range filter.Levels {
			levels = append(levels, string(l))
		}
		w.add("current_level = ANY(?)", stringsToArray(levels))
	}
	if len(filter.PlanTypes) > 0 {
		tiers := make([]string, 0, len(filter.PlanTypes))
		for _, t := range filter.PlanTypes {
			tiers = append(tiers, string(t))
		}
		w.add("plan_type = ANY(?)", stringsToArray(tiers))
	}
	if len(filter.ParentIDs) > 0 {
		w.add("parent_id::text = ANY(?)", stringsToArray(filter.ParentIDs))
	}
	if filter.IDs != nil {
		w.add("id::text = ANY(?)", stringsToArray(filter.IDs))
	}
	return w
}

func (r *studentRepository) QueryStudents(
	ctx context.Context,
	filter *student.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]student.Student, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return nil, err
	}

	w := studentWhere(filter)
	q := "SELECT " + studentColumns + " FROM students" + w.String() +
		orderBy(ordering, "created_at DESC", "full_name", "grade_level", "current_level", "plan_type", "created_at")

	var rows []studentRow
	if err = sqlx.SelectContext(ctx, ext, &rows, bind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (r *studentRepository) CountStudents(ctx context.Context, filter *student.QueryFilter, exec ...core.DBExecutor) (int, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return 0, err
	}

	w := studentWhere(filter)
	var count int
	if err = sqlx.GetContext(ctx, ext, &count, bind("SELECT COUNT(*) FROM students"+w.String()), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return count, nil
}

func (r *studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return student.Student{}, err
	}

	q := `UPDATE students SET
		full_name = :full_name, grade_level = :grade_level, current_level = :current_level,
		plan_type = :plan_type, goals = :goals, notes = :notes, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, ext, q, toStudentRow(s))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return r.GetStudent(ctx, s.ID, exec...)
}

func (r *studentRepository) DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	ext, err := r.getExec(exec)
	if err != nil {
		return err
	}
	if _, err = ext.ExecContext(ctx, "DELETE FROM students WHERE id::text = ANY($1)", stringsToArray(ids)); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}
