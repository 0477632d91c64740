package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.profiles[s.ParentID]; !ok {
		return student.Student{}, student.ErrParentNotFound
	}
	repo.db.students[s.ID] = s
	return s, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return s, nil
	}
	return student.Student{}, student.ErrNotFound
}

// LockStudent needs no row lock: transactions on DB already run one at a time.
func (repo *studentRepository) LockStudent(ctx context.Context, id string, _ core.DBExecutor) (student.Student, error) {
	return repo.GetStudent(ctx, id)
}

func (repo *studentRepository) QueryStudents(
	_ context.Context,
	filter *student.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]student.Student, 0, len(repo.db.students))
	for _, s := range repo.db.students {
		if filter.Match(s) {
			students = append(students, s)
		}
	}

	sortRecords(students, ordering, core.DBOrdering{Field: "created_at"}, func(i, j int, field string) int {
		a, b := students[i], students[j]
		switch field {
		case "id":
			return cmpStrings(a.ID, b.ID)
		case "full_name":
			return cmpStrings(a.FullName, b.FullName)
		case "grade_level":
			return cmpStrings(a.GradeLevel, b.GradeLevel)
		case "current_level":
			return cmpStrings(string(a.CurrentLevel), string(b.CurrentLevel))
		case "plan_type":
			return cmpStrings(string(a.PlanType), string(b.PlanType))
		case "created_at":
			return cmpTimes(a.CreatedAt, b.CreatedAt)
		}
		return 0
	})
	return students, nil
}

func (repo *studentRepository) CountStudents(_ context.Context, filter *student.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, s := range repo.db.students {
		if filter.Match(s) {
			count++
		}
	}
	return count, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.students[s.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	s.ParentID = orig.ParentID
	s.CreatedAt = orig.CreatedAt
	repo.db.students[s.ID] = s
	return s, nil
}

// DeleteStudentsByID refuses students that still have bookings.
func (repo *studentRepository) DeleteStudentsByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, b := range repo.db.bookings {
		if containsString(ids, b.StudentID) {
			return errors.Wrapf(errStillReferenced, "student %s has booking %s", b.StudentID, b.ID)
		}
	}
	for _, id := range ids {
		delete(repo.db.students, id)
	}
	return nil
}
