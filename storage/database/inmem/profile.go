package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/profile"
)

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) *profileRepository {
	return &profileRepository{db: db}
}

// emailTaken reports whether another profile than id uses email. db.mu must be held.
func (repo *profileRepository) emailTaken(email string, excludedIDs ...string) bool {
	for _, p := range repo.db.profiles {
		if p.Email == email && !containsString(excludedIDs, p.ID) {
			return true
		}
	}
	return false
}

func (repo *profileRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs []string, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if repo.emailTaken(email, excludedIDs...) {
		return profile.ErrEmailExists
	}
	return nil
}

func (repo *profileRepository) CreateProfile(_ context.Context, p profile.Profile, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.emailTaken(p.Email) {
		return profile.Profile{}, profile.ErrEmailExists
	}
	repo.db.profiles[p.ID] = p
	return p, nil
}

func (repo *profileRepository) QueryProfiles(
	_ context.Context,
	filter *profile.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	profiles := make([]profile.Profile, 0, len(repo.db.profiles))
	for _, p := range repo.db.profiles {
		if filter.Match(p) {
			profiles = append(profiles, p)
		}
	}

	sortRecords(profiles, ordering, core.DBOrdering{Field: "created_at"}, func(i, j int, field string) int {
		a, b := profiles[i], profiles[j]
		switch field {
		case "id":
			return cmpStrings(a.ID, b.ID)
		case "email":
			return cmpStrings(a.Email, b.Email)
		case "full_name":
			return cmpStrings(deref(a.FullName), deref(b.FullName))
		case "role":
			return cmpStrings(string(a.Role), string(b.Role))
		case "plan_type":
			return cmpStrings(string(a.PlanType), string(b.PlanType))
		case "created_at":
			return cmpTimes(a.CreatedAt, b.CreatedAt)
		case "last_login":
			return cmpTimes(a.LastLogin, b.LastLogin)
		}
		return 0
	})
	return profiles, nil
}

func (repo *profileRepository) CountProfiles(_ context.Context, filter *profile.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, p := range repo.db.profiles {
		if filter.Match(p) {
			count++
		}
	}
	return count, nil
}

func (repo *profileRepository) GetProfile(_ context.Context, filter profile.GetFilter, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	switch {
	case filter.ID != "":
		if p, ok := repo.db.profiles[filter.ID]; ok {
			return p, nil
		}
	case filter.Email != "":
		for _, p := range repo.db.profiles {
			if p.Email == filter.Email {
				return p, nil
			}
		}
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) UpdateProfile(_ context.Context, p profile.Profile, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.profiles[p.ID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	if repo.emailTaken(p.Email, p.ID) {
		return profile.Profile{}, profile.ErrEmailExists
	}
	p.CreatedAt = orig.CreatedAt
	repo.db.profiles[p.ID] = p
	return p, nil
}

// DeleteProfilesByID refuses profiles that still own students or teach bookings.
func (repo *profileRepository) DeleteProfilesByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, s := range repo.db.students {
		if containsString(ids, s.ParentID) {
			return errors.Wrapf(errStillReferenced, "profile %s owns student %s", s.ParentID, s.ID)
		}
	}
	for _, b := range repo.db.bookings {
		if b.TeacherID != nil && containsString(ids, *b.TeacherID) {
			return errors.Wrapf(errStillReferenced, "profile %s teaches booking %s", *b.TeacherID, b.ID)
		}
	}
	for _, id := range ids {
		delete(repo.db.profiles, id)
	}
	return nil
}
