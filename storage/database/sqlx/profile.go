package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/profile"
)

const profileColumns = "id, email, full_name, phone, role, plan_type, password_hash, last_login, created_at, updated_at"

type profileRow struct {
	ID           string      `db:"id"`
	Email        string      `db:"email"`
	FullName     null.String `db:"full_name"`
	Phone        null.String `db:"phone"`
	Role         string      `db:"role"`
	PlanType     string      `db:"plan_type"`
	PasswordHash []byte      `db:"password_hash"`
	LastLogin    null.Time   `db:"last_login"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func toProfileRow(p profile.Profile) profileRow {
	return profileRow{
		ID:           p.ID,
		Email:        p.Email,
		FullName:     null.StringFromPtr(p.FullName),
		Phone:        null.StringFromPtr(p.Phone),
		Role:         string(p.Role),
		PlanType:     string(p.PlanType),
		PasswordHash: p.PasswordHash,
		LastLogin:    null.NewTime(p.LastLogin.UTC(), !p.LastLogin.IsZero()),
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}
}

func (row profileRow) profile() profile.Profile {
	return profile.Profile{
		ID:           row.ID,
		Email:        row.Email,
		FullName:     row.FullName.Ptr(),
		Phone:        row.Phone.Ptr(),
		Role:         profile.Role(row.Role),
		PlanType:     plan.Tier(row.PlanType),
		PasswordHash: row.PasswordHash,
		LastLogin:    row.LastLogin.Time.UTC(),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type profileRepository struct {
	repo
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) *profileRepository {
	return &profileRepository{repo{db: db}}
}

func (r *profileRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs []string, exec ...core.DBExecutor) error {
	ext, err := r.getExec(exec)
	if err != nil {
		return err
	}

	w := new(where)
	w.add("email = ?", email)
	if len(excludedIDs) > 0 {
		w.add("NOT (id::text = ANY(?))", stringsToArray(excludedIDs))
	}
	var exists bool
	if err = sqlx.GetContext(ctx, ext, &exists, bind("SELECT EXISTS (SELECT 1 FROM profiles"+w.String()+")"), w.args...); err != nil {
		return errors.Wrap(err, "checking profile uniqueness")
	}
	if exists {
		return profile.ErrEmailExists
	}
	return nil
}

func (r *profileRepository) CreateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return profile.Profile{}, err
	}

	q := `INSERT INTO profiles (` + profileColumns + `)
		VALUES (:id, :email, :full_name, :phone, :role, :plan_type, :password_hash, :last_login, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, ext, q, toProfileRow(p)); err != nil {
		if isUniqueViolation(err) {
			return profile.Profile{}, profile.ErrEmailExists
		}
		return profile.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return r.GetProfile(ctx, profile.GetFilter{ID: p.ID}, exec...)
}

func profileWhere(filter *profile.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(email ILIKE ? OR full_name ILIKE ? OR phone ILIKE ?)", pattern, pattern, pattern)
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roles = append(roles, string(role))
		}
		w.add("role = ANY(?)", stringsToArray(roles))
	}
	if len(filter.PlanTypes) > 0 {
		tiers := make([]string, 0, len(filter.PlanTypes))
		for _, t := range filter.PlanTypes {
			tiers = append(tiers, string(t))
		}
		w.add("plan_type = ANY(?)", stringsToArray(tiers))
	}
	if !filter.CreatedFrom.IsZero() {
		w.add("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		w.add("created_at <= ?", filter.CreatedTo.UTC())
	}
	return w
}

func (r *profileRepository) QueryProfiles(
	ctx context.Context,
	filter *profile.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]profile.Profile, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return nil, err
	}

	w := profileWhere(filter)
	q := "SELECT " + profileColumns + " FROM profiles" + w.String() +
		orderBy(ordering, "created_at DESC", "email", "full_name", "role", "plan_type", "created_at", "last_login")

	var rows []profileRow
	if err = sqlx.SelectContext(ctx, ext, &rows, bind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting profiles")
	}
	profiles := make([]profile.Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.profile())
	}
	return profiles, nil
}

func (r *profileRepository) CountProfiles(ctx context.Context, filter *profile.QueryFilter, exec ...core.DBExecutor) (int, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return 0, err
	}

	w := profileWhere(filter)
	var count int
	if err = sqlx.GetContext(ctx, ext, &count, bind("SELECT COUNT(*) FROM profiles"+w.String()), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting profiles")
	}
	return count, nil
}

func (r *profileRepository) GetProfile(ctx context.Context, filter profile.GetFilter, exec ...core.DBExecutor) (profile.Profile, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return profile.Profile{}, err
	}

	w := new(where)
	switch {
	case filter.ID != "":
		w.add("id::text = ?", filter.ID)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	default:
		return profile.Profile{}, profile.ErrNotFound
	}

	var row profileRow
	if err = sqlx.GetContext(ctx, ext, &row, bind("SELECT "+profileColumns+" FROM profiles"+w.String()), w.args...); err != nil {
		return profile.Profile{}, trapNoRowsErr(err, profile.ErrNotFound, "selecting profile")
	}
	return row.profile(), nil
}

func (r *profileRepository) UpdateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	ext, err := r.getExec(exec)
	if err != nil {
		return profile.Profile{}, err
	}

	q := `UPDATE profiles SET
		email = :email, full_name = :full_name, phone = :phone, role = :role, plan_type = :plan_type,
		password_hash = :password_hash, last_login = :last_login, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, ext, q, toProfileRow(p))
	if err != nil {
		if isUniqueViolation(err) {
			return profile.Profile{}, profile.ErrEmailExists
		}
		return profile.Profile{}, errors.Wrap(err, "updating profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return profile.Profile{}, profile.ErrNotFound
	}
	return r.GetProfile(ctx, profile.GetFilter{ID: p.ID}, exec...)
}

func (r *profileRepository) DeleteProfilesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	ext, err := r.getExec(exec)
	if err != nil {
		return err
	}
	if _, err = ext.ExecContext(ctx, "DELETE FROM profiles WHERE id::text = ANY($1)", stringsToArray(ids)); err != nil {
		return errors.Wrap(err, "deleting profiles")
	}
	return nil
}
