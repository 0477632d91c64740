// Package session holds the login sessions of principals.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound    = errors.New("session not found")
	ErrRateLimited = errors.New("too many attempts, try again later")
)

// Session ties a login to a profile until it expires or is revoked.
type Session struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	ExpiresAt time.Time `json:"expires_at"` // UTC
}

// New starts a session of profileID lasting ttl.
func New(profileID string, ttl time.Duration) Session {
	now := time.Now().UTC()
	return Session{
		ID:        uuid.New().String(),
		ProfileID: profileID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type (
	// Store keeps sessions until they expire.
	Store interface {
		Create(ctx context.Context, s Session) error
		// Get returns ErrNotFound for unknown and expired sessions.
		Get(ctx context.Context, id string) (Session, error)
		Delete(ctx context.Context, id string) error
		DeleteByProfile(ctx context.Context, profileID string) error
	}

	// Limiter counts attempts per key in fixed windows.
	Limiter interface {
		// Allow records an attempt for key and reports whether it is within the limit.
		Allow(ctx context.Context, key string) (bool, error)
		// Reset forgets the attempts of key.
		Reset(ctx context.Context, key string) error
	}
)
