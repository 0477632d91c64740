// Package memstore keeps sessions and rate limit counters in process memory.
// It serves single instance deployments and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/agoras/agoras/core/session"
)

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
	nowFunc  func() time.Time
}

var _ session.Store = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]session.Session),
		nowFunc:  time.Now,
	}
}

func (s *SessionStore) Create(_ context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purge()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Expired(s.nowFunc()) {
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) DeleteByProfile(_ context.Context, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.ProfileID == profileID {
			delete(s.sessions, id)
		}
	}
	return nil
}

// purge drops expired sessions. s.mu must be held.
func (s *SessionStore) purge() {
	now := s.nowFunc()
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
		}
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter allows `attempts` per key within each fixed window.
type Limiter struct {
	mu        sync.Mutex
	attempts  int
	window    time.Duration
	windows   map[string]*window
	nextPurge time.Time
	nowFunc   func() time.Time
}

var _ session.Limiter = (*Limiter)(nil)

func NewLimiter(attempts int, win time.Duration) *Limiter {
	return &Limiter{
		attempts: attempts,
		window:   win,
		windows:  make(map[string]*window),
		nowFunc:  time.Now,
	}
}

func (l *Limiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if !now.Before(l.nextPurge) {
		l.purge(now)
		l.nextPurge = now.Add(l.window)
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.attempts, nil
}

// purge drops elapsed windows. l.mu must be held.
func (l *Limiter) purge(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

func (l *Limiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}
