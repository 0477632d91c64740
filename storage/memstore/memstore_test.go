package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoras/agoras/core/session"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	s1 := session.New("profile-1", time.Hour)
	s2 := session.New("profile-1", time.Hour)
	s3 := session.New("profile-2", time.Hour)
	for _, s := range []session.Session{s1, s2, s3} {
		require.NoError(t, store.Create(ctx, s))
	}

	got, err := store.Get(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, s1, got)

	_, err = store.Get(ctx, "unknown")
	assert.Equal(t, session.ErrNotFound, err)

	require.NoError(t, store.Delete(ctx, s1.ID))
	_, err = store.Get(ctx, s1.ID)
	assert.Equal(t, session.ErrNotFound, err)

	require.NoError(t, store.DeleteByProfile(ctx, "profile-1"))
	_, err = store.Get(ctx, s2.ID)
	assert.Equal(t, session.ErrNotFound, err)

	got, err = store.Get(ctx, s3.ID)
	require.NoError(t, err)
	assert.Equal(t, s3, got)
}

func TestSessionStore_expiry(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now()
	store.nowFunc = func() time.Time { return now }

	s := session.New("profile-1", time.Minute)
	require.NoError(t, store.Create(ctx, s))

	_, err := store.Get(ctx, s.ID)
	require.NoError(t, err)

	store.nowFunc = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = store.Get(ctx, s.ID)
	assert.Equal(t, session.ErrNotFound, err)

	// expired sessions are purged on the next write
	require.NoError(t, store.Create(ctx, session.New("profile-2", time.Hour)))
	assert.Len(t, store.sessions, 1)
}

func TestLimiter(t *testing.T) {
	ctx := context.Background()
	lim := NewLimiter(3, time.Minute)
	now := time.Now()
	lim.nowFunc = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		ok, err := lim.Allow(ctx, "login:a@agoras.no")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
	}
	ok, _ := lim.Allow(ctx, "login:a@agoras.no")
	assert.False(t, ok)

	// other keys are counted apart
	ok, _ = lim.Allow(ctx, "login:b@agoras.no")
	assert.True(t, ok)

	// a new window starts once the current one elapses
	lim.nowFunc = func() time.Time { return now.Add(time.Minute) }
	ok, _ = lim.Allow(ctx, "login:a@agoras.no")
	assert.True(t, ok)

	for i := 0; i < 3; i++ {
		_, _ = lim.Allow(ctx, "login:a@agoras.no")
	}
	require.NoError(t, lim.Reset(ctx, "login:a@agoras.no"))
	ok, _ = lim.Allow(ctx, "login:a@agoras.no")
	assert.True(t, ok)
}

func TestLimiter_purge(t *testing.T) {
	ctx := context.Background()
	lim := NewLimiter(3, time.Minute)
	now := time.Now()
	lim.nowFunc = func() time.Time { return now }

	for _, key := range []string{"login:a@agoras.no", "login:b@agoras.no", "login:c@agoras.no"} {
		_, err := lim.Allow(ctx, key)
		require.NoError(t, err)
	}
	assert.Len(t, lim.windows, 3)

	// elapsed windows are dropped on the first attempt of the next window
	lim.nowFunc = func() time.Time { return now.Add(time.Minute) }
	_, err := lim.Allow(ctx, "login:d@agoras.no")
	require.NoError(t, err)
	assert.Len(t, lim.windows, 1)
	assert.Contains(t, lim.windows, "login:d@agoras.no")
}
