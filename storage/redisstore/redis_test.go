package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoras/agoras/core/session"
)

// newTestClient connects to TEST_REDIS_ADDR, or skips the test.
func newTestClient(t *testing.T) *redis.Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(newTestClient(t))
	profileID := uuid.New().String()

	s1 := session.New(profileID, time.Hour)
	s2 := session.New(profileID, time.Hour)
	require.NoError(t, store.Create(ctx, s1))
	require.NoError(t, store.Create(ctx, s2))

	got, err := store.Get(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, s1.ID, got.ID)
	assert.Equal(t, profileID, got.ProfileID)
	assert.WithinDuration(t, s1.ExpiresAt, got.ExpiresAt, time.Millisecond)

	require.NoError(t, store.Delete(ctx, s1.ID))
	_, err = store.Get(ctx, s1.ID)
	assert.Equal(t, session.ErrNotFound, err)

	require.NoError(t, store.DeleteByProfile(ctx, profileID))
	_, err = store.Get(ctx, s2.ID)
	assert.Equal(t, session.ErrNotFound, err)

	err = store.Create(ctx, session.Session{ID: uuid.New().String(), ProfileID: profileID, ExpiresAt: time.Now().Add(-time.Second)})
	assert.Error(t, err)
}

func TestLimiter(t *testing.T) {
	ctx := context.Background()
	lim := NewLimiter(newTestClient(t), 2, time.Minute)
	key := "test:" + uuid.New().String()
	defer func() { _ = lim.Reset(ctx, key) }()

	for _, want := range []bool{true, true, false, false} {
		ok, err := lim.Allow(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, ok)
	}

	require.NoError(t, lim.Reset(ctx, key))
	ok, err := lim.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_window(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	lim := NewLimiter(client, 5, time.Minute)
	key := "test:" + uuid.New().String()
	defer func() { _ = lim.Reset(ctx, key) }()

	_, err := lim.Allow(ctx, key)
	require.NoError(t, err)
	ttl, err := client.TTL(ctx, rateLimitPrefix+key).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl %s", ttl)

	// later attempts do not extend the window
	_, err = client.Expire(ctx, rateLimitPrefix+key, 10*time.Second).Result()
	require.NoError(t, err)
	_, err = lim.Allow(ctx, key)
	require.NoError(t, err)
	ttl, err = client.TTL(ctx, rateLimitPrefix+key).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= 10*time.Second, "ttl %s", ttl)
}
