// Package redisstore keeps sessions and rate limit counters in redis.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/session"
)

const (
	sessionPrefix         = "session:"
	profileSessionsPrefix = "profile_sessions:"
	rateLimitPrefix       = "rate:"
)

// NewClient connects to the redis server of conf and pings it.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Redis.Addr,
		Password:     conf.Redis.Password,
		DB:           conf.Redis.DB,
		PoolSize:     conf.Redis.PoolSize,
		DialTimeout:  conf.Redis.DialTimeout,
		ReadTimeout:  conf.Redis.ReadTimeout,
		WriteTimeout: conf.Redis.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// SessionStore stores each session under its own key, expiring with the session,
// and indexes the session ids of every profile in a set.
type SessionStore struct {
	client redis.UniversalClient
}

var _ session.Store = (*SessionStore)(nil)

func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Create(ctx context.Context, sess session.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "marshalling session")
	}

	profileKey := profileSessionsPrefix + sess.ProfileID
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionPrefix+sess.ID, data, ttl)
		pipe.SAdd(ctx, profileKey, sess.ID)
		pipe.Expire(ctx, profileKey, ttl) // sessions share one TTL: the newest one expires last
		return nil
	})
	return errors.Wrap(err, "storing session")
}

func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "getting session")
	}

	var sess session.Session
	if err = json.Unmarshal(data, &sess); err != nil {
		return session.Session{}, errors.Wrap(err, "unmarshalling session")
	}
	if sess.Expired(time.Now()) {
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		if err == session.ErrNotFound {
			return nil
		}
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionPrefix+id)
		pipe.SRem(ctx, profileSessionsPrefix+sess.ProfileID, id)
		return nil
	})
	return errors.Wrap(err, "deleting session")
}

func (s *SessionStore) DeleteByProfile(ctx context.Context, profileID string) error {
	profileKey := profileSessionsPrefix + profileID
	ids, err := s.client.SMembers(ctx, profileKey).Result()
	if err != nil {
		return errors.Wrap(err, "listing profile sessions")
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionPrefix+id)
	}
	keys = append(keys, profileKey)
	return errors.Wrap(s.client.Del(ctx, keys...).Err(), "deleting profile sessions")
}

// Limiter allows `attempts` per key within each fixed window.
type Limiter struct {
	client   redis.UniversalClient
	attempts int
	window   time.Duration
}

var _ session.Limiter = (*Limiter)(nil)

func NewLimiter(client redis.UniversalClient, attempts int, window time.Duration) *Limiter {
	return &Limiter{client: client, attempts: attempts, window: window}
}

func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	key = rateLimitPrefix + key

	// the counter and its window are set together; NX keeps the first window running (redis >= 7)
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "counting attempt")
	}
	return incr.Val() <= int64(l.attempts), nil
}

func (l *Limiter) Reset(ctx context.Context, key string) error {
	return errors.Wrap(l.client.Del(ctx, rateLimitPrefix+key).Err(), "resetting attempts")
}
