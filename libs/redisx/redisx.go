package redisx

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Open builds a redis client from an address; returns nil when unconfigured
// so callers can treat the client as optional.
func Open(addr string) *redis.Client {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}

// releaseScript deletes the lock key only if it still holds our token, so an
// expired lock taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Mutex is a best-effort distributed TTL lock (SET NX PX). It is used to keep
// a periodic job single-flight across instances; it is not a fencing lock.
type Mutex struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewMutex(rdb *redis.Client, key string, ttl time.Duration) *Mutex {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Mutex{rdb: rdb, key: key, ttl: ttl}
}

// TryLock attempts to take the lock; it reports false without error when the
// lock is held elsewhere. The returned release func is safe to call once.
func (m *Mutex) TryLock(ctx context.Context, token string) (bool, func(context.Context), error) {
	if m == nil || m.rdb == nil {
		// No redis configured: single-instance deployment, nothing to coordinate.
		return true, func(context.Context) {}, nil
	}
	ok, err := m.rdb.SetNX(ctx, m.key, token, m.ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}
	release := func(ctx context.Context) {
		_, _ = releaseScript.Run(ctx, m.rdb, []string{m.key}, token).Result()
	}
	return true, release, nil
}
