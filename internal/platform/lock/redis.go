// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const retryInterval = 50 * time.Millisecond

// releaseScript deletes the lease only if it still carries our token, so an
// expired lease taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX leases.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

/*
NewRedisLocker returns a lease-based Locker.

Parameters:
  - client: *redis.Client
  - prefix: string (e.g. "lock:book:")
  - ttl: time.Duration (upper bound a crashed holder can block others)
  - logger: *slog.Logger
*/
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

/*
Acquire polls for the lease until it is granted or context is done.

Returns:
  - func(): Release via compare-and-delete
  - error: ErrNotAcquired when the wait ends, or redis errors
*/
func (locker *RedisLocker) Acquire(context context.Context, key string) (func(), error) {

	// Unique token per holder
	name := locker.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		granted, err := locker.client.SetNX(context, name, token, locker.ttl).Result()
		if err != nil && !errors.Is(err, context.Err()) {
			return nil, fmt.Errorf("redis_lock_acquire_failed: %w", err)
		}

		if granted {
			return locker.releaser(name, token), nil
		}

		select {
		case <-context.Done():
			return nil, errors.Join(ErrNotAcquired, context.Err())
		case <-ticker.C:
		}
	}
}

func (locker *RedisLocker) releaser(name, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		// Release must run even when the request context is already canceled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, locker.client, []string{name}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			locker.logger.Warn("lock_release_failed",
				slog.String("key", name),
				slog.Any("error", err),
			)
		}
	}
}
