package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-fulfillment/pkg/instance"
)

const defaultLeaseTTL = 15 * time.Minute

// Locker hands out per-job leases so two workers never run the same job at
// once while unrelated jobs can still proceed elsewhere.
type Locker interface {
	TryLock(ctx context.Context, name string) (Unlock, bool, error)
}

// Unlock releases a lease obtained from TryLock.
type Unlock func(ctx context.Context) error

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
	LockKey(name string) string
}

// RedisLocker leases job names with SETNX and an owner token.
type RedisLocker struct {
	client redisStore
	ttl    time.Duration
}

func NewRedisLocker(client redisStore, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLocker{client: client, ttl: ttl}, nil
}

// TryLock claims the lease for name. ok is false when another worker holds it.
func (l *RedisLocker) TryLock(ctx context.Context, name string) (Unlock, bool, error) {
	if name == "" {
		return nil, false, errors.New("lock name is required")
	}
	key := l.client.LockKey("cron:" + name)
	owner := instance.GetID() + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		// a lease that expired and was taken over is left alone
		if _, err := l.client.DelIfValue(ctx, key, owner); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}, true, nil
}
