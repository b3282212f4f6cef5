package payout

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// AccountLockPrefix for namespacing per-account locks
	AccountLockPrefix = "payout-lock:"

	// AccountLockTTL bounds how long a crashed request can hold an account.
	// The pending intent keeps the balance safe if the TTL expires mid-flight.
	AccountLockTTL = 30 * time.Second
)

// Locks serializes the authorization window per account: balance read,
// intent append and confirmation for one account never interleave.
type Locks interface {
	// Acquire returns a release func and whether the lock was obtained.
	Acquire(ctx context.Context, accountID string) (func(), bool, error)
}

// RedisLocks implements Locks with a SetNX distributed lock per account.
type RedisLocks struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisLocks(rdb *redis.Client, logger *zap.Logger) *RedisLocks {
	return &RedisLocks{rdb: rdb, logger: logger}
}

func (l *RedisLocks) Acquire(ctx context.Context, accountID string) (func(), bool, error) {
	key := AccountLockPrefix + accountID
	acquired, err := l.rdb.SetNX(ctx, key, "processing", AccountLockTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}
	release := func() {
		if err := l.rdb.Del(context.Background(), key).Err(); err != nil {
			l.logger.Warn("failed to release account lock",
				zap.String("accountID", accountID), zap.Error(err))
		}
	}
	return release, true, nil
}
