package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// unlockLua deletes the key only if it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Redis is a SETNX lock shared by every replica pointed at the same server.
type Redis struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	ttl      time.Duration
	retry    time.Duration
	logger   *zap.Logger
}

// NewRedis creates a lock backed by rdb. ttl bounds how long a crashed holder
// can block others; retry is the polling interval while waiting.
func NewRedis(rdb *redis.Client, ttl, retry time.Duration, logger *zap.Logger) *Redis {
	return &Redis{
		rdb:      rdb,
		unlockSc: redis.NewScript(unlockLua),
		ttl:      ttl,
		retry:    retry,
		logger:   logger.Named("lock"),
	}
}

func lockKey(key string) string {
	return "predictsol:lock:" + key
}

// Lock blocks until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.rdb.SetNX(ctx, lk, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		// The caller's context may already be cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.unlockSc.Run(unlockCtx, r.rdb, []string{lk}, token).Err(); err != nil {
			r.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

var _ Locker = (*Redis)(nil)
