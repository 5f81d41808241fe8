package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

type RedisLocker struct {
	client    *redis.Client
	namespace string
	wait      time.Duration
	retry     time.Duration
	logger    *zap.Logger
}

func NewRedisLocker(client *redis.Client, namespace string, wait, retry time.Duration, logger *zap.Logger) *RedisLocker {
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &RedisLocker{
		client:    client,
		namespace: namespace,
		wait:      wait,
		retry:     retry,
		logger:    logger.Named("RedisLocker"),
	}
}

type redisLock struct {
	locker *RedisLocker
	key    string
	token  string
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	fullKey := l.namespace + "lock:" + key
	token := uuid.NewString()

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(waitCtx, fullKey, token, ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			l.logger.Error("Obtain: SetNX failed", zap.Error(err), zap.String("key", fullKey))
			return nil, fmt.Errorf("failed to set lock key: %w", err)
		}
		if ok {
			return &redisLock{locker: l, key: fullKey, token: token}, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrNotAcquired
		case <-ticker.C:
		}
	}
}

func (rl *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, rl.locker.client, []string{rl.key}, rl.token).Int64()
	if err != nil {
		rl.locker.logger.Error("Release: script failed", zap.Error(err), zap.String("key", rl.key))
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if n == 0 {
		// ttl elapsed and someone else may hold it now
		rl.locker.logger.Warn("Release: lock no longer held", zap.String("key", rl.key))
		return ErrNotHeld
	}
	return nil
}
