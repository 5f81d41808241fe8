package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newRedisLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "test:", wait, 5*time.Millisecond, zap.NewNop()), mr
}

func TestKeys(t *testing.T) {
	id, err := primitive.ObjectIDFromHex("5f1a2b3c4d5e6f7a8b9c0d1e")
	require.NoError(t, err)
	assert.Equal(t, "card:5f1a2b3c4d5e6f7a8b9c0d1e:2026-10-17", CardDayKey(id, "2026-10-17"))
	assert.Equal(t, "customer:5f1a2b3c4d5e6f7a8b9c0d1e", CustomerKey(id))
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second obtain waits then fails", func(t *testing.T) {
		locker, _ := newRedisLocker(t, 30*time.Millisecond)

		held, err := locker.Obtain(ctx, "k", time.Second)
		require.NoError(t, err)

		_, err = locker.Obtain(ctx, "k", time.Second)
		require.ErrorIs(t, err, ErrNotAcquired)

		require.NoError(t, held.Release(ctx))
		again, err := locker.Obtain(ctx, "k", time.Second)
		require.NoError(t, err)
		require.NoError(t, again.Release(ctx))
	})

	t.Run("release after expiry does not delete a newer holder", func(t *testing.T) {
		locker, mr := newRedisLocker(t, 30*time.Millisecond)

		stale, err := locker.Obtain(ctx, "k", time.Second)
		require.NoError(t, err)
		mr.FastForward(2 * time.Second)

		fresh, err := locker.Obtain(ctx, "k", time.Second)
		require.NoError(t, err)

		require.ErrorIs(t, stale.Release(ctx), ErrNotHeld)
		assert.True(t, mr.Exists("test:lock:k"))
		require.NoError(t, fresh.Release(ctx))
		assert.False(t, mr.Exists("test:lock:k"))
	})

	t.Run("waiter gets the lock once released", func(t *testing.T) {
		locker, _ := newRedisLocker(t, time.Second)

		held, err := locker.Obtain(ctx, "k", time.Second)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			lk, err := locker.Obtain(ctx, "k", time.Second)
			if err == nil {
				err = lk.Release(ctx)
			}
			done <- err
		}()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, held.Release(ctx))
		require.NoError(t, <-done)
	})
}

func TestWithLockSerializes(t *testing.T) {
	lockers := map[string]Locker{
		"local": NewLocalLocker(2 * time.Second),
	}
	redisLocker, _ := newRedisLocker(t, 2*time.Second)
	lockers["redis"] = redisLocker

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := WithLock(context.Background(), locker, "customer:x", time.Second, func() error {
						n := atomic.AddInt32(&inside, 1)
						for {
							m := atomic.LoadInt32(&maxInside)
							if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
								break
							}
						}
						time.Sleep(2 * time.Millisecond)
						atomic.AddInt32(&inside, -1)
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxInside)
		})
	}
}

func TestLocalLockerExpiry(t *testing.T) {
	locker := NewLocalLocker(10 * time.Millisecond)
	now := time.Now()
	locker.now = func() time.Time { return now }

	first, err := locker.Obtain(context.Background(), "k", time.Second)
	require.NoError(t, err)

	_, err = locker.Obtain(context.Background(), "k", time.Second)
	require.ErrorIs(t, err, ErrNotAcquired)

	now = now.Add(2 * time.Second)
	second, err := locker.Obtain(context.Background(), "k", time.Second)
	require.NoError(t, err)

	require.ErrorIs(t, first.Release(context.Background()), ErrNotHeld)
	require.NoError(t, second.Release(context.Background()))
}
