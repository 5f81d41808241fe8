package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lltxwdk/minimars-server/internal/conf"
)

func newManager(t *testing.T, cfg *conf.RateLimiterConfig) *Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m, err := NewManager(cfg, client, "test:")
	require.NoError(t, err)
	return m
}

func TestManager(t *testing.T) {
	cfg := &conf.RateLimiterConfig{
		Default: conf.RateLimiterPolicy{Interval: "1s", Limit: 10},
		Policies: map[string]conf.RateLimiterPolicy{
			"create_booking": {Interval: "1m", Limit: 2},
		},
	}
	m := newManager(t, cfg)

	assert.Equal(t, "create_booking", m.Get("create_booking").policy)
	assert.Equal(t, DefaultPolicyName, m.Get("unknown").policy)

	t.Run("invalid policy", func(t *testing.T) {
		_, err := NewManager(&conf.RateLimiterConfig{
			Default: conf.RateLimiterPolicy{Interval: "soon", Limit: 1},
		}, nil, "")
		require.Error(t, err)
	})
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	m := newManager(t, &conf.RateLimiterConfig{
		Default: conf.RateLimiterPolicy{Interval: "1m", Limit: 2},
	})
	l := m.Get(DefaultPolicyName)

	now := time.Unix(1_760_000_000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	d, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, 30*time.Second, d.RetryAfter, float64(time.Second))

	// other callers have their own bucket
	d, err = l.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// one token refills after 30s at 2 per minute
	now = now.Add(31 * time.Second)
	d, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
