package limiter

import (
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/provider"

	"github.com/redis/go-redis/v9"
)

const DefaultPolicyName = "default"

// Manager holds one limiter per configured policy.
type Manager struct {
	limiters map[string]*RedisRateLimiter
}

func NewManager(cfg *conf.RateLimiterConfig, redisClient *redis.Client, ns provider.RedisNamespace) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rate limiter config is nil")
	}

	build := func(name string, policy conf.RateLimiterPolicy) (*RedisRateLimiter, error) {
		if policy.Limit <= 0 {
			return nil, fmt.Errorf("policy %q: limit must be positive", name)
		}
		interval, err := time.ParseDuration(policy.Interval)
		if err != nil {
			return nil, fmt.Errorf("policy %q: invalid interval: %w", name, err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("policy %q: interval must be positive", name)
		}
		rate := float64(policy.Limit) / interval.Seconds()
		return NewRedisRateLimiter(redisClient, ns, name, rate, float64(policy.Limit), interval*2), nil
	}

	limiters := make(map[string]*RedisRateLimiter, len(cfg.Policies)+1)
	def, err := build(DefaultPolicyName, cfg.Default)
	if err != nil {
		return nil, fmt.Errorf("failed to create default rate limiter: %w", err)
	}
	limiters[DefaultPolicyName] = def

	for name, policy := range cfg.Policies {
		l, err := build(name, policy)
		if err != nil {
			return nil, err
		}
		limiters[name] = l
	}
	return &Manager{limiters: limiters}, nil
}

// Get returns the named limiter, falling back to the default policy.
func (m *Manager) Get(name string) *RedisRateLimiter {
	if l, ok := m.limiters[name]; ok {
		return l
	}
	return m.limiters[DefaultPolicyName]
}
