package limiter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lltxwdk/minimars-server/internal/provider"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills the bucket by elapsed time, then takes one token if it can.
// It returns {allowed, tokens_left_x1000}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local expire_seconds = math.ceil(tonumber(ARGV[4]))

	local tokens = tonumber(redis.call("HGET", key, "tokens"))
	local last = tonumber(redis.call("HGET", key, "last_refill"))
	if tokens == nil or last == nil then
		tokens = capacity
		last = now
	end

	tokens = math.min(capacity, tokens + math.max(0, now - last) * rate)

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end
	redis.call("HSET", key, "tokens", tostring(tokens), "last_refill", tostring(now))
	redis.call("EXPIRE", key, expire_seconds)
	return {allowed, math.floor(tokens * 1000)}
`)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RedisRateLimiter is a distributed token bucket keyed by caller.
type RedisRateLimiter struct {
	redisClient   *redis.Client
	namespace     provider.RedisNamespace
	policy        string
	rate          float64 // tokens per second
	bucketSize    float64
	keyExpiration time.Duration
	now           func() time.Time
}

func NewRedisRateLimiter(redisClient *redis.Client, ns provider.RedisNamespace, policy string, rate float64, size float64, expiration time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		redisClient:   redisClient,
		namespace:     ns,
		policy:        policy,
		rate:          rate,
		bucketSize:    size,
		keyExpiration: expiration,
		now:           time.Now,
	}
}

// Allow takes a token for identifier under this limiter's policy.
func (l *RedisRateLimiter) Allow(ctx context.Context, identifier string) (Decision, error) {
	key := fmt.Sprintf("%sratelimit:%s:%s", l.namespace, l.policy, identifier)
	now := float64(l.now().UnixNano()) / 1e9

	res, err := tokenBucketScript.Run(ctx, l.redisClient, []string{key}, l.rate, l.bucketSize, now, l.keyExpiration.Seconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to execute rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("unexpected rate limit script result: %v", res)
	}

	tokens := float64(res[1]) / 1000
	d := Decision{Allowed: res[0] == 1, Remaining: int(math.Floor(tokens))}
	if !d.Allowed && l.rate > 0 {
		d.RetryAfter = time.Duration((1 - tokens) / l.rate * float64(time.Second))
	}
	return d, nil
}
