package ai

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"hermes/pkg/errors"
)

// RedisLimiter implements distributed token bucket rate limiting via Redis.
// Required when multiple instances share one inference endpoint quota.
type RedisLimiter struct {
	client      *redis.Client
	rate        float64 // requests per second
	burst       int
	key         string
	tokenScript *redis.Script
}

// Token bucket refill and consume in one atomic call.
// KEYS[1] = bucket key, ARGV = rate, burst, now (seconds)
const luaTokenBucket = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])

if not tokens then
    tokens = burst
    last_update = now
end

local elapsed = now - last_update
tokens = math.min(burst, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1.0 then
    tokens = tokens - 1.0
    allowed = 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', key, 3600)

return allowed
`

// NewRedisLimiter creates a Redis-backed limiter sharing the bucket under the
// given key across all processes.
func NewRedisLimiter(client *redis.Client, key string, reqPerMinute float64, burst int) *RedisLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RedisLimiter{
		client:      client,
		rate:        reqPerMinute / 60.0,
		burst:       burst,
		key:         "rate_limit:inference:" + key,
		tokenScript: redis.NewScript(luaTokenBucket),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (l *RedisLimiter) Wait(ctx context.Context) error {
	for {
		allowed, err := l.tryAcquire(ctx)
		if err != nil {
			return errors.Wrap(err, "redis rate limiter")
		}
		if allowed {
			return nil
		}

		waitTime := time.Duration(float64(time.Second) / l.rate)

		select {
		case <-ctx.Done():
			return errors.Wrap(errors.ErrRateLimitExceeded, ctx.Err().Error())
		case <-time.After(waitTime):
		}
	}
}

// Limit returns the configured rate limit in requests per minute.
func (l *RedisLimiter) Limit() float64 {
	return l.rate * 60.0
}

func (l *RedisLimiter) tryAcquire(ctx context.Context) (bool, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	result, err := l.tokenScript.Run(ctx, l.client, []string{l.key}, l.rate, l.burst, now).Int()
	if err != nil {
		return false, errors.Wrap(err, "failed to execute token bucket script")
	}

	return result == 1, nil
}
