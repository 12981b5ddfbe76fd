// redis.go implements the Limiter interface on top of redis_rate, giving
// rate-limit correctness across multiple worker processes: the counter
// increment is atomic inside Redis, so two workers can never both grant the
// last slot for a token.
package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the same requests-per-window budget as MemoryLimiter
// but keeps counters in Redis with per-key expiry.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter creates a Redis-backed limiter over an existing client.
func NewRedisLimiter(client *redis.Client, limit int, period time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if period <= 0 {
		period = DefaultWindow
	}
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   limit,
			Burst:  limit,
			Period: period,
		},
	}
}

// Allow consults Redis for the key's budget. Errors reaching Redis are
// surfaced to the caller, which treats them as store failures rather than
// silently allowing the request.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	res, err := rl.limiter.Allow(ctx, "ratelimit:"+key, rl.limit)
	if err != nil {
		return Result{}, err
	}
	if res.Allowed > 0 {
		return Result{Allowed: true}, nil
	}
	retry := res.RetryAfter
	if retry < time.Second {
		retry = time.Second
	}
	return Result{Allowed: false, RetryAfter: retry}, nil
}
