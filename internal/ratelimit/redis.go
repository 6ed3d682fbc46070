// Redis-backed implementations of Limiter and CountLimiter for deployments
// running more than one API instance. Both scripts are atomic server-side so
// two instances cannot admit through the same slot.
//
// The in-memory limiter remains the default; this backend is opt-in via
// REDIS_ADDR.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// slotScript implements the single-slot gate: admit iff the key is absent,
// then stamp it with a TTL of the window. Returns the remaining TTL in
// milliseconds when blocked, 0 when admitted.
var slotScript = redis.NewScript(`
	local key = KEYS[1]
	local window_ms = tonumber(ARGV[1])

	local ttl = redis.call('PTTL', key)
	if ttl > 0 then
		return ttl
	end
	redis.call('SET', key, '1', 'PX', window_ms)
	return 0
`)

// countScript implements the sliding count window over a sorted set of
// admission timestamps. Returns 0 when admitted, otherwise milliseconds until
// the oldest admission slides out.
var countScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local max = tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now_ms - window_ms)
	local n = redis.call('ZCARD', key)
	if n >= max then
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local wait = (tonumber(oldest[2]) + window_ms) - now_ms
		if wait < 1 then wait = 1 end
		return wait
	end
	redis.call('ZADD', key, now_ms, tostring(now_ms) .. '-' .. tostring(n))
	redis.call('PEXPIRE', key, window_ms * 2)
	return 0
`)

// RedisLimiter gates through a shared Redis so the decision is global across
// API instances. On Redis failure it fails open: a lost suppression beats a
// blocked escalation, and the durable status guards still prevent duplicate
// alerts.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time // test seam
}

// NewRedisLimiter wraps an existing client. prefix namespaces the keys
// (e.g. "prudency:rl:").
func NewRedisLimiter(rdb *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, now: time.Now}
}

// Allow implements Limiter.
func (r *RedisLimiter) Allow(key string, window time.Duration) Decision {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	waitMs, err := slotScript.Run(ctx, r.rdb, []string{r.prefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return Decision{Allowed: true}
	}
	if waitMs > 0 {
		return Decision{Allowed: false, RetryAfter: ceilDuration(time.Duration(waitMs) * time.Millisecond)}
	}
	return Decision{Allowed: true}
}

// AllowN implements CountLimiter.
func (r *RedisLimiter) AllowN(key string, window time.Duration, max int) Decision {
	if max <= 0 {
		max = 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	waitMs, err := countScript.Run(ctx, r.rdb, []string{r.prefix + key},
		r.now().UnixMilli(), window.Milliseconds(), max).Int64()
	if err != nil {
		return Decision{Allowed: true}
	}
	if waitMs > 0 {
		return Decision{Allowed: false, RetryAfter: ceilDuration(time.Duration(waitMs) * time.Millisecond)}
	}
	return Decision{Allowed: true}
}
