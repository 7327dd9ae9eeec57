package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Increment and set the window expiry atomically so concurrent requests from
// one key never split the window.
var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {n, ttl}
`)

// Redis is a fixed-window limiter with counts shared across replicas. When the
// Redis call fails it degrades to an in-process fallback rather than blocking
// traffic on an unavailable counter.
type Redis struct {
	client   *redis.Client
	window   time.Duration
	prefix   string
	fallback *Memory
}

// NewRedis returns a shared limiter over client with the given window.
func NewRedis(client *redis.Client, window time.Duration) *Redis {
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{
		client:   client,
		window:   window,
		prefix:   "qb:rl:",
		fallback: NewMemory(window),
	}
}

func (r *Redis) Allow(ctx context.Context, key string, limit int) Decision {
	if limit <= 0 {
		limit = 1
	}
	if r.client == nil {
		return r.fallback.Allow(ctx, key, limit)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := windowScript.Run(ctx, r.client, []string{r.prefix + key}, r.window.Milliseconds()).Result()
	if err != nil {
		return r.fallback.Allow(ctx, key, limit)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return r.fallback.Allow(ctx, key, limit)
	}

	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)
	if ttlMs < 0 {
		ttlMs = r.window.Milliseconds()
	}
	return decide(int(count), limit, time.Now().UTC().Add(time.Duration(ttlMs)*time.Millisecond))
}
