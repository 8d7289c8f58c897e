package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lua scripts keep the read-refill-debit cycle atomic across instances.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local bucket = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(bucket[1]) or capacity
local last = tonumber(bucket[2]) or now
local delta = math.max(0, now - last)
local new_tokens = math.min(capacity, tokens + delta * refill_rate)
local allowed = 0
if new_tokens >= 1 then
  new_tokens = new_tokens - 1
  allowed = 1
end
redis.call('HMSET', key, 'tokens', new_tokens, 'last', now)
redis.call('EXPIRE', key, 60)
return {allowed, tostring(new_tokens)}
`)

var tokenBucketPeekScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local bucket = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(bucket[1]) or capacity
local last = tonumber(bucket[2]) or now
local delta = math.max(0, now - last)
return tostring(math.min(capacity, tokens + delta * refill_rate))
`)

// RedisLimiter is a KeyLimiter backed by a shared Redis token bucket, for
// deployments where several server instances must share one quota. Redis
// errors fail open: the throttle is advisory and availability wins over
// strict accounting when the backend is unreachable.
type RedisLimiter struct {
	client  *redis.Client
	cfg     Config
	logger  *zap.Logger
	prefix  string
	timeout time.Duration
}

// NewRedisLimiter creates a Redis-backed limiter using the shared bucket
// parameters. Keys are namespaced under "modserve:ratelimit:".
func NewRedisLimiter(client *redis.Client, cfg Config, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		prefix:  "modserve:ratelimit:",
		timeout: 500 * time.Millisecond,
	}
}

// Allow atomically refills and debits one token for key.
func (rl *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	now := float64(time.Now().UnixNano()) / float64(time.Second)
	res, err := tokenBucketScript.Run(ctx, rl.client, []string{rl.prefix + key},
		rl.cfg.BucketSize, rl.cfg.RefillRate, now).Result()
	if err != nil {
		rl.logger.Warn("redis rate limiter unavailable, failing open",
			zap.String("key", key), zap.Error(err))
		return true
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 1 {
		rl.logger.Warn("unexpected redis script result", zap.Any("result", res))
		return true
	}
	allowed, _ := vals[0].(int64)
	return allowed == 1
}

// Remaining returns the whole tokens key has left without consuming any.
func (rl *RedisLimiter) Remaining(key string) int {
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	now := float64(time.Now().UnixNano()) / float64(time.Second)
	res, err := tokenBucketPeekScript.Run(ctx, rl.client, []string{rl.prefix + key},
		rl.cfg.BucketSize, rl.cfg.RefillRate, now).Result()
	if err != nil {
		rl.logger.Warn("redis rate limiter peek failed",
			zap.String("key", key), zap.Error(err))
		return rl.cfg.BucketSize
	}
	var tokens float64
	if _, err := fmt.Sscanf(fmt.Sprint(res), "%f", &tokens); err != nil {
		return rl.cfg.BucketSize
	}
	return int(tokens)
}
