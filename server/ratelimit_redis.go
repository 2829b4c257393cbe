package server

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRateLimiter is a fixed-window counter shared by every replica that
// points at the same Redis.
type redisRateLimiter struct {
	client *redis.Client
	cfg    *rateLimiterConfig
	prefix string
}

func newRedisRateLimiter(client *redis.Client, cfg *rateLimiterConfig) *redisRateLimiter {
	return &redisRateLimiter{client: client, cfg: cfg, prefix: "chatter:ratelimit:"}
}

// Allow implements RateLimiter. Redis errors fail open.
func (rl *redisRateLimiter) Allow(ctx context.Context, ip string) bool {
	if !rl.cfg.enabled {
		return true
	}
	bucket := time.Now().UnixNano() / int64(rl.cfg.window)
	key := rl.prefix + ip + ":" + strconv.FormatInt(bucket, 10)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.cfg.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("redis rate limiter unavailable, allowing request", slog.Any("err", err), slog.String("component", "http"))
		return true
	}
	return incr.Val() <= int64(rl.cfg.requestsPerIP)
}
