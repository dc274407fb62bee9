package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter on Redis INCR + EXPIRE. It fails
// open: when Redis is unreachable the request is allowed rather than the
// whole API going down with it.
type RedisLimiter struct {
	rdb *redis.Client
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) error {
	count, err := l.rdb.Incr(ctx, "ratelimit:"+key).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		l.rdb.Expire(ctx, "ratelimit:"+key, window)
	}
	if count > int64(limit) {
		return ErrLimited
	}
	return nil
}
