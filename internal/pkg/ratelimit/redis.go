package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisLimiter is a fixed window counter on INCR/EXPIRE. Increments are atomic
// per key, so it does not share the DB limiter's over-admit window. A counter
// left without TTL, e.g. after a failed EXPIRE, gets one on the next call.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Allow(ctx context.Context, bucket, key string, limit, windowMinutes int) (bool, error) {
	redisKey := fmt.Sprintf("%s%s:%s", redisKeyPrefix, bucket, key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.TTL(ctx, redisKey)
		return nil
	}); err != nil {
		return false, err
	}

	count := incr.Val()
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, redisKey, time.Duration(windowMinutes)*time.Minute).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
