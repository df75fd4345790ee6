package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares send counters between instances.
type RedisLimiter struct {
	client redis.UniversalClient
	policy Policy
	prefix string
}

func NewRedisLimiter(client redis.UniversalClient, p Policy) *RedisLimiter {
	return &RedisLimiter{client: client, policy: p.withDefaults(), prefix: "voty:otp_rate"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	lastKey := fmt.Sprintf("%s:last:%s", l.prefix, key)
	countKey := fmt.Sprintf("%s:count:%s", l.prefix, key)

	if l.policy.Cooldown > 0 {
		ok, err := l.client.SetNX(ctx, lastKey, 1, l.policy.Cooldown).Result()
		if err != nil {
			return fmt.Errorf("ratelimit cooldown: %w", err)
		}
		if !ok {
			return &LimitedError{RetryAfter: l.ttl(ctx, lastKey, l.policy.Cooldown)}
		}
	}

	cnt, err := l.client.Incr(ctx, countKey).Result()
	if err != nil {
		return fmt.Errorf("ratelimit incr: %w", err)
	}
	if cnt == 1 {
		if err := l.client.Expire(ctx, countKey, l.policy.Window).Err(); err != nil {
			return fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	if int(cnt) > l.policy.MaxInWindow {
		// A rejected send must not hold the cooldown.
		if l.policy.Cooldown > 0 {
			if err := l.client.Del(ctx, lastKey).Err(); err != nil {
				return fmt.Errorf("ratelimit release cooldown: %w", err)
			}
		}
		return &LimitedError{RetryAfter: l.ttl(ctx, countKey, l.policy.Window)}
	}
	return nil
}

func (l *RedisLimiter) ttl(ctx context.Context, key string, fallback time.Duration) time.Duration {
	d, err := l.client.TTL(ctx, key).Result()
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
