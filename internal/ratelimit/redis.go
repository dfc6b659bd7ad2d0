package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

const redisKeyPrefix = "notify_limit:"

// RedisLimiter shares notification windows across instances. SET NX with a
// TTL is the atomic gate: the first caller to set the key wins the window.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) CanNotify(ctx context.Context, userID string, kind domain.NotificationType, window time.Duration) (bool, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	ok, err := l.client.SetNX(ctx, redisKeyPrefix+limiterKey(userID, kind), 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return ok, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, userID string, kind domain.NotificationType) error {
	if err := l.client.Del(ctx, redisKeyPrefix+limiterKey(userID, kind)).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}

func (l *RedisLimiter) TimeUntilAllowed(ctx context.Context, userID string, kind domain.NotificationType, window time.Duration) (time.Duration, error) {
	ttl, err := l.client.PTTL(ctx, redisKeyPrefix+limiterKey(userID, kind)).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit ttl: %w", err)
	}
	// PTTL reports negative durations for missing keys and keys without
	// an expiry.
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}
