// Package ratelimit throttles payment initiations per user over Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter struct {
	client *redis.Client
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow counts one attempt against the key's window and reports whether the
// caller is still within the limit.
func (l *Limiter) Allow(ctx context.Context, key string, max int64, window time.Duration) (bool, error) {
	fullKey := "ratelimit:" + key

	count, err := l.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiration on first attempt
	if count == 1 {
		l.client.Expire(ctx, fullKey, window)
	}

	return count <= max, nil
}
