// Package cache absorbs poll traffic for sessions that have already reached
// a terminal state. Only terminal statuses are cached; an initiated session
// always goes to the store so a late callback is never masked.
package cache

import (
	"context"
	"time"

	"lipia-service/internal/domain/payment"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewStatusCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StatusCache {
	return &StatusCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached terminal status for a correlation id, if any.
// Cache failures degrade to a store read.
func (c *StatusCache) Get(ctx context.Context, correlationID string) (payment.SessionStatus, bool) {
	val, err := c.client.Get(ctx, key(correlationID)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Warn("status cache read failed", zap.Error(err))
		return "", false
	}
	return payment.SessionStatus(val), true
}

// Set stores a terminal status. Non-terminal statuses are ignored.
func (c *StatusCache) Set(ctx context.Context, correlationID string, status payment.SessionStatus) {
	if !status.Terminal() {
		return
	}
	if err := c.client.Set(ctx, key(correlationID), string(status), c.ttl).Err(); err != nil {
		c.logger.Warn("status cache write failed", zap.Error(err))
	}
}

func key(correlationID string) string {
	return "payment:status:" + correlationID
}
