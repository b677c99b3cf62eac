package middleware

import (
	"fmt"
	"net/http"
	"time"

	xerrors "lipia-service/internal/pkg/errors"
	"lipia-service/internal/pkg/ratelimit"
	"lipia-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware throttles payment initiations per user. Redis being
// down degrades to allowing the request; initiation is already guarded by
// provider-side limits and this must not take payments down with the cache.
func RateLimitMiddleware(limiter *ratelimit.Limiter, logger *zap.Logger, name string, max int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := MustGetUserID(c)
		key := fmt.Sprintf("payments:%s:%d", name, userID)

		allowed, err := limiter.Allow(c.Request.Context(), key, max, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			response.Error(c, http.StatusTooManyRequests, "too many payment attempts", xerrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
