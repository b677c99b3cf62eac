// internal/app/router.go
package app

import (
	"lipia-service/internal/config"
	paymentHandler "lipia-service/internal/handlers/payment"
	plansHandler "lipia-service/internal/handlers/plans"
	subscriptionHandler "lipia-service/internal/handlers/subscription"
	"lipia-service/internal/middleware"
	"lipia-service/internal/pkg/ratelimit"
	"lipia-service/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	PaymentHandler      *paymentHandler.PaymentHandler
	PlansHandler        *plansHandler.PlansHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	Hub                 *ws.Hub
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimiter         *ratelimit.Limiter
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, cfg config.AppConfig, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws/payments", h.Hub.HandleConnection)

	// ==================== Public Routes ====================
	api.GET("/plans", h.PlansHandler.ListPlans)

	// Provider-facing endpoints carry their own authentication: the card
	// webhook is HMAC signed, the mobile money callback is matched against
	// a known session and acknowledged regardless.
	api.POST("/payments/mobile-money/callback", h.PaymentHandler.MobileMoneyCallback)
	api.POST("/payments/card/webhook", h.PaymentHandler.CardWebhook)

	// ==================== Payments ====================
	payments := api.Group("/payments")
	payments.Use(h.AuthMiddleware.Auth())
	{
		initiate := payments.Group("")
		initiate.Use(middleware.RateLimitMiddleware(h.RateLimiter, logger, "initiate",
			int64(cfg.InitiateRateMax), cfg.InitiateRateWindow))
		{
			initiate.POST("/card/intent", h.PaymentHandler.CreateCardIntent)
			initiate.POST("/mobile-money/push", h.PaymentHandler.CreateMobileMoneyPush)
		}

		poll := payments.Group("")
		poll.Use(middleware.RateLimitMiddleware(h.RateLimiter, logger, "poll",
			int64(cfg.PollRateMax), cfg.PollRateWindow))
		{
			poll.GET("/status", h.PaymentHandler.GetStatus)
		}

		payments.GET("", h.PaymentHandler.ListPayments)
	}

	// ==================== Subscriptions ====================
	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(h.AuthMiddleware.Auth())
	{
		subscriptions.GET("/me", h.SubscriptionHandler.GetCurrent)
	}
}
