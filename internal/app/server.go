package app

import (
	"context"
	"fmt"
	"log"

	"lipia-service/internal/cache"
	"lipia-service/internal/catalog"
	"lipia-service/internal/config"
	"lipia-service/internal/db"
	paymentHandler "lipia-service/internal/handlers/payment"
	plansHandler "lipia-service/internal/handlers/plans"
	subscriptionHandler "lipia-service/internal/handlers/subscription"
	"lipia-service/internal/middleware"
	"lipia-service/internal/pkg/currency"
	"lipia-service/internal/pkg/identity"
	"lipia-service/internal/pkg/ratelimit"
	"lipia-service/internal/provider/card"
	"lipia-service/internal/provider/mobilemoney"
	"lipia-service/internal/repository/postgres"
	paymentUsecase "lipia-service/internal/service/payment"
	subscriptionUsecase "lipia-service/internal/service/subscription"
	"lipia-service/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	cancel context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// ----- PostgreSQL -----
	pool, err := postgres.Connect(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := postgres.Migrate(s.cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("[REDIS] connected")

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- Currency & Catalog -----
	converter, err := currency.NewConverter(s.cfg.CanonicalCurrency, s.cfg.LocalizedCurrency, s.cfg.ConversionRate)
	if err != nil {
		return fmt.Errorf("invalid currency configuration: %w", err)
	}
	cat, err := catalog.Load(s.cfg.PlanCatalogPath, converter)
	if err != nil {
		return fmt.Errorf("failed to load plan catalog: %w", err)
	}

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	sessionRepo := postgres.NewPaymentSessionRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	planRepo := postgres.NewPlanRepository(pool)

	if err := planRepo.Seed(ctx, cat.List()); err != nil {
		return fmt.Errorf("failed to seed plan catalog: %w", err)
	}

	// ----- Providers -----
	cardClient := card.NewClient(s.cfg.CardBaseURL, s.cfg.CardAPIKey, s.cfg.CardTimeout, logger)
	mobileMoneyClient := mobilemoney.NewClient(
		s.cfg.MobileMoneyBaseURL,
		s.cfg.MobileMoneyConsumerKey,
		s.cfg.MobileMoneyConsumerSecret,
		s.cfg.MobileMoneyShortCode,
		s.cfg.MobileMoneyPasskey,
		s.cfg.MobileMoneyCallbackURL,
		s.cfg.MobileMoneyTimeout,
		logger,
	)

	// ----- Identity, WebSocket Hub, Cache, Rate Limiter -----
	verifier := identity.NewVerifier(s.cfg.JWTSecret, s.cfg.JWTIssuer)
	hub := ws.NewHub(verifier, logger)
	statusCache := cache.NewStatusCache(redisClient, s.cfg.SessionTTL, logger)
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// ----- Services -----
	activator := subscriptionUsecase.NewActivator(subscriptionRepo, cat, logger)
	paymentService := paymentUsecase.NewService(
		sessionRepo,
		paymentRepo,
		activator,
		cat,
		converter,
		cardClient,
		mobileMoneyClient,
		dbWrapper,
		hub,
		statusCache,
		logger,
		s.cfg.SessionTTL,
	)

	// ----- Background Sweep -----
	go paymentService.RunExpirySweep(ctx, s.cfg.SweepInterval)

	// ----- Handlers -----
	paymentHandlerInst := paymentHandler.NewPaymentHandler(paymentService, paymentRepo, s.cfg.CardWebhookSecret, logger)
	plansHandlerInst := plansHandler.NewPlansHandler(cat)
	subscriptionHandlerInst := subscriptionHandler.NewSubscriptionHandler(activator)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.RequestIDMiddleware(),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		PaymentHandler:      paymentHandlerInst,
		PlansHandler:        plansHandlerInst,
		SubscriptionHandler: subscriptionHandlerInst,
		Hub:                 hub,
		AuthMiddleware:      authMiddleware,
		RateLimiter:         rateLimiter,
	}
	SetupRouter(s.engine, logger, s.cfg, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Stop cancels the background sweep and any in-flight startup work.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}
