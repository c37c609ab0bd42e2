// Package app wires the modules together into one HTTP application.
package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sodam/server/internal/model"
	"github.com/sodam/server/internal/module/ai"
	"github.com/sodam/server/internal/module/auth"
	"github.com/sodam/server/internal/module/billing"
	"github.com/sodam/server/internal/module/billing/quota"
	"github.com/sodam/server/internal/module/content"
	"github.com/sodam/server/internal/module/payment"
	paymentprovider "github.com/sodam/server/internal/module/payment/provider"
	"github.com/sodam/server/internal/shared/cache"
	"github.com/sodam/server/internal/shared/config"
	"github.com/sodam/server/internal/shared/database"
	"github.com/sodam/server/internal/shared/logger"
	"github.com/sodam/server/internal/shared/metrics"
	"github.com/sodam/server/internal/shared/middleware"
	"github.com/sodam/server/internal/shared/ratelimit"
)

// App holds the assembled application.
type App struct {
	config  *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	redis   redis.UniversalClient
	metrics *metrics.Metrics
	router  *gin.Engine

	// Handlers
	authHandler    *auth.Handler
	billingHandler *billing.Handler
	quotaHandler   *quota.Handler
	paymentHandler *payment.Handler
	webhookHandler *payment.WebhookHandler
	aiHandler      *ai.Handler
	contentHandler *content.Handler

	// Cross-module services
	jwtManager     *auth.JWTManager
	billingService billing.ServiceInterface
	quotaGate      *quota.Gate
}

// New creates and wires a new application.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{
		config:  cfg,
		logger:  log,
		metrics: metrics.New(),
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	app.db = db

	if err := app.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// Redis is optional: rate limiting and analytics degrade to in-process
	// or disabled when it is absent.
	if cfg.Redis.Address != "" {
		redisClient, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, falling back to in-process stores", zap.Error(err))
		} else {
			app.redis = redisClient
		}
	}

	if err := app.initModules(); err != nil {
		return nil, fmt.Errorf("init modules: %w", err)
	}

	app.router = app.setupRouter()
	app.registerRoutes()

	return app, nil
}

func (a *App) migrate() error {
	return a.db.AutoMigrate(
		&model.User{},
		&billing.Subscription{},
		&billing.UsageLedger{},
		&billing.Plan{},
		&payment.Payment{},
		&payment.WebhookEvent{},
		&content.Post{},
	)
}

func (a *App) initModules() error {
	cfg := a.config

	// Billing core: subscriptions, plan limits, usage ledger, quota gate.
	billingRepo := billing.NewRepository(a.db)
	billingService := billing.NewService(billingRepo, a.logger)
	a.billingService = billingService
	a.billingHandler = billing.NewHandler(billingService)

	a.quotaGate = quota.NewGate(billingRepo, a.metrics, a.logger)
	a.quotaHandler = quota.NewHandler(a.quotaGate, billingService)

	// Auth.
	a.jwtManager = auth.NewJWTManager(&auth.JWTConfig{
		Secret:            cfg.Auth.JWTSecret,
		AccessTokenExpiry: cfg.Auth.AccessTokenExpiry,
	})
	var recorder auth.EventRecorder
	if a.redis != nil {
		recorder = auth.NewRedisRecorder(a.redis)
	}
	authService := auth.NewService(auth.NewUserRepository(a.db), a.jwtManager, billingService, recorder, a.logger)
	a.authHandler = auth.NewHandler(authService)

	// Payments.
	registry := paymentprovider.NewRegistry()
	registry.Register(paymentprovider.NewTossProvider(&paymentprovider.TossConfig{
		SecretKey: cfg.Payment.Toss.SecretKey,
		BaseURL:   cfg.Payment.Toss.BaseURL,
	}))
	if cfg.Payment.Stripe.APIKey != "" {
		registry.Register(paymentprovider.NewStripeProvider(&paymentprovider.StripeConfig{
			APIKey:        cfg.Payment.Stripe.APIKey,
			WebhookSecret: cfg.Payment.Stripe.WebhookSecret,
		}))
	}
	if cfg.Payment.Alipay.AppID != "" {
		alipayProv, err := paymentprovider.NewAlipayProvider(&paymentprovider.AlipayConfig{
			AppID:           cfg.Payment.Alipay.AppID,
			PrivateKey:      cfg.Payment.Alipay.PrivateKey,
			AlipayPublicKey: cfg.Payment.Alipay.AlipayPublicKey,
			IsProd:          cfg.Payment.Alipay.IsProd,
			NotifyURL:       cfg.Payment.Alipay.NotifyURL,
			ReturnURL:       cfg.Payment.Alipay.ReturnURL,
		})
		if err != nil {
			return fmt.Errorf("init alipay provider: %w", err)
		}
		registry.Register(alipayProv)
	}

	paymentRepo := payment.NewRepository(a.db)
	paymentService := payment.NewService(paymentRepo, registry, billingService, a.metrics, a.logger, cfg.Payment.DefaultProvider)
	a.paymentHandler = payment.NewHandler(paymentService)
	a.webhookHandler = payment.NewWebhookHandler(paymentRepo, registry, paymentService, a.logger)

	// AI proxy.
	aiClient := ai.NewClient(&ai.ClientConfig{
		UpstreamURL:      cfg.AI.UpstreamURL,
		APIKey:           cfg.AI.APIKey,
		RequestTimeout:   cfg.AI.RequestTimeout,
		FailureThreshold: cfg.AI.FailureThreshold,
		CircuitTimeout:   cfg.AI.CircuitTimeout,
	})
	a.aiHandler = ai.NewHandler(ai.NewService(aiClient, a.quotaGate, billingService, a.logger))

	// Content.
	contentService := content.NewService(content.NewRepository(a.db), a.quotaGate, billingService, a.logger)
	a.contentHandler = content.NewHandler(contentService)

	return nil
}

func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (a *App) registerRoutes() {
	v1 := a.router.Group("/api/v1")

	// Public routes: signup, login, plan catalog, gateway webhooks.
	public := v1.Group("")
	a.authHandler.RegisterPublicRoutes(public)
	a.billingHandler.RegisterPublicRoutes(public)
	a.webhookHandler.RegisterRoutes(public)

	// Authenticated routes, throttled and metered per user.
	authed := v1.Group("")
	authed.Use(auth.Middleware(a.jwtManager))
	authed.Use(middleware.RateLimit(a.rateLimiter(), a.logger))
	authed.Use(middleware.Metering(a.quotaGate, a.billingService, a.logger))

	a.authHandler.RegisterRoutes(authed)
	a.billingHandler.RegisterRoutes(authed)
	a.quotaHandler.RegisterRoutes(authed)
	a.paymentHandler.RegisterRoutes(authed)
	a.aiHandler.RegisterRoutes(authed)
	a.contentHandler.RegisterRoutes(authed)
}

// rateLimiter builds the per-user limiter on Redis when available, falling
// back to the in-process store.
func (a *App) rateLimiter() *ratelimit.Limiter {
	rpm := a.config.RateLimit.RequestsPerMinute
	if rpm <= 0 {
		rpm = 120
	}

	store := ratelimit.NewMemoryStore()
	if a.config.RateLimit.Backend == "redis" && a.redis != nil {
		store = ratelimit.NewRedisStore(a.redis)
	}
	return ratelimit.NewLimiter(store, rpm, time.Minute)
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop releases application resources.
func (a *App) Stop() {
	if a.redis != nil {
		if err := cache.Close(a.redis); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
