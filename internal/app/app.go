package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Dhoini/stream-access-service/internal/billing"
	"github.com/Dhoini/stream-access-service/internal/config"
	"github.com/Dhoini/stream-access-service/internal/db"
	"github.com/Dhoini/stream-access-service/internal/http/handlers"
	"github.com/Dhoini/stream-access-service/internal/http/routes"
	"github.com/Dhoini/stream-access-service/internal/kafka"
	"github.com/Dhoini/stream-access-service/internal/metrics"
	"github.com/Dhoini/stream-access-service/internal/middleware"
	"github.com/Dhoini/stream-access-service/internal/repository"
	"github.com/Dhoini/stream-access-service/internal/repository/postgres"
	"github.com/Dhoini/stream-access-service/internal/services"
	"github.com/Dhoini/stream-access-service/internal/stripe"
	"github.com/Dhoini/stream-access-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 15 * time.Second

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config *config.Config
	Logger *logger.Logger
	Router *gin.Engine

	Access       *services.AccessService
	Checkout     *services.CheckoutService
	Confirmation *services.ConfirmationService

	events  *services.EventPublisher
	server  *http.Server
	closers []func() error
}

// New подключает хранилища и внешние сервисы и собирает HTTP-роутер.
// При ошибке уже открытые соединения закрываются.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warnw("JWT secret is not set, every authenticated request will be rejected")
	}
	if cfg.Stripe.APIKey == "" {
		log.Warnw("Stripe API key is not set, checkout will fail")
	}

	policy, err := services.PolicyFromName(cfg.Access.SubscriptionPolicy)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	accessMetrics := metrics.NewAccessMetrics(registry, log)

	// Каталог трансляций и права доступа
	pool, err := postgres.NewConnection(ctx, cfg.Database.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	a.addCloser(func() error { pool.Close(); return nil })

	// Подписки читаются через sqlx
	dbClient, err := db.NewDBClient(ctx, cfg.Database.DSN, log)
	if err != nil {
		return nil, err
	}
	a.addCloser(dbClient.Close)

	streams := postgres.NewStreamRepository(pool, log)
	var entitlements repository.EntitlementRepository = postgres.NewEntitlementRepository(pool, log)
	var pending repository.PendingCheckoutStore
	healthChecks := map[string]handlers.HealthChecker{"postgres": dbClient}

	if cfg.Redis.Enabled {
		redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.addCloser(redisCache.Close)

		entitlements = repository.NewCachedEntitlementRepository(entitlements, redisCache, log)
		pending = redisCache
		healthChecks["redis"] = redisCache
		log.Infow("Using Redis for entitlement cache and pending checkouts")
	} else {
		// Открытые покупки видны только этому экземпляру
		pending = repository.NewInMemoryPendingCheckoutStore()
		log.Warnw("Redis is disabled, pending checkouts are kept in process memory")
	}

	var producer kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log); err != nil {
			log.Warnw("Failed to ensure Kafka topic, relying on broker auto-creation", "error", err)
		}
		producer, err = kafka.NewProducer(cfg.Kafka.Driver, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		a.addCloser(producer.Close)
		log.Infow("Kafka producer initialized", "driver", cfg.Kafka.Driver, "topic", cfg.Kafka.Topic)
	}

	processor := stripe.NewStripeClient(cfg.Stripe.APIKey, log)
	tiers := billing.NewSubscriptionResolver(repository.NewPostgresSubscriptionRepository(dbClient.DB(), log), accessMetrics, log)

	a.events = services.NewEventPublisher(producer, accessMetrics, log)
	a.Access = services.NewAccessService(streams, entitlements, tiers, policy, accessMetrics, log)
	a.Checkout = services.NewCheckoutService(services.CheckoutConfig{
		PublicURL:         cfg.App.PublicURL,
		Timeout:           cfg.Checkout.Timeout,
		PendingTTL:        cfg.Checkout.PendingTTL,
		IdempotencyWindow: cfg.Checkout.IdempotencyWindow,
		DefaultCurrency:   cfg.Stripe.Currency,
	}, streams, entitlements, pending, processor, a.events, accessMetrics, log)
	a.Confirmation = services.NewConfirmationService(entitlements, pending, processor, cfg.Checkout.Timeout, a.events, accessMetrics, log)

	h := routes.Handlers{
		Access:            handlers.NewAccessHandler(a.Access, log),
		Checkout:          handlers.NewCheckoutHandler(a.Checkout, a.Confirmation, log),
		Health:            handlers.NewHealthHandler(healthChecks),
		Auth:              middleware.NewJWTMiddleware(log, &middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)}),
		CheckoutRateLimit: middleware.RateLimit(cfg.Checkout.RateLimit, cfg.Checkout.RateBurst, log),
		Metrics:           registry,
	}
	if cfg.Stripe.WebhookSecret != "" {
		h.Webhook, err = handlers.NewWebhookHandler(cfg.Stripe.WebhookSecret, a.Confirmation, log)
		if err != nil {
			return nil, err
		}
	}

	a.Router = gin.New()
	routes.SetupRoutes(a.Router, h, log)

	a.server = &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Создание сессии оплаты может занять весь checkout.timeout
		WriteTimeout: cfg.Checkout.Timeout + 5*time.Second,
	}
	return a, nil
}

func (a *App) addCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Run обслуживает HTTP до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Infow("Starting HTTP server", "port", a.Config.App.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.Logger.Infow("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Errorw("HTTP server forced to shutdown", "error", err)
		return err
	}
	a.Logger.Infow("HTTP server stopped")
	return nil
}

// Close дожидается фоновых публикаций и закрывает соединения в обратном порядке.
func (a *App) Close() {
	a.events.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Errorw("Error closing resource", "error", err)
		}
	}
	a.closers = nil
}
