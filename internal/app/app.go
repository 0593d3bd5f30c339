package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/selimekin/storefront/internal/auth"
	"github.com/selimekin/storefront/internal/config"
	"github.com/selimekin/storefront/internal/event"
	handler "github.com/selimekin/storefront/internal/handler/http"
	"github.com/selimekin/storefront/internal/provider"
	"github.com/selimekin/storefront/internal/provider/mock"
	"github.com/selimekin/storefront/internal/provider/stripe"
	pgrepo "github.com/selimekin/storefront/internal/repository/postgres"
	redisrepo "github.com/selimekin/storefront/internal/repository/redis"
	"github.com/selimekin/storefront/internal/service"
	"github.com/selimekin/storefront/migrations"
	"github.com/selimekin/storefront/pkg/database"
	"github.com/selimekin/storefront/pkg/health"
	pkgkafka "github.com/selimekin/storefront/pkg/kafka"
	"github.com/selimekin/storefront/pkg/middleware"
	"github.com/selimekin/storefront/pkg/tracing"
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	pool            *pgxpool.Pool
	rdb             *redis.Client
	producer        *pkgkafka.Producer
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Tracing.
	traceCfg := tracing.DefaultConfig("storefront")
	traceCfg.Environment = cfg.Environment
	traceCfg.OTLPEndpoint = cfg.OTLPEndpoint
	traceCfg.SampleRate = cfg.TraceSample
	traceCfg.Enabled = cfg.TracingEnabled

	tracingShutdown, err := tracing.InitTracer(ctx, traceCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL pool with startup retry, migrations, and pool metrics.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.String("database", pgCfg.DBName),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	database.RegisterPoolMetrics(pool, "storefront")

	// Redis client for cart storage.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	// Kafka producer for domain events.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Payment gateway behind a circuit breaker.
	gateway, err := newGateway(cfg)
	if err != nil {
		return nil, err
	}
	breakered := provider.NewBreakerProvider(gateway, provider.DefaultBreakerConfig(), logger)
	logger.Info("payment provider initialized", slog.String("provider", gateway.Name()))

	// Repositories.
	productRepo := pgrepo.NewProductRepository(pool)
	reviewRepo := pgrepo.NewReviewRepository(pool)
	orderRepo := pgrepo.NewOrderRepository(pool)
	cartRepo := redisrepo.NewCartRepository(rdb, cfg.CartTTL())

	// Services.
	eventProducer := event.NewProducer(producer, logger)
	pricer := service.NewPricer(cfg.FreeShippingThreshold)
	catalogService := service.NewCatalogService(productRepo, reviewRepo, logger)
	cartService := service.NewCartService(cartRepo, productRepo, eventProducer, logger)
	orderService := service.NewOrderService(orderRepo, productRepo, cartRepo, pricer, eventProducer, logger)
	paymentService := service.NewPaymentService(orderRepo, cartRepo, orderService, breakered, eventProducer, logger, cfg.PaymentCurrency)

	// Auth.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry())

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	// Events are fire-and-forget; a broker outage degrades but does not
	// take the instance out of rotation.
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	router := handler.NewRouter(handler.RouterConfig{
		Catalog:            catalogService,
		Cart:               cartService,
		Orders:             orderService,
		Payments:           paymentService,
		Health:             healthHandler,
		TokenValidate:      jwtManager.MiddlewareValidator(),
		Logger:             logger,
		CORS:               middleware.DefaultCORSConfig(),
		PprofCIDRs:         cfg.PprofCIDRs,
		PaymentRateRPS:     cfg.PaymentRateRPS,
		PaymentRateBurst:   cfg.PaymentRateBurst,
		ProductCacheMaxAge: cfg.ProductCacheMaxAge,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		pool:            pool,
		rdb:             rdb,
		producer:        producer,
		httpServer:      httpServer,
		tracingShutdown: tracingShutdown,
	}, nil
}

// newGateway selects the payment provider from configuration.
func newGateway(cfg *config.Config) (provider.Provider, error) {
	switch cfg.PaymentProvider {
	case "stripe":
		return stripe.NewProvider(cfg.StripeAPIKey, cfg.StripeWebhookSecret), nil
	case "mock":
		return mock.NewProvider(cfg.MockWebhookSecret), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.PaymentProvider)
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
