package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/erickpaine43/Mascotas-sub000/pkg/database"
	"github.com/erickpaine43/Mascotas-sub000/pkg/health"
	pkgkafka "github.com/erickpaine43/Mascotas-sub000/pkg/kafka"
	"github.com/erickpaine43/Mascotas-sub000/pkg/tracing"

	"github.com/erickpaine43/Mascotas-sub000/internal/config"
	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/event"
	"github.com/erickpaine43/Mascotas-sub000/internal/gateway"
	gatewayhosted "github.com/erickpaine43/Mascotas-sub000/internal/gateway/hosted"
	gatewaymock "github.com/erickpaine43/Mascotas-sub000/internal/gateway/mock"
	handler "github.com/erickpaine43/Mascotas-sub000/internal/handler/http"
	"github.com/erickpaine43/Mascotas-sub000/internal/ledger"
	"github.com/erickpaine43/Mascotas-sub000/internal/repository/postgres"
	"github.com/erickpaine43/Mascotas-sub000/internal/service"
	"github.com/erickpaine43/Mascotas-sub000/migrations"
)

// App wires together all dependencies and runs the Mascotas server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	gatewayEvents  *pkgkafka.Consumer
	sweeper        *service.Sweeper
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "mascotas",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "mascotas")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis backs the idempotent gateway event consumer. Without it the
	// consumer could settle the same gateway event twice, so a failed
	// connection is fatal.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("host", cfg.RedisHost), slog.Int("port", cfg.RedisPort))

	// Initialize Kafka producer with connection validation and retry.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	orderRepo := postgres.NewOrderRepository(pool)
	stockRepo := postgres.NewStockRepository(pool)
	animalRepo := postgres.NewAnimalRepository(pool)

	eventProducer := event.NewProducer(producer, logger)
	stockLedger := ledger.New(logger)

	reservationService := service.NewReservationService(
		pool, stockLedger, eventProducer, logger, cfg.ReservationTTLDuration(),
	)
	orderService := service.NewOrderService(
		orderRepo, stockRepo, animalRepo, reservationService,
		domain.FlatRateTaxPolicy(cfg.TaxRateBps), eventProducer, logger,
	)
	checkoutService := service.NewCheckoutService(
		orderService, orderRepo, newGatewayProvider(cfg, logger),
		cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, logger,
	)
	settlementService := service.NewSettlementService(orderService, orderRepo, logger)
	stockService := service.NewStockService(stockRepo, animalRepo, orderRepo, logger)
	sweeper := service.NewSweeper(
		orderRepo, stockRepo, reservationService, eventProducer, logger,
		cfg.SweepIntervalDuration(),
	)

	// Gateway events arrive on Kafka as well as the webhook endpoint; the
	// consumer path deduplicates by event ID so webhook-then-kafka delivery
	// of the same event settles exactly once.
	eventConsumer := event.NewConsumer(settlementService, logger)
	idempotencyStore := pkgkafka.NewRedisIdempotencyStore(redisClient, "mascotas:gateway", 24*time.Hour)

	gatewayEventsConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  "mascotas-gateway-events",
		Topic:    event.TopicGatewayEvents,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.HandleGatewayEvent, logger), logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	// HTTP router.
	router := handler.NewRouter(orderService, checkoutService, stockService, settlementService, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		httpServer:     httpServer,
		gatewayEvents:  gatewayEventsConsumer,
		sweeper:        sweeper,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newGatewayProvider selects the payment gateway implementation by mode.
func newGatewayProvider(cfg *config.Config, logger *slog.Logger) gateway.Provider {
	if cfg.GatewayMode == "hosted" {
		return gatewayhosted.NewProvider(gatewayhosted.Config{
			BaseURL: cfg.GatewayBaseURL,
			APIKey:  cfg.GatewayAPIKey,
		}, logger)
	}
	logger.Warn("using mock payment gateway, no real charges will be made")
	return gatewaymock.NewProvider()
}

// Run starts the HTTP server, the gateway event consumer, and the expiry
// sweeper, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start the gateway events consumer.
	go func() {
		if err := a.gatewayEvents.Start(ctx); err != nil {
			errCh <- fmt.Errorf("gateway events consumer: %w", err)
		}
	}()

	// Start the expiry sweeper.
	go a.sweeper.Run(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumer
// 4. Kafka producer
// 5. Redis client
// 6. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close the Kafka consumer.
	if err := a.gatewayEvents.Close(); err != nil {
		a.logger.Error("gateway events consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close the Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close the Redis client.
	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 6. Close the PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := producer.Ping(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
