package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	rediscache "github.com/smartcycle/discounts/internal/cache/redis"
	catalogmem "github.com/smartcycle/discounts/internal/catalog/memory"
	"github.com/smartcycle/discounts/internal/config"
	"github.com/smartcycle/discounts/internal/engine/compiler"
	"github.com/smartcycle/discounts/internal/engine/resolver"
	"github.com/smartcycle/discounts/internal/event"
	handler "github.com/smartcycle/discounts/internal/handler/http"
	"github.com/smartcycle/discounts/internal/repository/postgres"
	"github.com/smartcycle/discounts/internal/scheduler"
	"github.com/smartcycle/discounts/internal/service"
	"github.com/smartcycle/discounts/internal/validation"
	"github.com/smartcycle/discounts/pkg/database"
	"github.com/smartcycle/discounts/pkg/health"
	pkgkafka "github.com/smartcycle/discounts/pkg/kafka"
	"github.com/smartcycle/discounts/pkg/tracing"
)

// App wires together all dependencies and runs the discounts service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	sweeper        *scheduler.Scheduler
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "discounts",
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
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
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

	// Initialize Redis for the eligibility cache.
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("db", cfg.RedisDB),
	)

	// Kafka producer and event publisher. With Kafka disabled the
	// service runs standalone and events are dropped.
	var (
		producer  *pkgkafka.Producer
		publisher event.Publisher = event.NoopPublisher{}
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewKafkaPublisher(producer, cfg.CampaignTopic, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph. The catalog mirror starts empty and
	// is populated from catalog change events.
	mirror := catalogmem.New()
	store := rediscache.New(rdb, cfg.CacheTTL)
	repo := postgres.NewCampaignRepository(pool)

	campaignService := service.NewCampaignService(
		repo,
		store,
		compiler.New(mirror, logger),
		validation.New(validation.DefaultWeights()),
		resolver.New(logger),
		publisher,
		logger,
	)

	sweeper := scheduler.New(campaignService, cfg.SchedulerInterval, logger)

	var consumer *pkgkafka.Consumer
	if cfg.KafkaEnabled {
		catalogHandler := event.NewCatalogHandler(mirror, store, logger)
		consumer = pkgkafka.NewConsumer(
			pkgkafka.DefaultConsumerConfig(cfg.KafkaBrokers, cfg.CatalogGroupID, cfg.CatalogTopic),
			catalogHandler.Handle,
			logger,
		)
		logger.Info("kafka consumer initialized",
			slog.String("topic", cfg.CatalogTopic),
			slog.String("group", cfg.CatalogGroupID),
		)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	// HTTP router.
	router := handler.NewRouter(campaignService, healthHandler, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       producer,
		consumer:       consumer,
		sweeper:        sweeper,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server, the lifecycle sweeper and the catalog
// consumer, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		a.logger.Info("starting lifecycle sweeper",
			slog.Duration("interval", a.cfg.SchedulerInterval),
		)
		if err := a.sweeper.Run(runCtx); err != nil && err != context.Canceled {
			a.logger.Error("lifecycle sweeper stopped", slog.String("error", err.Error()))
		}
	}()

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(runCtx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		cancel()
		a.shutdown()
		return err
	}

	cancel()
	return a.shutdown()
}

func (a *App) shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
	return nil
}
