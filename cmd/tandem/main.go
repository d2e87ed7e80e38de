package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/bot"
	"github.com/Alexander-D-Karpov/tandem/internal/chat"
	"github.com/Alexander-D-Karpov/tandem/internal/common/config"
	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"github.com/Alexander-D-Karpov/tandem/internal/gateway"
	"github.com/Alexander-D-Karpov/tandem/internal/infra/cache"
	"github.com/Alexander-D-Karpov/tandem/internal/infra/db"
	"github.com/Alexander-D-Karpov/tandem/internal/infra/migrations"
	"github.com/Alexander-D-Karpov/tandem/internal/matchmaking"
	"github.com/Alexander-D-Karpov/tandem/internal/observability"
	"github.com/Alexander-D-Karpov/tandem/internal/profiles"
	"github.com/Alexander-D-Karpov/tandem/internal/retry"
	"github.com/Alexander-D-Karpov/tandem/internal/session"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"github.com/Alexander-D-Karpov/tandem/internal/transport/telegram"
	"github.com/Alexander-D-Karpov/tandem/internal/version"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// duplexTransport both delivers to and receives from participants.
type duplexTransport interface {
	transport.Sender
	Run(ctx context.Context, h transport.Handler) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting tandem",
		zap.String("version", version.String()),
		zap.String("transport", cfg.Transport),
		zap.String("profile_store", cfg.ProfileStore),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(logger, promRegistry)
	healthChecker := observability.NewHealthChecker(logger, version.Short())

	store, closeStore, err := openProfileStore(ctx, cfg, metrics, promRegistry, healthChecker, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := session.NewRegistry()
	metrics.RegisterSessionGauges(registry)
	healthChecker.RegisterCheck("sessions", func(context.Context) (observability.HealthStatus, string, error) {
		if err := registry.CheckInvariants(); err != nil {
			return observability.StatusUnhealthy, "session registry inconsistent", err
		}
		return observability.StatusHealthy, fmt.Sprintf("%d waiting, %d paired", registry.QueueLen(), registry.PairCount()), nil
	})

	messenger, err := openTransport(cfg, logger)
	if err != nil {
		return err
	}

	matchmaker := matchmaking.New(registry, store, messenger,
		matchmaking.WithMetrics(metrics),
		matchmaking.WithAnnounceDelay(cfg.Chat.AnnounceDelay),
	)
	router := bot.NewRouter(
		chat.NewController(registry, matchmaker, messenger, metrics),
		chat.NewRelay(registry, messenger, metrics, cfg.Chat.RelayDelay),
		profiles.NewOnboarding(store),
		store,
		messenger,
		metrics,
	)
	handler := router.Pipeline(logger, cfg.Chat.UpdateTimeout)

	errChan := make(chan error, 4)

	go func() {
		if err := metrics.Start(ctx, cfg.Server.MetricsPort); err != nil {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	go func() {
		if err := healthChecker.Start(ctx, cfg.Server.HealthPort); err != nil {
			errChan <- fmt.Errorf("health server: %w", err)
		}
	}()

	grpcHealth := observability.NewGRPCHealth(healthChecker, logger, 10*time.Second)
	go func() {
		if err := grpcHealth.Start(ctx, cfg.Server.GRPCPort); err != nil {
			errChan <- fmt.Errorf("grpc health server: %w", err)
		}
	}()

	transportDone := make(chan struct{})
	go func() {
		defer close(transportDone)
		if err := messenger.Run(ctx, handler); err != nil {
			errChan <- fmt.Errorf("%s transport: %w", cfg.Transport, err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		cancel()
		return err
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("shutting down gracefully...")
	cancel()

	select {
	case <-transportDone:
	case <-time.After(15 * time.Second):
		logger.Warn("transport did not stop in time")
	}

	logger.Info("shutdown complete",
		zap.Int("waiting", registry.QueueLen()),
		zap.Int("paired", registry.PairCount()),
	)
	return nil
}

func openProfileStore(
	ctx context.Context,
	cfg *config.Config,
	metrics *observability.Metrics,
	promRegistry prometheus.Registerer,
	healthChecker *observability.HealthChecker,
	logger *zap.Logger,
) (profiles.Store, func(), error) {
	if cfg.ProfileStore == config.ProfileStoreMemory {
		logger.Warn("profiles are kept in memory and lost on restart")
		return profiles.NewMemoryStore(), func() {}, nil
	}

	database, err := db.NewWithRetry(ctx, cfg.Database, retry.DefaultConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database")

	if err := migrations.Run(ctx, database.Pool); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations applied successfully")

	if err := promRegistry.Register(db.NewPoolCollector(database.Pool)); err != nil {
		logger.Warn("failed to register pool collector", zap.Error(err))
	}

	healthChecker.RegisterCheck("database", func(ctx context.Context) (observability.HealthStatus, string, error) {
		if err := database.Health(ctx); err != nil {
			return observability.StatusUnhealthy, "database connection failed", err
		}
		return observability.StatusHealthy, "database connection ok", nil
	})

	closers := []func(){database.Close}

	var cacheClient *cache.Cache
	if cfg.Redis.Enabled {
		cacheClient, err = cache.New(cfg.Redis, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			logger.Info("connected to Redis")
			closers = append(closers, func() {
				if err := cacheClient.Close(); err != nil {
					logger.Error("failed to close cache", zap.Error(err))
				}
			})
			healthChecker.RegisterCheck("redis", func(ctx context.Context) (observability.HealthStatus, string, error) {
				if err := cacheClient.Ping(ctx); err != nil {
					return observability.StatusDegraded, "redis connection failed", err
				}
				return observability.StatusHealthy, "redis connection ok", nil
			})
		}
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return profiles.NewRepositoryWithCache(database.Pool, cacheClient, metrics, logger), closeAll, nil
}

func openTransport(cfg *config.Config, logger *zap.Logger) (duplexTransport, error) {
	switch cfg.Transport {
	case config.TransportWebSocket:
		return gateway.New(cfg.Gateway, logger), nil
	default:
		client, err := telegram.New(cfg.Telegram, logger)
		if err != nil {
			return nil, err
		}
		if err := client.SetCommands(bot.Commands); err != nil {
			logger.Warn("failed to publish command menu", zap.Error(err))
		}
		return client, nil
	}
}
