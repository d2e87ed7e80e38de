package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/common/config"
	"github.com/Alexander-D-Karpov/tandem/internal/retry"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type DB struct {
	Pool *pgxpool.Pool
}

// DSN prefers DATABASE_URL and falls back to the discrete settings.
func DSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database,
	)
}

func New(cfg config.DatabaseConfig) (*DB, error) {
	return NewWithRetry(context.Background(), cfg, retry.Config{MaxAttempts: 1}, nil)
}

// NewWithRetry connects with backoff, for startups racing the database
// container.
func NewWithRetry(ctx context.Context, cfg config.DatabaseConfig, rc retry.Config, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	if logger != nil {
		if cfg.SlowQueryThreshold > 0 {
			poolConfig.ConnConfig.Tracer = NewSlowQueryLogger(logger, cfg.SlowQueryThreshold)
		}
		rc.OnRetry = func(attempt int, wait time.Duration, err error) {
			logger.Warn("database not reachable, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}
	}

	var pool *pgxpool.Pool
	err = retry.WithBackoff(ctx, rc, func(ctx context.Context) error {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		p, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		if err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		if err := p.Ping(connectCtx); err != nil {
			p.Close()
			err = fmt.Errorf("ping database: %w", err)
			if !isRetriable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
}

func (d *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.Pool.Ping(ctx)
}
