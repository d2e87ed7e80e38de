package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type queryStartKey struct{}

type queryStart struct {
	sql   string
	start time.Time
}

// SlowQueryLogger is a pgx tracer that warns about queries slower than a
// threshold. Arguments are not logged; they carry participant profiles.
type SlowQueryLogger struct {
	logger    *zap.Logger
	threshold time.Duration
}

func NewSlowQueryLogger(logger *zap.Logger, threshold time.Duration) *SlowQueryLogger {
	return &SlowQueryLogger{
		logger:    logger,
		threshold: threshold,
	}
}

func (s *SlowQueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, start: time.Now()})
}

func (s *SlowQueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}

	duration := time.Since(qs.start)
	if duration <= s.threshold {
		return
	}

	s.logger.Warn("slow query detected",
		zap.Duration("duration", duration),
		zap.String("sql", qs.sql),
		zap.String("command_tag", data.CommandTag.String()),
		zap.Error(data.Err),
	)
}
