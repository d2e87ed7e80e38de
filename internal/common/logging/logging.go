// Package logging builds the process logger and carries per-update loggers
// through a context.
package logging

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/Alexander-D-Karpov/tandem/internal/common/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
)

var base atomic.Pointer[zap.Logger]

// Init builds the logger described by cfg and installs it as the fallback
// returned by L and FromContext.
func Init(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoder := newEncoder(cfg.Format)

	var sinks []zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	case "stderr":
		sinks = append(sinks, zapcore.Lock(os.Stderr))
	}
	if cfg.EnableFile && cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		sinks = append(sinks, zapcore.AddSync(f))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	base.Store(logger)
	return logger, nil
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// L returns the process logger, or a no-op logger before Init.
func L() *zap.Logger {
	if l := base.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return L()
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithRequestID tags both the context and its logger with the id of the
// inbound update being handled.
func WithRequestID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, id)
	return WithLogger(ctx, FromContext(ctx).With(zap.String("request_id", id)))
}

func WithParticipant(ctx context.Context, participantID int64) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(zap.Int64("participant_id", participantID)))
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
