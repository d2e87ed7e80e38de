package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

type Config struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	// OnRetry, when set, is called before each wait with the attempt that
	// just failed.
	OnRetry func(attempt int, wait time.Duration, err error)
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
	}
}

// WithBackoff retries fn with jittered exponential backoff. It is used for
// startup dependencies only; participant-facing deliveries are never
// retried.
func WithBackoff(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	for attempt := 1; err != nil && attempt < cfg.MaxAttempts; attempt++ {
		if isPermanent(err) {
			break
		}

		wait := backoff(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, err)
		}

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}

		err = fn(ctx)
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return perm.err
	}
	return err
}

func isPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that WithBackoff stops immediately and returns err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// backoff returns the wait before retry number attempt (1-based): the
// exponential delay plus up to 30% jitter, capped at MaxWait.
func backoff(cfg Config, attempt int) time.Duration {
	d := float64(cfg.InitialWait) * math.Pow(cfg.Multiplier, float64(attempt-1))
	d += rand.Float64() * d * 0.3
	return time.Duration(min(d, float64(cfg.MaxWait)))
}
