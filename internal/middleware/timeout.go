package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"go.uber.org/zap"
)

// Timeout bounds the context of one update. Deliveries already started
// run to completion; only waits and lookups observe the deadline.
func Timeout(timeout time.Duration) Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, in transport.Inbound) {
			if timeout <= 0 {
				next.Handle(ctx, in)
				return
			}

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			next.Handle(ctx, in)

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logging.FromContext(ctx).Warn("update handling exceeded timeout",
					zap.Duration("timeout", timeout),
					zap.Int64("participant_id", in.From),
				)
			}
		})
	}
}
