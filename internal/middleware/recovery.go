package middleware

import (
	"context"
	"runtime/debug"

	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"github.com/Alexander-D-Karpov/tandem/internal/observability"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"go.uber.org/zap"
)

// Recovery keeps a panicking handler from taking the process down with it.
func Recovery(metrics *observability.Metrics) Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, in transport.Inbound) {
			defer func() {
				if r := recover(); r != nil {
					logging.FromContext(ctx).Error("panic recovered",
						zap.Any("panic", r),
						zap.Int64("participant_id", in.From),
						zap.String("command", in.Command),
						zap.String("stack", string(debug.Stack())),
					)
					metrics.RecordPanic()
				}
			}()

			next.Handle(ctx, in)
		})
	}
}
