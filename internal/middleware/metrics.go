package middleware

import (
	"context"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/observability"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
)

// Metrics records count and latency per update. label maps an update to a
// bounded set of label values.
func Metrics(metrics *observability.Metrics, label func(transport.Inbound) string) Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, in transport.Inbound) {
			start := time.Now()
			next.Handle(ctx, in)
			metrics.RecordCommand(label(in), time.Since(start))
		})
	}
}
