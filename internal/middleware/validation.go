package middleware

import (
	"context"

	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
)

// Validation drops updates that carry no sender. Transports set From for
// every participant update; service messages without one are ignored.
func Validation() Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, in transport.Inbound) {
			if in.From <= 0 {
				logging.FromContext(ctx).Debug("dropping update without sender")
				return
			}
			next.Handle(ctx, in)
		})
	}
}
