package middleware

import (
	"context"

	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestID tags the context with the update's id, generating one when the
// transport did not supply it, and attaches a participant-scoped logger.
func RequestID(logger *zap.Logger) Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, in transport.Inbound) {
			if in.ID == "" {
				in.ID = uuid.NewString()
			}

			ctx = logging.WithLogger(ctx, logger)
			ctx = logging.WithRequestID(ctx, in.ID)
			ctx = logging.WithParticipant(ctx, in.From)

			if in.IsCommand() {
				logging.FromContext(ctx).Info("handling command", zap.String("command", in.Command))
			} else {
				logging.FromContext(ctx).Debug("handling content", zap.Stringer("kind", in.Content.Kind))
			}

			next.Handle(ctx, in)
		})
	}
}
