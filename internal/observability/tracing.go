package observability

import (
	"context"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RequestIDInterceptor tags each gRPC call with the x-request-id sent by the
// caller, or a fresh one, and logs the call at debug level.
func RequestIDInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx = logging.WithLogger(ctx, logger.With(zap.String("method", info.FullMethod)))
		ctx = logging.WithRequestID(ctx, extractRequestID(ctx))

		start := time.Now()
		resp, err := handler(ctx, req)

		logging.FromContext(ctx).Debug("grpc call",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return resp, err
	}
}

func extractRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return uuid.NewString()
	}

	if vals := md.Get("x-request-id"); len(vals) > 0 && vals[0] != "" {
		return vals[0]
	}

	return uuid.NewString()
}
