package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name orchestrators probe.
const ServiceName = "tandem.Bot"

// GRPCHealth serves grpc.health.v1.Health and mirrors the readiness of a
// HealthChecker into it on an interval.
type GRPCHealth struct {
	checker  *HealthChecker
	server   *health.Server
	logger   *zap.Logger
	interval time.Duration
}

func NewGRPCHealth(checker *HealthChecker, logger *zap.Logger, interval time.Duration) *GRPCHealth {
	return &GRPCHealth{
		checker:  checker,
		server:   health.NewServer(),
		logger:   logger,
		interval: interval,
	}
}

// Sync copies the current readiness into the gRPC health server.
func (g *GRPCHealth) Sync(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if !g.checker.Ready(checkCtx) {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.server.SetServingStatus("", status)
	g.server.SetServingStatus(ServiceName, status)
	return status
}

func (g *GRPCHealth) Start(ctx context.Context, port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("create listener: %w", err)
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(RequestIDInterceptor(g.logger)))
	healthpb.RegisterHealthServer(srv, g.server)
	reflection.Register(srv)

	g.logger.Info("grpc health server listening", zap.String("address", listener.Addr().String()))

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil {
			errChan <- fmt.Errorf("serve grpc: %w", err)
		}
	}()

	g.Sync(ctx)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errChan:
			return err
		case <-ticker.C:
			g.Sync(ctx)
		case <-ctx.Done():
			g.server.Shutdown()
			srv.GracefulStop()
			return nil
		}
	}
}
