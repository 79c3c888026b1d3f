package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"postboard.dev/internal/obs"
)

// GRPCHealth serves the standard gRPC health protocol, backed by the same
// readiness probe as /readyz.
type GRPCHealth struct {
	srv   *health.Server
	probe readinessChecker
}

func NewGRPCHealth(probe readinessChecker) *GRPCHealth {
	if probe == nil {
		probe = ReadyProbe{}
	}
	return &GRPCHealth{srv: health.NewServer(), probe: probe}
}

// Register attaches the health service to s.
func (g *GRPCHealth) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, g.srv)
}

// Refresh runs the probe once and publishes the result for both the
// overall server and serviceName.
func (g *GRPCHealth) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	err := g.probe.Check(ctx)
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	obs.SetReady(err == nil)
	g.srv.SetServingStatus("", st)
	g.srv.SetServingStatus(serviceName, st)
	return err
}

// Watch refreshes every interval until ctx ends, then marks everything
// NOT_SERVING.
func (g *GRPCHealth) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	if err := g.Refresh(ctx); err != nil {
		obs.Logger().Warn("grpc health: not ready", "error", err.Error())
	}
	for {
		select {
		case <-ctx.Done():
			g.srv.Shutdown()
			return
		case <-t.C:
			if err := g.Refresh(ctx); err != nil {
				obs.Logger().Warn("grpc health: not ready", "error", err.Error())
			}
		}
	}
}
