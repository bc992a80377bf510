// Package grpc exposes the standard gRPC health service backed by the store.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service name reported alongside the overall ("") status.
const ServiceName = "stockroom"

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthMonitor keeps the gRPC health status in line with the store.
type HealthMonitor struct {
	srv      *health.Server
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	serving  bool
}

// NewHealthMonitor creates a monitor that pings the store every interval.
// The status starts as NOT_SERVING until the first successful ping.
func NewHealthMonitor(pinger Pinger, interval time.Duration, logger *slog.Logger) *HealthMonitor {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthMonitor{
		srv:      srv,
		pinger:   pinger,
		interval: interval,
		timeout:  min(interval, 5*time.Second),
		logger:   logger.With("component", "grpc_health"),
	}
}

// Register adds the health service to s.
func (m *HealthMonitor) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, m.srv)
}

// Run pings the store until ctx is canceled, then marks every service as shut down.
func (m *HealthMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			m.srv.Shutdown()
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check pings the store once and updates the status.
func (m *HealthMonitor) Check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(pingCtx)
	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if serving := err == nil; serving != m.serving {
		m.serving = serving
		if serving {
			m.logger.InfoContext(ctx, "Store reachable, serving")
		} else {
			m.logger.WarnContext(ctx, "Store unreachable, not serving", "error", err)
		}
	}
	m.srv.SetServingStatus("", status)
	m.srv.SetServingStatus(ServiceName, status)
}
