package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/banshee-data/wayfinder/internal/detection"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DetectionService is the health service name that tracks the controller
// state. The empty service name reports the process itself.
const DetectionService = "wayfinder.Detection"

// HealthServer serves grpc.health.v1 with the detection service SERVING
// while the controller is Active and NOT_SERVING while Idle.
type HealthServer struct {
	status   *health.Server
	server   *grpc.Server
	listener net.Listener
}

// ListenHealth binds the health service to addr.
func ListenHealth(addr string) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	h := &HealthServer{
		status:   health.NewServer(),
		server:   grpc.NewServer(),
		listener: lis,
	}
	h.status.SetServingStatus(DetectionService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(h.server, h.status)
	return h, nil
}

// Addr returns the bound listener address.
func (h *HealthServer) Addr() net.Addr { return h.listener.Addr() }

// Serve tracks d and serves health checks until ctx is cancelled.
func (h *HealthServer) Serve(ctx context.Context, d Detector) error {
	go h.track(ctx, d)
	go func() {
		<-ctx.Done()
		h.status.Shutdown()
		h.server.GracefulStop()
	}()

	monitoring.Logf("health: gRPC health service listening on %s", h.listener.Addr())
	if err := h.server.Serve(h.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// track mirrors the controller state into the health status. Each published
// result re-reads State, so dropped results cannot leave the status stale
// past the next publication.
func (h *HealthServer) track(ctx context.Context, d Detector) {
	id, results := d.Subscribe()
	defer d.Unsubscribe(id)

	h.set(d.State())
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-results:
			if !ok {
				return
			}
			h.set(d.State())
		}
	}
}

func (h *HealthServer) set(s detection.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s == detection.StateActive {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.status.SetServingStatus(DetectionService, status)
}
