package health

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported next to the overall ("") status.
const ServiceName = "fleetview.Dashboard"

// Server exposes grpc.health.v1.Health for load balancers and orchestrators.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	logger     *zap.Logger
}

func NewServer(logger *zap.Logger) *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{grpcServer: gs, health: hs, logger: logger}
}

// Start listens on addr (e.g. ":9090") and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis

	go func() {
		s.logger.Info("gRPC health server listening",
			zap.String("addr", lis.Addr().String()),
			zap.String("services", healthpb.Health_ServiceDesc.ServiceName))
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop reports NOT_SERVING, then stops gracefully unless ctx expires first.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("gRPC graceful stop timed out, forcing stop")
		s.grpcServer.Stop()
	}
}
