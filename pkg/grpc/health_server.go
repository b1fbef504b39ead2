package grpc

import (
	"fmt"
	"net"

	"github.com/example/shopfront/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServer exposes the standard gRPC health service for the shop so
// orchestrators can probe it.
type HealthServer struct {
	server  *grpc.Server
	health  *health.Server
	service string
	config  *config.GRPCConfig
	logger  *zap.Logger
}

func NewHealthServer(cfg *config.GRPCConfig, service string, logger *zap.Logger) *HealthServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &HealthServer{
		server:  srv,
		health:  hs,
		service: service,
		config:  cfg,
		logger:  logger,
	}
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the named service status.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}

func (s *HealthServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Health server started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *HealthServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Stop reports NOT_SERVING and drains in-flight calls.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
