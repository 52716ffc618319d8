// Package probe runs the gRPC health endpoint used by orchestrators to check
// whether the upload API is ready.
package probe

import (
	"context"
	"errors"
	"net"

	"github.com/PaulBabatuyi/WeShare/internal/middleware"
	"github.com/PaulBabatuyi/WeShare/internal/observability"
	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is reported alongside the overall ("") server status.
const ServiceName = "weshare.v1.Upload"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewServer builds the probe server. metrics may be nil.
func NewServer(logger *zap.Logger, metrics *grpcprom.ServerMetrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	unary := []grpc.UnaryServerInterceptor{middleware.UnaryLoggingInterceptor(logger)}
	stream := []grpc.StreamServerInterceptor{middleware.StreamLoggingInterceptor(logger)}
	if metrics != nil {
		unary = append(unary, metrics.UnaryServerInterceptor())
		stream = append(stream, metrics.StreamServerInterceptor())
	}

	gs := grpc.NewServer(
		grpc.StatsHandler(observability.GRPCStatsHandler()),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	if metrics != nil {
		metrics.InitializeMetrics(gs)
	}

	s := &Server{grpc: gs, health: hs, logger: logger}
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the upload service status.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("health probe listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Run listens on addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.Serve(lis)
}

// Stop reports NOT_SERVING to watchers and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
