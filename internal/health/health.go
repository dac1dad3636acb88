// Package health exposes the standard gRPC health service.  The ledger's
// serving status follows the most recent integrity report.
package health

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

// Service is the name health clients query for the ledger itself.  The empty
// name reports overall server health.
const Service = "shiftledger.v1.Ledger"

type Server struct {
	grpcServer *grpc.Server
	healthSrv  *health.Server
	logger     *slog.Logger
	lis        net.Listener
}

// New listens on addr and registers the health and reflection services.
func New(addr string, logger *slog.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("health: listen %s: %w", addr, err)
	}
	return NewWithListener(lis, logger), nil
}

// NewWithListener is New over an existing listener.
func NewWithListener(lis net.Listener, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	// Unknown until the first integrity report arrives.
	healthSrv.SetServingStatus(Service, grpc_health_v1.HealthCheckResponse_UNKNOWN)

	return &Server{
		grpcServer: grpcServer,
		healthSrv:  healthSrv,
		logger:     logger,
		lis:        lis,
	}
}

func (s *Server) Addr() net.Addr { return s.lis.Addr() }

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("grpc health listening", "addr", s.lis.Addr().String())
	return s.grpcServer.Serve(s.lis)
}

func (s *Server) Stop() {
	s.healthSrv.Shutdown()
	s.grpcServer.GracefulStop()
	s.logger.Info("grpc health stopped")
}

// Observe updates the serving status from an integrity report.  Only a
// failed report takes the ledger out of service; warnings keep it serving.
// Its signature matches IntegrityService.OnReport.
func (s *Server) Observe(r types.IntegrityReport) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if r.Overall == types.CheckFail {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		s.logger.Warn("ledger integrity failed, reporting NOT_SERVING", "checks", len(r.Checks))
	}
	s.healthSrv.SetServingStatus(Service, status)
}
