// Package grpc exposes the entries service over gRPC. Every entries call is
// scoped to the account named by the caller's access token.
package grpc

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/logging"
	"github.com/dmitrijs2005/cbtjournal/internal/rpc"
	"github.com/dmitrijs2005/cbtjournal/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// EntryService is the use-case layer behind the handlers.
type EntryService interface {
	FetchAll(ctx context.Context, accountID string) ([]*models.Entry, error)
	Upsert(ctx context.Context, accountID string, e *models.Entry) (*models.Entry, error)
	Remove(ctx context.Context, accountID, id string, deletedAt time.Time) error
	AttachAnalysis(ctx context.Context, accountID, entryID string, payload json.RawMessage) (*models.Entry, error)
	Export(ctx context.Context, accountID string) (string, error)
}

type GRPCServer struct {
	address   string
	entries   EntryService
	logger    logging.Logger
	jwtSecret []byte
	health    *health.Server
}

func NewGRPCServer(a string, l logging.Logger, es EntryService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		entries:   es,
		jwtSecret: []byte(secretKey),
		health:    health.NewServer(),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	rpc.RegisterEntriesServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	err := srv.Serve(lis)
	close(stopped)
	return err
}
