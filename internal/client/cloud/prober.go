package cloud

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Prober checks backend reachability through the standard gRPC health
// service. It needs no credentials.
type Prober struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

func NewProber(endpointURL string) (*Prober, error) {
	conn, err := grpc.NewClient(endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &Prober{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Ping returns nil when the backend reports SERVING.
func (p *Prober) Ping(ctx context.Context) error {
	resp, err := p.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return mapStatus(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: backend reports %s", ErrUnavailable, resp.GetStatus())
	}
	return nil
}

func (p *Prober) Close() error {
	return p.conn.Close()
}
