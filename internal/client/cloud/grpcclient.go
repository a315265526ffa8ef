package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
	"github.com/dmitrijs2005/cbtjournal/internal/common"
	"github.com/dmitrijs2005/cbtjournal/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

const callTimeout = 15 * time.Second

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.EntriesClient
	accountID   string
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withAccessToken(ctx, c.accessToken), method, req, reply, cc, opts...)
}

// NewGRPCClient connects lazily: no network traffic happens until the first
// call.
func NewGRPCClient(endpointURL, accountID, accessToken string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accountID: accountID, accessToken: accessToken}

	conn, err := grpc.NewClient(endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor))
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = rpc.NewEntriesClient(conn)
	return c, nil
}

// NewFactory returns a Factory dialing endpointURL.
func NewFactory(endpointURL string) Factory {
	return func(accountID, accessToken string) (Client, error) {
		return NewGRPCClient(endpointURL, accountID, accessToken)
	}
}

func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *GRPCClient) FetchAll(ctx context.Context) ([]models.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.FetchAll(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, mapStatus(err)
	}

	var list rpc.EntryList
	if err := rpc.Decode(resp, &list); err != nil {
		return nil, err
	}

	out := make([]models.Entry, 0, len(list.Entries))
	for _, e := range list.Entries {
		out = append(out, fromWire(e, c.accountID))
	}
	return out, nil
}

func (c *GRPCClient) Upsert(ctx context.Context, e models.Entry) (models.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := rpc.Encode(toWire(e))
	if err != nil {
		return models.Entry{}, err
	}

	resp, err := c.client.Upsert(ctx, req)
	if err != nil {
		return models.Entry{}, mapStatus(err)
	}

	var stored rpc.Entry
	if err := rpc.Decode(resp, &stored); err != nil {
		return models.Entry{}, err
	}
	return fromWire(stored, c.accountID), nil
}

func (c *GRPCClient) Remove(ctx context.Context, id string, deletedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := rpc.Encode(rpc.RemoveRequest{ID: id, UpdatedAt: deletedAt})
	if err != nil {
		return err
	}
	if _, err := c.client.Remove(ctx, req); err != nil {
		return mapStatus(err)
	}
	return nil
}

func (c *GRPCClient) Export(ctx context.Context) (string, error) {
	resp, err := c.client.Export(ctx, &emptypb.Empty{})
	if err != nil {
		return "", mapStatus(err)
	}
	return resp.GetValue(), nil
}

// mapStatus translates gRPC status codes into package and common sentinels.
func mapStatus(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.FailedPrecondition, codes.Aborted:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrVersionConflict)
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrorNotFound)
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
