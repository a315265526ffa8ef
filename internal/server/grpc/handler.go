package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/cbtjournal/internal/common"
	"github.com/dmitrijs2005/cbtjournal/internal/rpc"
	"github.com/dmitrijs2005/cbtjournal/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// toStatus maps service errors to gRPC status codes. Unknown errors are
// logged and reported as Internal without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrVersionConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorInvalidEntry):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, services.ErrExportDisabled):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) account(ctx context.Context) (string, error) {
	id, err := accountIDFromContext(ctx)
	if err != nil {
		return "", status.Error(codes.Unauthenticated, err.Error())
	}
	return id, nil
}

func (s *GRPCServer) FetchAll(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	all, err := s.entries.FetchAll(ctx, accountID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	list := rpc.EntryList{Entries: make([]rpc.Entry, 0, len(all))}
	for _, e := range all {
		list.Entries = append(list.Entries, toWire(e))
	}
	return rpc.Encode(list)
}

func (s *GRPCServer) Upsert(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	var in rpc.Entry
	if err := rpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	stored, err := s.entries.Upsert(ctx, accountID, fromWire(in))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Encode(toWire(stored))
}

func (s *GRPCServer) Remove(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	var in rpc.RemoveRequest
	if err := rpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.entries.Remove(ctx, accountID, in.ID, in.UpdatedAt); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) AttachAnalysis(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	var in rpc.AttachAnalysisRequest
	if err := rpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	stored, err := s.entries.AttachAnalysis(ctx, accountID, in.EntryID, in.Payload)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Encode(toWire(stored))
}

func (s *GRPCServer) Export(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	key, err := s.entries.Export(ctx, accountID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wrapperspb.String(key), nil
}
