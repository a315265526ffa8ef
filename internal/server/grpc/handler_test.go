package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/common"
	"github.com/dmitrijs2005/cbtjournal/internal/rpc"
	"github.com/dmitrijs2005/cbtjournal/internal/server/models"
	"github.com/dmitrijs2005/cbtjournal/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var t0 = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func asAccount(id string) context.Context {
	return context.WithValue(context.Background(), accountIDKey, id)
}

func encode(t *testing.T, v any) *wrapperspb.BytesValue {
	t.Helper()
	msg, err := rpc.Encode(v)
	require.NoError(t, err)
	return msg
}

func TestHandlers_RequireAccount(t *testing.T) {
	s := newTestServer("secret")

	_, err := s.FetchAll(context.Background(), &emptypb.Empty{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = s.Export(context.Background(), &emptypb.Empty{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUpsert_AccountComesFromToken(t *testing.T) {
	s := newTestServer("secret")

	resp, err := s.Upsert(asAccount("acc"), encode(t, rpc.Entry{
		ID: "e1", AccountID: "intruder", CreatedAt: t0, UpdatedAt: t0, Belief: "I always fail",
	}))
	require.NoError(t, err)

	var stored rpc.Entry
	require.NoError(t, rpc.Decode(resp, &stored))
	assert.Equal(t, "acc", stored.AccountID)
	assert.Equal(t, "I always fail", stored.Belief)

	list, err := s.FetchAll(asAccount("intruder"), &emptypb.Empty{})
	require.NoError(t, err)
	var got rpc.EntryList
	require.NoError(t, rpc.Decode(list, &got))
	assert.Empty(t, got.Entries)
}

func TestUpsert_BadPayload(t *testing.T) {
	s := newTestServer("secret")

	_, err := s.Upsert(asAccount("acc"), &wrapperspb.BytesValue{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Upsert(asAccount("acc"), wrapperspb.Bytes([]byte("{")))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRemoveAndFetchAll(t *testing.T) {
	s := newTestServer("secret")
	ctx := asAccount("acc")

	_, err := s.Upsert(ctx, encode(t, rpc.Entry{ID: "e1", CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, err)

	_, err = s.Remove(ctx, encode(t, rpc.RemoveRequest{ID: "e1", UpdatedAt: t0.Add(time.Minute)}))
	require.NoError(t, err)

	_, err = s.Remove(ctx, encode(t, rpc.RemoveRequest{ID: "e1", UpdatedAt: t0}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	list, err := s.FetchAll(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	var got rpc.EntryList
	require.NoError(t, rpc.Decode(list, &got))
	require.Len(t, got.Entries, 1)
	assert.True(t, got.Entries[0].IsDeleted)
}

func TestAttachAnalysis(t *testing.T) {
	s := newTestServer("secret")
	ctx := asAccount("acc")

	_, err := s.AttachAnalysis(ctx, encode(t, rpc.AttachAnalysisRequest{EntryID: "nope", Payload: json.RawMessage(`{}`)}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = s.Upsert(ctx, encode(t, rpc.Entry{ID: "e1", CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, err)

	resp, err := s.AttachAnalysis(ctx, encode(t, rpc.AttachAnalysisRequest{EntryID: "e1", Payload: json.RawMessage(`{"a":1}`)}))
	require.NoError(t, err)

	var stored rpc.Entry
	require.NoError(t, rpc.Decode(resp, &stored))
	require.NotNil(t, stored.AIResponse)
	assert.JSONEq(t, `{"a":1}`, string(stored.AIResponse.Payload))
}

func TestExport(t *testing.T) {
	s := newTestServer("secret")
	s.entries.(*fakeEntries).exportKey = "exports/acc/k.json"

	resp, err := s.Export(asAccount("acc"), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "exports/acc/k.json", resp.GetValue())
}

func TestToStatus(t *testing.T) {
	s := newTestServer("secret")

	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("e1: %w", common.ErrVersionConflict), codes.FailedPrecondition},
		{fmt.Errorf("e1: %w", common.ErrorNotFound), codes.NotFound},
		{fmt.Errorf("bad: %w", common.ErrorInvalidEntry), codes.InvalidArgument},
		{fmt.Errorf("export: %w", services.ErrExportDisabled), codes.Unimplemented},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("db is down"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			err := s.toStatus(context.Background(), tt.err)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}

	assert.Equal(t, "internal error", status.Convert(s.toStatus(context.Background(), errors.New("secret detail"))).Message())
}

func TestConvert_RoundTripKeepsHistoryAndAnalysis(t *testing.T) {
	e := &models.Entry{
		ID: "e1", AccountID: "acc", CreatedAt: t0, UpdatedAt: t0,
		AI:             &models.AIAnalysis{Payload: json.RawMessage(`{}`), CreatedAt: t0},
		DisputeHistory: []models.DisputeAttempt{{Dispute: "d", CreatedAt: t0}},
	}

	back := fromWire(toWire(e))
	assert.Empty(t, back.AccountID)
	back.AccountID = "acc"
	assert.Equal(t, e, back)
}
