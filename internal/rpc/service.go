package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "cbtjournal.Entries"

const (
	FetchAllMethod       = "/" + ServiceName + "/FetchAll"
	UpsertMethod         = "/" + ServiceName + "/Upsert"
	RemoveMethod         = "/" + ServiceName + "/Remove"
	AttachAnalysisMethod = "/" + ServiceName + "/AttachAnalysis"
	ExportMethod         = "/" + ServiceName + "/Export"
)

// EntriesServer is implemented by the backend.
//
//	FetchAll:       Empty -> BytesValue(EntryList)
//	Upsert:         BytesValue(Entry) -> BytesValue(Entry)
//	Remove:         BytesValue(RemoveRequest) -> Empty
//	AttachAnalysis: BytesValue(AttachAnalysisRequest) -> BytesValue(Entry)
//	Export:         Empty -> StringValue(object key)
type EntriesServer interface {
	FetchAll(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	Upsert(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Remove(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	AttachAnalysis(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Export(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

func handler[Req proto.Message, Resp proto.Message](
	fullMethod string,
	newReq func() Req,
	call func(EntriesServer, context.Context, Req) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EntriesServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		h := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EntriesServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, h)
	}
}

func newEmpty() *emptypb.Empty         { return new(emptypb.Empty) }
func newBytes() *wrapperspb.BytesValue { return new(wrapperspb.BytesValue) }

var EntriesServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EntriesServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FetchAll", Handler: handler(FetchAllMethod, newEmpty, EntriesServer.FetchAll)},
		{MethodName: "Upsert", Handler: handler(UpsertMethod, newBytes, EntriesServer.Upsert)},
		{MethodName: "Remove", Handler: handler(RemoveMethod, newBytes, EntriesServer.Remove)},
		{MethodName: "AttachAnalysis", Handler: handler(AttachAnalysisMethod, newBytes, EntriesServer.AttachAnalysis)},
		{MethodName: "Export", Handler: handler(ExportMethod, newEmpty, EntriesServer.Export)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cbtjournal.proto",
}

func RegisterEntriesServer(s grpc.ServiceRegistrar, srv EntriesServer) {
	s.RegisterService(&EntriesServiceDesc, srv)
}

// EntriesClient is the client stub for EntriesServer.
type EntriesClient interface {
	FetchAll(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Upsert(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Remove(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	AttachAnalysis(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Export(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type entriesClient struct {
	cc grpc.ClientConnInterface
}

func NewEntriesClient(cc grpc.ClientConnInterface) EntriesClient {
	return &entriesClient{cc: cc}
}

func (c *entriesClient) FetchAll(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, FetchAllMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *entriesClient) Upsert(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, UpsertMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *entriesClient) Remove(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, RemoveMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *entriesClient) AttachAnalysis(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, AttachAnalysisMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *entriesClient) Export(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, ExportMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
