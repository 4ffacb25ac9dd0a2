package quarantine

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "quarantine.v1.QuarantineService"

const (
	methodGetStatus   = "/" + ServiceName + "/GetStatus"
	methodWatchStatus = "/" + ServiceName + "/WatchStatus"
	methodRecordEvent = "/" + ServiceName + "/RecordEvent"
	methodRevokeEvent = "/" + ServiceName + "/RevokeEvent"
	methodGetBanner   = "/" + ServiceName + "/GetBanner"
	methodSetBanner   = "/" + ServiceName + "/SetBanner"
)

// QuarantineServiceServer is the server API of the quarantine service.
type QuarantineServiceServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	WatchStatus(req *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error
	RecordEvent(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	RevokeEvent(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	GetBanner(ctx context.Context, req *emptypb.Empty) (*wrapperspb.BoolValue, error)
	SetBanner(ctx context.Context, req *wrapperspb.BoolValue) (*emptypb.Empty, error)
}

// ServiceDesc describes QuarantineService for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QuarantineServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    unaryHandler(methodGetStatus, QuarantineServiceServer.GetStatus),
		},
		{
			MethodName: "RecordEvent",
			Handler:    unaryHandler(methodRecordEvent, QuarantineServiceServer.RecordEvent),
		},
		{
			MethodName: "RevokeEvent",
			Handler:    unaryHandler(methodRevokeEvent, QuarantineServiceServer.RevokeEvent),
		},
		{
			MethodName: "GetBanner",
			Handler:    unaryHandler(methodGetBanner, QuarantineServiceServer.GetBanner),
		},
		{
			MethodName: "SetBanner",
			Handler:    unaryHandler(methodSetBanner, QuarantineServiceServer.SetBanner),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchStatus",
			Handler:       watchStatusHandler,
			ServerStreams: true,
		},
	},
	Metadata: "quarantine/v1/quarantine.proto",
}

// RegisterQuarantineServiceServer registers srv on the given registrar.
func RegisterQuarantineServiceServer(registrar grpc.ServiceRegistrar, srv QuarantineServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// unaryHandler adapts a typed server method to the grpc method handler shape.
func unaryHandler[Req, Res any](
	fullMethod string,
	call func(QuarantineServiceServer, context.Context, *Req) (Res, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(QuarantineServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(QuarantineServiceServer), ctx, req.(*Req))
		}

		return interceptor(ctx, in, info, handler)
	}
}

func watchStatusHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(QuarantineServiceServer).WatchStatus(
		in,
		&grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream},
	)
}

// QuarantineServiceClient is the low-level client of the quarantine service.
type QuarantineServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewQuarantineServiceClient binds a client to the given connection.
func NewQuarantineServiceClient(cc grpc.ClientConnInterface) *QuarantineServiceClient {
	return &QuarantineServiceClient{cc: cc}
}

// GetStatus fetches the last forwarded status.
func (c *QuarantineServiceClient) GetStatus(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetStatus, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// WatchStatus opens a stream of forwarded statuses.
func (c *QuarantineServiceClient) WatchStatus(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], methodWatchStatus, opts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.SendMsg(in); err != nil {
		return nil, err
	}

	if err := x.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}

// RecordEvent records an event described by an event document.
func (c *QuarantineServiceClient) RecordEvent(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, methodRecordEvent, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// RevokeEvent revokes an event described by an event document.
func (c *QuarantineServiceClient) RevokeEvent(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, methodRevokeEvent, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// GetBanner fetches the quarantine-end banner flag.
func (c *QuarantineServiceClient) GetBanner(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, methodGetBanner, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// SetBanner sets or clears the quarantine-end banner flag.
func (c *QuarantineServiceClient) SetBanner(
	ctx context.Context,
	in *wrapperspb.BoolValue,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, methodSetBanner, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
