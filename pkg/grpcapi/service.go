// Package grpcapi implements the cfgblock gRPC service.
//
// Requests and responses are protobuf well-known types, so the service
// descriptor is declared here instead of generated from a .proto file.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cfgblock.v1.ConfigBlockService"

const (
	methodParse       = "/" + ServiceName + "/Parse"
	methodSelect      = "/" + ServiceName + "/Select"
	methodApplyFilter = "/" + ServiceName + "/ApplyFilter"
	methodListDevices = "/" + ServiceName + "/ListDevices"
	methodPutDevice   = "/" + ServiceName + "/PutDevice"
)

// ConfigBlockServiceServer is the server API for the service.
type ConfigBlockServiceServer interface {
	// Parse: {text, indent} -> {tree, paths, errors}
	Parse(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Select: {device | text, path, separator, indent} -> child keys
	Select(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	// ApplyFilter: {name, text, arg, indent} -> filter output
	ApplyFilter(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	// ListDevices returns one struct per stored device.
	ListDevices(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	// PutDevice: {device, text, indent} -> device summary
	PutDevice(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterConfigBlockServiceServer registers srv on s.
func RegisterConfigBlockServiceServer(s grpc.ServiceRegistrar, srv ConfigBlockServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConfigBlockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Parse", Handler: unary(methodParse, ConfigBlockServiceServer.Parse)},
		{MethodName: "Select", Handler: unary(methodSelect, ConfigBlockServiceServer.Select)},
		{MethodName: "ApplyFilter", Handler: unary(methodApplyFilter, ConfigBlockServiceServer.ApplyFilter)},
		{MethodName: "ListDevices", Handler: unary(methodListDevices, ConfigBlockServiceServer.ListDevices)},
		{MethodName: "PutDevice", Handler: unary(methodPutDevice, ConfigBlockServiceServer.PutDevice)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cfgblock/v1/service.proto",
}

// unary adapts a typed method to a grpc.MethodDesc handler.
func unary[Req any, Resp any, PReq interface {
	*Req
}](fullMethod string, fn func(ConfigBlockServiceServer, context.Context, PReq) (Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(ConfigBlockServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(ConfigBlockServiceServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}
