package service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "storcli.v1.StorCLI"

// StorCLIService is the server side of storcli.v1.StorCLI. Messages are
// well-known types; the field layout of each Struct is documented on the
// StorCLIServer methods.
type StorCLIService interface {
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunLine(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	RunNamed(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Invalidate(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	ClearCache(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Report(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Discover(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterStorCLIServer registers srv with s.
func RegisterStorCLIServer(s grpc.ServiceRegistrar, srv StorCLIService) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorCLIService)(nil),
	Methods: []grpc.MethodDesc{
		unary("Run", StorCLIService.Run),
		unary("RunLine", StorCLIService.RunLine),
		unary("RunNamed", StorCLIService.RunNamed),
		unary("Invalidate", StorCLIService.Invalidate),
		unary("ClearCache", StorCLIService.ClearCache),
		unary("Report", StorCLIService.Report),
		unary("Discover", StorCLIService.Discover),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storcli/v1/storcli.proto",
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary builds the method descriptor the protoc plugin would generate.
func unary[Req, Resp any](name string, call func(StorCLIService, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StorCLIService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(StorCLIService), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
