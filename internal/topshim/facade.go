package topshim

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// RegisterFacade serves the adapter and GATT facade services on s, answering
// every RPC with inv. Backed by a Fake it stands in for a DUT.
func RegisterFacade(s grpc.ServiceRegistrar, inv Invoker) {
	s.RegisterService(facadeDesc(adapterService), inv)
	s.RegisterService(facadeDesc(gattService), inv)
}

func facadeDesc(svc service) *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		HandlerType: (*Invoker)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "blueberry/facade/topshim/facade.proto",
	}
	for _, c := range calls {
		if c.service != svc {
			continue
		}
		desc.ServiceName = c.serviceName()
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: c.method,
			Handler:    facadeHandler(c),
		})
	}
	return desc
}

func facadeHandler(rm rpcMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		handle := func(ctx context.Context, _ any) (any, error) {
			v, err := srv.(Invoker).Invoke(ctx, rm.name)
			if err != nil {
				if _, ok := status.FromError(err); ok {
					return nil, err
				}
				return nil, status.Error(codes.Unknown, err.Error())
			}
			if rm.value {
				return wrapperspb.UInt64(v), nil
			}
			return &emptypb.Empty{}, nil
		}
		if interceptor == nil {
			return handle(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rm.fullMethod()}
		return interceptor(ctx, in, info, handle)
	}
}
