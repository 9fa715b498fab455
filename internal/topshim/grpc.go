package topshim

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// gRPC service names of the topshim facade.
const (
	AdapterServiceName = "blueberry.facade.topshim.AdapterService"
	GattServiceName    = "blueberry.facade.topshim.GattService"
)

func (c rpcMethod) serviceName() string {
	if c.service == gattService {
		return GattServiceName
	}
	return AdapterServiceName
}

func (c rpcMethod) fullMethod() string {
	return "/" + c.serviceName() + "/" + c.method
}

// GRPCTransport issues calls as unary RPCs against the topshim facade.
type GRPCTransport struct {
	conn *grpc.ClientConn
}

// NewGRPC creates a transport for the facade at target (host:port).
// Without options the connection is plaintext, as the facade is only
// reachable on the lab network.
func NewGRPC(target string, opts ...grpc.DialOption) (*GRPCTransport, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("topshim: grpc client %s: %w", target, err)
	}
	return &GRPCTransport{conn: conn}, nil
}

func (t *GRPCTransport) Invoke(ctx context.Context, call string) (uint64, error) {
	rm, ok := lookup(call)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCall, call)
	}
	if rm.value {
		out := new(wrapperspb.UInt64Value)
		if err := t.conn.Invoke(ctx, rm.fullMethod(), &emptypb.Empty{}, out); err != nil {
			return 0, err
		}
		return out.GetValue(), nil
	}
	return 0, t.conn.Invoke(ctx, rm.fullMethod(), &emptypb.Empty{}, new(emptypb.Empty))
}

func (t *GRPCTransport) Close() error { return t.conn.Close() }

var _ Transport = (*GRPCTransport)(nil)
