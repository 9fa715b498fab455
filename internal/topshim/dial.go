package topshim

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// Transport kinds accepted by Dial.
const (
	KindGRPC = "grpc"
	KindDBus = "dbus"
	KindFake = "fake"
)

// DialOptions selects and configures a transport.
type DialOptions struct {
	Kind    string // grpc, dbus or fake
	Target  string // host:port of the gRPC facade
	Adapter int    // HCI index for D-Bus object paths

	// GRPC overrides the default plaintext dial options.
	GRPC []grpc.DialOption
}

// Dial opens a transport. gRPC connections are established lazily on the
// first call, so a DUT that is down surfaces as a failing call.
func Dial(ctx context.Context, opts DialOptions) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch opts.Kind {
	case KindGRPC, "":
		if opts.Target == "" {
			return nil, fmt.Errorf("topshim: grpc transport requires a target")
		}
		return NewGRPC(opts.Target, opts.GRPC...)
	case KindDBus:
		return NewDBus(opts.Adapter)
	case KindFake:
		return NewFake(), nil
	default:
		return nil, fmt.Errorf("topshim: unknown transport %q", opts.Kind)
	}
}
