package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/identity"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/topshim"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/zeroconf"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

type fakeDUTOptions struct {
	listen string
	fail   []string
	delay  time.Duration
	mdns   bool
}

func newFakeDUTCmd() *cobra.Command {
	opts := &fakeDUTOptions{}
	cmd := &cobra.Command{
		Use:   "fakedut",
		Short: "Serve the topshim gRPC facade backed by an in-memory DUT",
		Long: `fakedut answers every adapter and GATT call over gRPC so the harness can be
exercised without Bluetooth hardware. Calls named with --fail return an error.

Examples:
  powertest fakedut --listen :8999
  powertest fakedut --fail allow_wake_by_hid --delay 50ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return opts.serve(ctx)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.listen, "listen", ":8999", "gRPC listen address")
	f.StringSliceVar(&opts.fail, "fail", nil, "call names that return an error (repeatable)")
	f.DurationVar(&opts.delay, "delay", 0, "simulated latency per call")
	f.BoolVar(&opts.mdns, "mdns", false, "advertise the facade over mDNS")
	return cmd
}

func logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		slog.Info("fakedut: call failed", "method", info.FullMethod, "err", err)
	} else {
		slog.Debug("fakedut: call", "method", info.FullMethod, "duration", time.Since(start))
	}
	return resp, err
}

// fakeDUTCallHistory bounds the calls a long-running fake DUT remembers.
const fakeDUTCallHistory = 1024

func (o *fakeDUTOptions) serve(ctx context.Context) error {
	fake := topshim.NewFake()
	fake.SetLimit(fakeDUTCallHistory)
	known := make(map[string]bool)
	for _, c := range topshim.Calls() {
		known[c] = true
	}
	for _, c := range o.fail {
		if !known[c] {
			return fmt.Errorf("--fail: unknown call %q", c)
		}
		fake.FailOn(c, nil)
	}
	fake.SetDelay(o.delay)

	lis, err := net.Listen("tcp", o.listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", o.listen, err)
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(logCalls))
	topshim.RegisterFacade(srv, fake)

	if o.mdns {
		port := lis.Addr().(*net.TCPAddr).Port
		zc := zeroconf.New(identity.GetHostname(), zeroconf.ServiceDUT, port, "transport=grpc")
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	slog.Info("fakedut listening", "addr", lis.Addr().String(), "fail", o.fail, "delay", o.delay)
	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	slog.Info("fakedut stopped", "calls", fake.Total())
	return nil
}
