package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/api"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/auth"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/config"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/controller"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/events"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/history"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/identity"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/maintenance"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/metrics"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/zeroconf"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API, metrics and mDNS advertisement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, root, addr, cmd.Flags().Changed("addr"))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAPIAddr, "HTTP listen address (overrides settings)")
	return cmd
}

func listenPort(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	p, _ := strconv.Atoi(port)
	return p
}

func serve(ctx context.Context, root *rootOptions, addr string, addrFlag bool) error {
	store := config.NewJSONStore(root.configDir)
	settings, err := store.Load()
	if err != nil {
		return err
	}
	if !addrFlag {
		addr = settings.APIAddr
	}

	hist, err := history.Open(root.historyPath(*settings))
	if err != nil {
		return err
	}
	defer hist.Close()

	bus := events.NewBus()
	m := metrics.New()

	ctrl, err := controller.New(ctx, store, hist, bus, m, nil, root.configDir)
	if err != nil {
		return fmt.Errorf("controller initialization failed: %w", err)
	}

	authSvc, err := auth.NewService(root.configDir)
	if err != nil {
		return fmt.Errorf("auth service initialization failed: %w", err)
	}
	defer authSvc.Close()

	maint := maintenance.New(ctrl.Settings, ctrl, hist, func(ok bool) {
		ctrl.SetReachable(ok)
		m.SetReachable(ok)
	})
	go maint.Start(ctx)

	if settings.MDNS {
		if port := listenPort(addr); port > 0 {
			zc := zeroconf.New(identity.GetHostname(), zeroconf.ServiceHarness, port,
				"version="+identity.GetVersionFromDir(root.configDir))
			go func() {
				if err := zc.Start(ctx); err != nil {
					slog.Warn("zeroconf failed", "err", err)
				}
			}()
		}
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(ctrl, authSvc, bus, m.Handler()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("powertest listening", "addr", addr, "config", root.configDir, "target", settings.Target)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	// runs are bound to ctx, so they stop at their next case boundary
	ctrl.Wait()

	if err := store.Flush(); err != nil {
		slog.Warn("failed to flush config", "err", err)
	}
	slog.Info("shutdown complete")
	return nil
}
