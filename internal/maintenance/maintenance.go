// Package maintenance runs the background loops of a serving harness:
// DUT reachability probing, scheduled matrix runs and history pruning.
package maintenance

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/config"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/topshim"
)

// dialFunc is a variable so tests can inject a mock dialer.
var dialFunc = func(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

const (
	probeTimeout  = 3 * time.Second
	pruneInterval = time.Hour
	// idleRecheck is how often a disabled schedule or probe looks at the
	// settings again.
	idleRecheck = time.Minute
)

// RunStarter launches background runs.
type RunStarter interface {
	StartRun(filter string) (string, *models.AppError)
}

// Pruner trims run history.
type Pruner interface {
	Prune(keep int) (int, error)
}

// Service manages background maintenance goroutines.
type Service struct {
	settings    func() config.Settings
	runs        RunStarter
	pruner      Pruner
	onReachable func(bool)

	lastAddr      string
	lastReachable *bool
}

// New creates a maintenance Service. settings is consulted on every tick so
// changes made through the API take effect without a restart. pruner and
// onReachable may be nil.
func New(settings func() config.Settings, runs RunStarter, pruner Pruner, onReachable func(bool)) *Service {
	return &Service{
		settings:    settings,
		runs:        runs,
		pruner:      pruner,
		onReachable: onReachable,
	}
}

// Start launches all background maintenance goroutines.
// Blocks until ctx is cancelled; all goroutines respect the context.
func (s *Service) Start(ctx context.Context) {
	go s.runProbe(ctx)
	go s.runSchedule(ctx)
	go s.runPrune(ctx)

	<-ctx.Done()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// probeAddress returns the TCP address to probe, or "" when the transport
// has no network endpoint. gRPC URI targets are reduced to their endpoint:
// dns:///dut.lab:8999 probes dut.lab:8999, while unix sockets and
// passthrough names without a port are not probed.
func probeAddress(st config.Settings) string {
	if st.Transport != topshim.KindGRPC {
		return ""
	}
	addr := st.Target
	if i := strings.Index(addr, "://"); i >= 0 {
		switch addr[:i] {
		case "dns", "passthrough":
		default:
			return ""
		}
		// scheme://[authority]/endpoint
		rest := addr[i+len("://"):]
		j := strings.Index(rest, "/")
		if j < 0 {
			return ""
		}
		addr = rest[j+1:]
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return ""
	}
	return addr
}

// probe dials the DUT once and reports the result when it changed.
func (s *Service) probe() {
	addr := probeAddress(s.settings())
	if addr == "" {
		return
	}
	if addr != s.lastAddr {
		s.lastAddr = addr
		s.lastReachable = nil
	}

	conn, err := dialFunc("tcp", addr, probeTimeout)
	reachable := err == nil
	if conn != nil {
		conn.Close()
	}

	if s.lastReachable == nil || *s.lastReachable != reachable {
		s.lastReachable = &reachable
		if s.onReachable != nil {
			s.onReachable(reachable)
		}
		if reachable {
			slog.Info("maintenance: DUT reachable", "target", addr)
		} else {
			slog.Warn("maintenance: DUT unreachable", "target", addr, "err", err)
		}
	}
}

func (s *Service) runProbe(ctx context.Context) {
	for {
		s.probe()
		interval := s.settings().Probe()
		if interval <= 0 {
			interval = idleRecheck
		}
		if !sleep(ctx, interval) {
			return
		}
	}
}

// scheduledRun starts a full matrix run. A busy DUT skips this slot.
func (s *Service) scheduledRun() {
	id, appErr := s.runs.StartRun("")
	if appErr != nil {
		slog.Warn("maintenance: scheduled run skipped", "err", appErr)
		return
	}
	slog.Info("maintenance: scheduled run started", "run", id)
}

func (s *Service) runSchedule(ctx context.Context) {
	for {
		interval := s.settings().Schedule()
		if interval <= 0 {
			if !sleep(ctx, idleRecheck) {
				return
			}
			continue
		}
		if !sleep(ctx, interval) {
			return
		}
		s.scheduledRun()
	}
}

func (s *Service) prune() {
	if s.pruner == nil {
		return
	}
	keep := s.settings().HistoryKeep
	if keep <= 0 {
		return
	}
	n, err := s.pruner.Prune(keep)
	if err != nil {
		slog.Error("maintenance: history prune failed", "err", err)
		return
	}
	if n > 0 {
		slog.Info("maintenance: pruned run history", "removed", n, "kept", keep)
	}
}

func (s *Service) runPrune(ctx context.Context) {
	for {
		s.prune()
		if !sleep(ctx, pruneInterval) {
			return
		}
	}
}
