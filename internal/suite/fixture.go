package suite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/config"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/console"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/rig"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/topshim"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/zeroconf"
	"google.golang.org/grpc"
)

// Session is the per-case connection to the DUT.
type Session struct {
	Client *topshim.Client
	// Console holds the serial console lines captured during the case,
	// filled in by TearDown.
	Console []string

	capture *console.Capture
}

// Fixture prepares a fresh DUT connection for every case and tears it down
// afterwards. TearDown is called even when the case failed.
type Fixture interface {
	SetUp(ctx context.Context, obs topshim.Observer) (*Session, error)
	TearDown(ctx context.Context, s *Session) error
	// Describe returns the transport kind and target for run records.
	Describe() (transport, target string)
}

// FakeFixture runs cases against a fresh in-memory DUT.
type FakeFixture struct {
	// Prepare, when set, configures each new fake before the case runs.
	Prepare func(*topshim.Fake)

	mu    sync.Mutex
	fakes []*topshim.Fake
}

func (f *FakeFixture) SetUp(ctx context.Context, obs topshim.Observer) (*Session, error) {
	fake := topshim.NewFake()
	if f.Prepare != nil {
		f.Prepare(fake)
	}
	f.mu.Lock()
	f.fakes = append(f.fakes, fake)
	f.mu.Unlock()
	return &Session{Client: topshim.NewClient(fake, topshim.WithObserver(obs))}, nil
}

func (f *FakeFixture) TearDown(ctx context.Context, s *Session) error {
	return s.Client.Close()
}

func (f *FakeFixture) Describe() (string, string) { return topshim.KindFake, "in-process" }

// Fakes returns the fakes created so far, one per case.
func (f *FakeFixture) Fakes() []*topshim.Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*topshim.Fake(nil), f.fakes...)
}

const discoverWait = 3 * time.Second

// DialFixture connects to a real DUT with the configured transport.
type DialFixture struct {
	Settings config.Settings
	// Reset, when set, pulses the DUT reset line before each case.
	Reset rig.Resetter
	// GRPC overrides the default plaintext dial options.
	GRPC []grpc.DialOption
	// OpenConsole opens the serial console. Defaults to console.Open.
	OpenConsole func(device string, baud int) (*console.Capture, error)

	mu     sync.Mutex
	target string
}

// NewDialFixture creates a fixture from settings.
func NewDialFixture(s config.Settings) *DialFixture {
	return &DialFixture{Settings: s, target: s.Target}
}

func (f *DialFixture) resolveTarget(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.target == "" {
		f.target = f.Settings.Target
	}
	if f.target != "" || f.Settings.Transport != topshim.KindGRPC || !f.Settings.Discover {
		return f.target, nil
	}
	target, err := zeroconf.FirstDUT(ctx, discoverWait)
	if err != nil {
		return "", err
	}
	slog.Info("suite: discovered DUT", "target", target)
	f.target = target
	return target, nil
}

func (f *DialFixture) SetUp(ctx context.Context, obs topshim.Observer) (*Session, error) {
	if f.Reset != nil {
		if err := f.Reset.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset DUT: %w", err)
		}
	}

	target, err := f.resolveTarget(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover DUT: %w", err)
	}

	s := &Session{}
	if f.Settings.ConsoleDevice != "" {
		open := f.OpenConsole
		if open == nil {
			open = console.Open
		}
		c, err := open(f.Settings.ConsoleDevice, f.Settings.ConsoleBaud)
		if err != nil {
			slog.Warn("suite: console capture unavailable", "device", f.Settings.ConsoleDevice, "err", err)
		} else {
			s.capture = c
		}
	}

	t, err := topshim.Dial(ctx, topshim.DialOptions{
		Kind:    f.Settings.Transport,
		Target:  target,
		Adapter: f.Settings.Adapter,
		GRPC:    f.GRPC,
	})
	if err != nil {
		if s.capture != nil {
			s.capture.Stop()
		}
		return nil, fmt.Errorf("dial DUT: %w", err)
	}

	s.Client = topshim.NewClient(t,
		topshim.WithRateLimit(f.Settings.CallsPerSecond, f.Settings.CallBurst),
		topshim.WithCallTimeout(f.Settings.CallTimeout()),
		topshim.WithObserver(obs),
	)
	return s, nil
}

func (f *DialFixture) TearDown(ctx context.Context, s *Session) error {
	if s.capture != nil {
		s.Console = s.capture.Stop()
	}
	if err := s.Client.Close(); err != nil {
		return fmt.Errorf("close DUT client: %w", err)
	}
	return nil
}

func (f *DialFixture) Describe() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Settings.Transport == topshim.KindDBus {
		return topshim.KindDBus, fmt.Sprintf("hci%d", f.Settings.Adapter)
	}
	return f.Settings.Transport, f.target
}

// FixtureFor builds the fixture described by settings: a FakeFixture for the
// fake transport, otherwise a DialFixture with a GPIO reset when a pin is set.
func FixtureFor(s config.Settings) (Fixture, error) {
	if s.Transport == topshim.KindFake {
		return &FakeFixture{}, nil
	}
	fx := NewDialFixture(s)
	if s.ResetPin != "" {
		g, err := rig.NewGPIO(rig.Pulse{Pin: s.ResetPin, Hold: s.ResetHold(), Settle: s.ResetSettle()})
		if err != nil {
			return nil, err
		}
		fx.Reset = g
	}
	return fx, nil
}
