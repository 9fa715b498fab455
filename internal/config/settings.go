package config

import (
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
)

// Defaults.
const (
	DefaultTransport      = "grpc"
	DefaultCallTimeoutMs  = 10000
	DefaultCallsPerSecond = 20
	DefaultCallBurst      = 5
	DefaultConsoleBaud    = 115200
	DefaultResetHoldMs    = 100
	DefaultResetSettleMs  = 2000
	DefaultAPIAddr        = ":8080"
	DefaultHistoryFile    = "history.db"
	DefaultHistoryKeep    = 500
	DefaultProbeSec       = 60
)

// Settings configures how the harness reaches and drives the DUT.
type Settings struct {
	// Transport is one of grpc, dbus or fake.
	Transport string `json:"transport"`
	// Target is the host:port of the topshim gRPC facade. When empty and
	// Discover is set, the first DUT found over mDNS is used.
	Target   string `json:"target"`
	Discover bool   `json:"discover"`
	// Adapter is the HCI index used for D-Bus object paths.
	Adapter int `json:"adapter"`

	CallTimeoutMs  int     `json:"call_timeout_ms"`
	CallsPerSecond float64 `json:"calls_per_second"`
	CallBurst      int     `json:"call_burst"`

	// ConsoleDevice is the serial device wired to the DUT console, e.g.
	// /dev/ttyUSB0. Empty disables capture.
	ConsoleDevice string `json:"console_device,omitempty"`
	ConsoleBaud   int    `json:"console_baud"`

	// ResetPin is the GPIO driving the DUT reset line, e.g. GPIO17.
	// Empty disables the reset pulse before each case.
	ResetPin      string `json:"reset_pin,omitempty"`
	ResetHoldMs   int    `json:"reset_hold_ms"`
	ResetSettleMs int    `json:"reset_settle_ms"`

	APIAddr string `json:"api_addr"`
	MDNS    bool   `json:"mdns"`

	// HistoryFile is relative to the config directory unless absolute.
	HistoryFile string `json:"history_file"`
	HistoryKeep int    `json:"history_keep"`

	// ScheduleMinutes runs the full matrix periodically while serving.
	// Zero disables scheduled runs.
	ScheduleMinutes int `json:"schedule_minutes"`
	// ProbeSec is the DUT reachability check interval while serving.
	ProbeSec int `json:"probe_sec"`
}

// DefaultSettings returns settings for a gRPC facade on localhost.
func DefaultSettings() Settings {
	return Settings{
		Transport:      DefaultTransport,
		Target:         "localhost:8999",
		CallTimeoutMs:  DefaultCallTimeoutMs,
		CallsPerSecond: DefaultCallsPerSecond,
		CallBurst:      DefaultCallBurst,
		ConsoleBaud:    DefaultConsoleBaud,
		ResetHoldMs:    DefaultResetHoldMs,
		ResetSettleMs:  DefaultResetSettleMs,
		APIAddr:        DefaultAPIAddr,
		HistoryFile:    DefaultHistoryFile,
		HistoryKeep:    DefaultHistoryKeep,
		ProbeSec:       DefaultProbeSec,
	}
}

// CallTimeout returns the per-call timeout.
func (s Settings) CallTimeout() time.Duration {
	return time.Duration(s.CallTimeoutMs) * time.Millisecond
}

// ResetHold returns how long the reset line is held asserted.
func (s Settings) ResetHold() time.Duration {
	return time.Duration(s.ResetHoldMs) * time.Millisecond
}

// ResetSettle returns how long to wait for the DUT after releasing reset.
func (s Settings) ResetSettle() time.Duration {
	return time.Duration(s.ResetSettleMs) * time.Millisecond
}

// Schedule returns the scheduled run interval, zero when disabled.
func (s Settings) Schedule() time.Duration {
	return time.Duration(s.ScheduleMinutes) * time.Minute
}

// Probe returns the reachability check interval.
func (s Settings) Probe() time.Duration {
	return time.Duration(s.ProbeSec) * time.Second
}

func validTransport(t string) bool {
	switch t {
	case "grpc", "dbus", "fake":
		return true
	}
	return false
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
type SettingsUpdate struct {
	Transport       *string  `json:"transport,omitempty"`
	Target          *string  `json:"target,omitempty"`
	Discover        *bool    `json:"discover,omitempty"`
	Adapter         *int     `json:"adapter,omitempty"`
	CallTimeoutMs   *int     `json:"call_timeout_ms,omitempty"`
	CallsPerSecond  *float64 `json:"calls_per_second,omitempty"`
	CallBurst       *int     `json:"call_burst,omitempty"`
	ConsoleDevice   *string  `json:"console_device,omitempty"`
	ConsoleBaud     *int     `json:"console_baud,omitempty"`
	ResetPin        *string  `json:"reset_pin,omitempty"`
	ScheduleMinutes *int     `json:"schedule_minutes,omitempty"`
}

// Apply validates the update and applies it to s. s is untouched on error.
func (u SettingsUpdate) Apply(s *Settings) *models.AppError {
	next := *s
	if u.Transport != nil {
		if !validTransport(*u.Transport) {
			return models.ErrInvalidField("transport", "transport must be grpc, dbus or fake")
		}
		next.Transport = *u.Transport
	}
	if u.Target != nil {
		next.Target = *u.Target
	}
	if u.Discover != nil {
		next.Discover = *u.Discover
	}
	if u.Adapter != nil {
		if *u.Adapter < 0 {
			return models.ErrInvalidField("adapter", "adapter index must not be negative")
		}
		next.Adapter = *u.Adapter
	}
	if u.CallTimeoutMs != nil {
		if *u.CallTimeoutMs <= 0 {
			return models.ErrInvalidField("call_timeout_ms", "call timeout must be positive")
		}
		next.CallTimeoutMs = *u.CallTimeoutMs
	}
	if u.CallsPerSecond != nil {
		if *u.CallsPerSecond < 0 {
			return models.ErrInvalidField("calls_per_second", "calls per second must not be negative")
		}
		next.CallsPerSecond = *u.CallsPerSecond
	}
	if u.CallBurst != nil {
		if *u.CallBurst < 1 {
			return models.ErrInvalidField("call_burst", "call burst must be at least 1")
		}
		next.CallBurst = *u.CallBurst
	}
	if u.ConsoleDevice != nil {
		next.ConsoleDevice = *u.ConsoleDevice
	}
	if u.ConsoleBaud != nil {
		if *u.ConsoleBaud <= 0 {
			return models.ErrInvalidField("console_baud", "console baud must be positive")
		}
		next.ConsoleBaud = *u.ConsoleBaud
	}
	if u.ResetPin != nil {
		next.ResetPin = *u.ResetPin
	}
	if u.ScheduleMinutes != nil {
		if *u.ScheduleMinutes < 0 {
			return models.ErrInvalidField("schedule_minutes", "schedule must not be negative")
		}
		next.ScheduleMinutes = *u.ScheduleMinutes
	}
	if next.Transport == "grpc" && next.Target == "" && !next.Discover {
		return models.ErrInvalidField("target", "grpc transport needs a target or discovery")
	}
	*s = next
	return nil
}
