//go:build linux

package rig

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIO resets the DUT by pulling a GPIO line low.
type GPIO struct {
	pulse Pulse
	pin   gpio.PinOut
}

// NewGPIO initialises the periph host drivers and opens the reset pin.
func NewGPIO(p Pulse) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: host init failed: %w", err)
	}
	pin := gpioreg.ByName(p.Pin)
	if pin == nil {
		return nil, fmt.Errorf("gpio: failed to open %s", p.Pin)
	}
	return &GPIO{pulse: p, pin: pin}, nil
}

// Reset asserts the line for Hold, releases it, then waits Settle.
// The line is always released, even when ctx is cancelled mid-pulse.
func (g *GPIO) Reset(ctx context.Context) error {
	if err := g.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("gpio: failed to assert %s: %w", g.pulse.Pin, err)
	}
	holdErr := sleep(ctx, g.pulse.Hold)
	if err := g.pin.Out(gpio.High); err != nil {
		return fmt.Errorf("gpio: failed to release %s: %w", g.pulse.Pin, err)
	}
	if holdErr != nil {
		return holdErr
	}
	if err := sleep(ctx, g.pulse.Settle); err != nil {
		return err
	}
	slog.Debug("gpio: DUT reset complete", "pin", g.pulse.Pin, "hold", g.pulse.Hold, "settle", g.pulse.Settle)
	return nil
}
