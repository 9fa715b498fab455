// Package rig drives the DUT reset line of the bench rig.
package rig

import (
	"context"
	"time"
)

// Resetter power-cycles or resets the DUT.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ResetFunc adapts a function to Resetter.
type ResetFunc func(ctx context.Context) error

func (f ResetFunc) Reset(ctx context.Context) error { return f(ctx) }

// Pulse describes an active-low reset pulse on a GPIO line.
type Pulse struct {
	// Pin is the GPIO name as known to periph, e.g. GPIO17.
	Pin string
	// Hold is how long the line stays asserted.
	Hold time.Duration
	// Settle is how long to wait after release before the DUT is usable.
	Settle time.Duration
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
