//go:build !linux

package rig

import (
	"context"
	"errors"
)

// GPIO is unavailable off Linux.
type GPIO struct{}

// NewGPIO always fails off Linux.
func NewGPIO(p Pulse) (*GPIO, error) {
	return nil, errors.New("gpio: reset line requires linux")
}

func (g *GPIO) Reset(ctx context.Context) error {
	return errors.New("gpio: reset line requires linux")
}
