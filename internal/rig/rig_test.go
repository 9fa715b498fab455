package rig_test

import (
	"context"
	"testing"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/rig"
)

func TestResetFunc(t *testing.T) {
	var n int
	var r rig.Resetter = rig.ResetFunc(func(context.Context) error {
		n++
		return nil
	})
	if err := r.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("reset called %d times, want 1", n)
	}
}

func TestNewGPIOUnknownPin(t *testing.T) {
	// Either the host drivers fail to initialise in CI or the pin is unknown.
	if _, err := rig.NewGPIO(rig.Pulse{Pin: "NO_SUCH_PIN"}); err == nil {
		t.Error("expected error for unknown pin")
	}
}
