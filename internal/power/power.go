// Package power implements the suspend and resume call sequences a host
// issues to the Bluetooth stack around a system power transition.
//
// Each sequence issues its calls one after another and stops at the first
// failure; nothing is retried. Every sequence ends with an le_rand request
// whose only purpose is to confirm the stack still answers.
package power

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/topshim"
)

// SuspendState is what a wakeful suspend hands to the matching resume.
type SuspendState struct {
	// A2DPConnected records whether an audio link was up before suspend.
	A2DPConnected bool
	// Rand is the le_rand value that closed the suspend sequence.
	Rand uint64
}

// Sequencer runs the power sequences against one DUT.
type Sequencer struct {
	adapter topshim.Adapter
	gatt    topshim.Gatt
}

// New creates a Sequencer.
func New(adapter topshim.Adapter, gatt topshim.Gatt) *Sequencer {
	return &Sequencer{adapter: adapter, gatt: gatt}
}

type step func(context.Context) error

func runSteps(ctx context.Context, steps ...step) error {
	for _, s := range steps {
		if err := s(ctx); err != nil {
			return err
		}
	}
	return nil
}

// quiesce is the part of suspend shared by both paths: drop event delivery,
// links, advertising and scanning.
func (s *Sequencer) quiesce(ctx context.Context) error {
	return runSteps(ctx,
		s.adapter.ClearEventMask,
		s.adapter.ClearEventFilter,
		s.adapter.ClearFilterAcceptList,
		s.adapter.DisconnectAllACLs,
		// The stack iterates its advertiser and scanner ids itself.
		s.gatt.UnregisterAdvertiser,
		s.gatt.StopScan,
	)
}

func (s *Sequencer) restoreFilters(ctx context.Context) error {
	return runSteps(ctx,
		s.adapter.SetDefaultEventMask,
		s.adapter.SetEventFilterInquiryResultAllDevices,
		s.adapter.SetEventFilterConnectionSetupAllDevices,
	)
}

// NoWakeSuspend prepares the stack for a suspend it must not wake from.
func (s *Sequencer) NoWakeSuspend(ctx context.Context) (uint64, error) {
	if err := s.quiesce(ctx); err != nil {
		return 0, fmt.Errorf("no-wake suspend: %w", err)
	}
	v, err := s.adapter.LeRand(ctx)
	if err != nil {
		return 0, fmt.Errorf("no-wake suspend: %w", err)
	}
	return v, nil
}

// NoWakeResume restores default event delivery after a no-wake suspend.
func (s *Sequencer) NoWakeResume(ctx context.Context) (uint64, error) {
	if err := s.restoreFilters(ctx); err != nil {
		return 0, fmt.Errorf("no-wake resume: %w", err)
	}
	v, err := s.adapter.LeRand(ctx)
	if err != nil {
		return 0, fmt.Errorf("no-wake resume: %w", err)
	}
	return v, nil
}

// WakefulSuspend prepares the stack for a suspend that HID devices may wake.
// a2dpConnected is carried into the returned state for WakefulResume.
func (s *Sequencer) WakefulSuspend(ctx context.Context, a2dpConnected bool) (SuspendState, error) {
	st := SuspendState{A2DPConnected: a2dpConnected}
	if err := s.quiesce(ctx); err != nil {
		return st, fmt.Errorf("wakeful suspend: %w", err)
	}
	if a2dpConnected {
		// TODO: disconnect the A2DP link once the facade exposes it.
		slog.Debug("power: a2dp disconnect not available, skipping")
	}
	if err := s.adapter.AllowWakeByHID(ctx); err != nil {
		return st, fmt.Errorf("wakeful suspend: %w", err)
	}
	v, err := s.adapter.LeRand(ctx)
	if err != nil {
		return st, fmt.Errorf("wakeful suspend: %w", err)
	}
	st.Rand = v
	return st, nil
}

// WakefulResume undoes WakefulSuspend. The accept list is restored only when
// an audio link was up before suspend.
func (s *Sequencer) WakefulResume(ctx context.Context, st SuspendState) (uint64, error) {
	if err := s.restoreFilters(ctx); err != nil {
		return 0, fmt.Errorf("wakeful resume: %w", err)
	}
	if st.A2DPConnected {
		if err := s.adapter.RestoreFilterAcceptList(ctx); err != nil {
			return 0, fmt.Errorf("wakeful resume: %w", err)
		}
		// Reconnecting the last A2DP device and restarting advertising are
		// not exposed by the facade yet.
		slog.Debug("power: a2dp reconnect and advertising restart not available, skipping")
	}
	v, err := s.adapter.LeRand(ctx)
	if err != nil {
		return 0, fmt.Errorf("wakeful resume: %w", err)
	}
	return v, nil
}
