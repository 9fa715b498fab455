package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/config"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/controller"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/events"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/history"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/suite"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/topshim"
)

func newTestController(t *testing.T, prepare func(*topshim.Fake)) (*controller.Controller, *config.MemStore) {
	t.Helper()
	store := config.NewMemStore()
	hist, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	factory := func(config.Settings) (suite.Fixture, error) {
		return &suite.FakeFixture{Prepare: prepare}, nil
	}
	ctrl, err := controller.New(context.Background(), store, hist, events.NewBus(), nil, factory, t.TempDir())
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	return ctrl, store
}

func TestCases(t *testing.T) {
	ctrl, _ := newTestController(t, nil)
	cases := ctrl.Cases()
	if len(cases) != 8 {
		t.Fatalf("Cases() = %d entries, want 8", len(cases))
	}
	last := cases[7]
	if last.Name != "wakeful_suspend_then_resume_then_suspend_no_a2dp" || len(last.Steps) != 3 || last.Steps[1] != "wakeful_resume" {
		t.Errorf("last case = %+v", last)
	}
}

func TestStartRunStoresHistory(t *testing.T) {
	ctrl, _ := newTestController(t, nil)

	id, appErr := ctrl.StartRun("^no_wake")
	if appErr != nil {
		t.Fatalf("StartRun: %v", appErr)
	}
	ctrl.Wait()

	run, appErr := ctrl.GetRun(id)
	if appErr != nil {
		t.Fatalf("GetRun: %v", appErr)
	}
	if !run.Passed() || len(run.Cases) != 4 {
		t.Errorf("run = %d cases, passed=%v", len(run.Cases), run.Passed())
	}

	runs, appErr := ctrl.ListRuns(10)
	if appErr != nil {
		t.Fatal(appErr)
	}
	if len(runs) != 1 || runs[0].ID != id {
		t.Errorf("ListRuns = %+v", runs)
	}
}

func TestStartRunBusyAndInProgressLookup(t *testing.T) {
	ctrl, _ := newTestController(t, func(f *topshim.Fake) { f.SetDelay(10 * time.Millisecond) })

	id, appErr := ctrl.StartRun("")
	if appErr != nil {
		t.Fatalf("StartRun: %v", appErr)
	}
	defer ctrl.Wait()

	if _, appErr := ctrl.StartRun(""); appErr == nil || appErr.Status != http.StatusConflict {
		t.Errorf("second StartRun = %v, want 409", appErr)
	}
	if run, appErr := ctrl.GetRun(id); appErr != nil || run.ID != id {
		t.Errorf("GetRun during run = %v, %v", run.ID, appErr)
	}
	info := ctrl.GetInfo()
	if !info.Busy || info.ActiveRun != id {
		t.Errorf("info = %+v, want busy with active run", info)
	}

	target := "dut:1"
	if _, appErr := ctrl.UpdateSettings(config.SettingsUpdate{Target: &target}); appErr == nil || appErr.Status != http.StatusConflict {
		t.Errorf("UpdateSettings during run = %v, want 409", appErr)
	}
}

func TestStartRunBadFilter(t *testing.T) {
	ctrl, _ := newTestController(t, nil)
	for _, f := range []string{"(", "no_such_case"} {
		if _, appErr := ctrl.StartRun(f); appErr == nil || appErr.Status != http.StatusBadRequest {
			t.Errorf("StartRun(%q) = %v, want 400", f, appErr)
		}
	}
	if ctrl.Busy() {
		t.Error("controller busy after rejected run")
	}
}

func TestGetRunNotFound(t *testing.T) {
	ctrl, _ := newTestController(t, nil)
	if _, appErr := ctrl.GetRun("missing"); appErr == nil || appErr.Status != http.StatusNotFound {
		t.Errorf("GetRun = %v, want 404", appErr)
	}
}

func TestUpdateSettingsPersists(t *testing.T) {
	ctrl, store := newTestController(t, nil)

	target := "192.168.1.50:8999"
	s, appErr := ctrl.UpdateSettings(config.SettingsUpdate{Target: &target})
	if appErr != nil {
		t.Fatalf("UpdateSettings: %v", appErr)
	}
	if s.Target != target || ctrl.Settings().Target != target {
		t.Errorf("target = %q", s.Target)
	}
	saved, _ := store.Load()
	if saved.Target != target {
		t.Errorf("stored target = %q", saved.Target)
	}
	if ctrl.GetInfo().Target != target {
		t.Error("info does not reflect new target")
	}

	bad := "carrier-pigeon"
	if _, appErr := ctrl.UpdateSettings(config.SettingsUpdate{Transport: &bad}); appErr == nil || appErr.Field != "transport" {
		t.Errorf("invalid transport = %v", appErr)
	}
	if ctrl.Settings().Transport != config.DefaultTransport {
		t.Error("invalid update changed settings")
	}
}

func TestSetReachable(t *testing.T) {
	ctrl, _ := newTestController(t, nil)
	if r := ctrl.GetInfo().DUTReachable; r != nil {
		t.Errorf("reachable = %v before any probe, want unknown", *r)
	}
	ctrl.SetReachable(true)
	if r := ctrl.GetInfo().DUTReachable; r == nil || !*r {
		t.Error("SetReachable(true) not reflected in info")
	}
	ctrl.SetReachable(false)
	if r := ctrl.GetInfo().DUTReachable; r == nil || *r {
		t.Error("SetReachable(false) not reflected in info")
	}
}

func TestReachableResetOnTargetChange(t *testing.T) {
	ctrl, _ := newTestController(t, nil)
	ctrl.SetReachable(true)

	target := "dut2.lab:8999"
	if _, appErr := ctrl.UpdateSettings(config.SettingsUpdate{Target: &target}); appErr != nil {
		t.Fatalf("UpdateSettings: %v", appErr)
	}
	if r := ctrl.GetInfo().DUTReachable; r != nil {
		t.Errorf("reachable = %v after target change, want unknown", *r)
	}
}

func TestInfoOmitsReachabilityWhenUnknown(t *testing.T) {
	ctrl, _ := newTestController(t, nil)
	data, err := json.Marshal(ctrl.GetInfo())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "dut_reachable") {
		t.Errorf("info = %s, want no dut_reachable before a probe", data)
	}
}
