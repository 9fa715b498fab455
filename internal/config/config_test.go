package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/config"
)

// --- JSONStore tests ---

func newTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "powertest-config-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func writeSettingsFile(t *testing.T, dir string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestJSONStore_LoadMissingFile_ReturnsDefault(t *testing.T) {
	store := config.NewJSONStore(newTempDir(t))

	s, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if *s != config.DefaultSettings() {
		t.Errorf("Load() = %+v, want defaults", *s)
	}
}

func TestJSONStore_SaveFlushLoad(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	s := config.DefaultSettings()
	s.Target = "dut-7.lab:8999"
	s.Adapter = 1
	if err := store.Save(&s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	loaded, err := config.NewJSONStore(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Target != "dut-7.lab:8999" || loaded.Adapter != 1 {
		t.Errorf("Load() = %+v", *loaded)
	}
}

func TestJSONStore_LoadSeesPendingSave(t *testing.T) {
	store := config.NewJSONStore(newTempDir(t))

	s := config.DefaultSettings()
	s.Transport = "fake"
	if err := store.Save(&s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Transport != "fake" {
		t.Errorf("Transport = %q, want pending value %q", loaded.Transport, "fake")
	}
	_ = store.Flush()
}

func TestJSONStore_DebouncedWrite(t *testing.T) {
	store := config.NewJSONStore(newTempDir(t))

	s := config.DefaultSettings()
	if err := store.Save(&s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s.Target = "second:1"
	if err := store.Save(&s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(store.Path()); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("settings not written after debounce: %v", err)
	}
	var got config.Settings
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Target != "second:1" {
		t.Errorf("Target = %q, want last saved value", got.Target)
	}
}

func TestJSONStore_CorruptJSON_ReturnsDefault(t *testing.T) {
	dir := newTempDir(t)
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := config.NewJSONStore(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if *s != config.DefaultSettings() {
		t.Errorf("corrupt file: Load() = %+v, want defaults", *s)
	}

	backup, err := os.ReadFile(filepath.Join(dir, "settings.json.corrupt"))
	if err != nil {
		t.Fatalf("corrupt file was not moved aside: %v", err)
	}
	if string(backup) != "{not json" {
		t.Errorf("backup = %q, want original contents", backup)
	}
	if _, err := os.Stat(filepath.Join(dir, "settings.json")); !os.IsNotExist(err) {
		t.Errorf("settings.json still present after load: %v", err)
	}
}

func TestJSONStore_FlushLeavesNoTempFiles(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)
	st := config.DefaultSettings()
	if err := store.Save(&st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "settings.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("config dir = %v, want only settings.json", names)
	}
}

func TestJSONStore_MigratesMissingFields(t *testing.T) {
	dir := newTempDir(t)
	writeSettingsFile(t, dir, map[string]interface{}{
		"target":  "dut:1",
		"adapter": -4,
	})

	s, err := config.NewJSONStore(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Target != "dut:1" {
		t.Errorf("Target = %q, want dut:1", s.Target)
	}
	if s.Transport != config.DefaultTransport {
		t.Errorf("Transport = %q, want %q", s.Transport, config.DefaultTransport)
	}
	if s.Adapter != 0 {
		t.Errorf("Adapter = %d, want 0", s.Adapter)
	}
	if s.CallTimeoutMs != config.DefaultCallTimeoutMs {
		t.Errorf("CallTimeoutMs = %d, want %d", s.CallTimeoutMs, config.DefaultCallTimeoutMs)
	}
	if s.HistoryFile != config.DefaultHistoryFile {
		t.Errorf("HistoryFile = %q, want %q", s.HistoryFile, config.DefaultHistoryFile)
	}
}

func TestJSONStore_MigratesUnknownTransport(t *testing.T) {
	dir := newTempDir(t)
	writeSettingsFile(t, dir, map[string]interface{}{"transport": "carrier-pigeon"})

	s, err := config.NewJSONStore(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Transport != config.DefaultTransport {
		t.Errorf("Transport = %q, want %q", s.Transport, config.DefaultTransport)
	}
}

func TestJSONStore_FlushWithoutSave_NoError(t *testing.T) {
	store := config.NewJSONStore(newTempDir(t))
	if err := store.Flush(); err != nil {
		t.Errorf("Flush() with nothing pending = %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Errorf("Flush() without Save created %s", store.Path())
	}
}

// --- MemStore tests ---

func TestMemStore_SaveLoadIsolation(t *testing.T) {
	store := config.NewMemStore()
	s := config.DefaultSettings()
	s.Target = "a:1"
	if err := store.Save(&s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Target = "mutated"

	loaded, _ := store.Load()
	if loaded.Target != "a:1" {
		t.Errorf("Target = %q, want a:1 (store must copy)", loaded.Target)
	}
	if store.Path() != ":memory:" {
		t.Errorf("Path() = %q", store.Path())
	}
}

// --- SettingsUpdate tests ---

func ptr[T any](v T) *T { return &v }

func TestSettingsUpdate_Apply(t *testing.T) {
	tests := []struct {
		name      string
		upd       config.SettingsUpdate
		wantField string
		check     func(t *testing.T, s config.Settings)
	}{
		{
			name: "transport and target",
			upd:  config.SettingsUpdate{Transport: ptr("dbus"), Adapter: ptr(1)},
			check: func(t *testing.T, s config.Settings) {
				if s.Transport != "dbus" || s.Adapter != 1 {
					t.Errorf("got %+v", s)
				}
			},
		},
		{name: "bad transport", upd: config.SettingsUpdate{Transport: ptr("usb")}, wantField: "transport"},
		{name: "negative adapter", upd: config.SettingsUpdate{Adapter: ptr(-1)}, wantField: "adapter"},
		{name: "zero timeout", upd: config.SettingsUpdate{CallTimeoutMs: ptr(0)}, wantField: "call_timeout_ms"},
		{name: "zero burst", upd: config.SettingsUpdate{CallBurst: ptr(0)}, wantField: "call_burst"},
		{name: "grpc without target", upd: config.SettingsUpdate{Target: ptr("")}, wantField: "target"},
		{
			name: "grpc with discovery",
			upd:  config.SettingsUpdate{Target: ptr(""), Discover: ptr(true)},
			check: func(t *testing.T, s config.Settings) {
				if !s.Discover || s.Target != "" {
					t.Errorf("got %+v", s)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.DefaultSettings()
			before := s
			appErr := tt.upd.Apply(&s)
			if tt.wantField != "" {
				if appErr == nil {
					t.Fatal("Apply() = nil, want error")
				}
				if appErr.Field != tt.wantField {
					t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
				}
				if s != before {
					t.Error("Apply() modified settings on error")
				}
				return
			}
			if appErr != nil {
				t.Fatalf("Apply() = %v", appErr)
			}
			tt.check(t, s)
		})
	}
}

func TestSettings_Durations(t *testing.T) {
	s := config.DefaultSettings()
	if s.CallTimeout() != 10*time.Second {
		t.Errorf("CallTimeout() = %v", s.CallTimeout())
	}
	if s.Schedule() != 0 {
		t.Errorf("Schedule() = %v, want 0", s.Schedule())
	}
	s.ScheduleMinutes = 30
	if s.Schedule() != 30*time.Minute {
		t.Errorf("Schedule() = %v", s.Schedule())
	}
}
