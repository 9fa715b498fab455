package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	settingsFileName = "settings.json"
	corruptSuffix    = ".corrupt"
	debounceDelay    = 500 * time.Millisecond
)

// JSONStore is an atomic JSON file store with debounced writes.
type JSONStore struct {
	mu      sync.Mutex
	path    string
	timer   *time.Timer
	pending *Settings
}

// NewJSONStore creates a new JSON store in the given config directory.
func NewJSONStore(configDir string) *JSONStore {
	return &JSONStore{
		path: filepath.Join(configDir, settingsFileName),
	}
}

// Path returns the file path used by this store.
func (s *JSONStore) Path() string { return s.path }

// Load reads the settings from disk. A pending debounced save wins over the
// file. A missing file yields DefaultSettings. A file that does not parse is
// moved aside to settings.json.corrupt so a later Save cannot overwrite the
// operator's edits, and DefaultSettings are returned.
func (s *JSONStore) Load() (*Settings, error) {
	s.mu.Lock()
	if s.pending != nil {
		cp := *s.pending
		s.mu.Unlock()
		return &cp, nil
	}
	s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultSettings()
		return &def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var st Settings
	if err := json.Unmarshal(data, &st); err != nil {
		backup := s.path + corruptSuffix
		slog.Warn("config: corrupt settings file, using defaults", "path", s.path, "backup", backup, "err", err)
		if rerr := os.Rename(s.path, backup); rerr != nil {
			slog.Warn("config: could not move corrupt settings aside", "err", rerr)
		}
		def := DefaultSettings()
		return &def, nil
	}

	migrateSettings(&st)
	return &st, nil
}

// Save schedules a debounced write of the settings to disk.
// The actual write happens after 500ms of no further Save calls.
func (s *JSONStore) Save(st *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *st
	s.pending = &cp

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(debounceDelay, func() {
		if err := s.Flush(); err != nil {
			slog.Error("config: failed to write settings", "path", s.path, "err", err)
		}
	})
	return nil
}

// Flush forces an immediate write of any pending settings.
func (s *JSONStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending == nil {
		return nil
	}
	if err := s.writeAtomic(s.pending); err != nil {
		return err
	}
	s.pending = nil
	return nil
}

func (s *JSONStore) writeAtomic(st *Settings) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	// rename is atomic on the same filesystem
	tmp, err := os.CreateTemp(filepath.Dir(s.path), settingsFileName+".*")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod settings: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

var _ Store = (*JSONStore)(nil)
