// Package controller ties the harness together: settings, the case runner,
// run history and harness identity. The HTTP API and the maintenance loop
// both go through it.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/config"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/events"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/history"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/identity"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/metrics"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/suite"
)

// FixtureFactory builds the fixture for the current settings.
type FixtureFactory func(config.Settings) (suite.Fixture, error)

// Controller owns the settings and the runner. Runs started through it are
// bound to the context given to New, not to the caller's request.
type Controller struct {
	ctx context.Context

	mu        sync.RWMutex
	settings  config.Settings
	runner    *suite.Runner
	reachable *bool

	store      config.Store
	history    *history.Store
	bus        *events.Bus
	metrics    *metrics.Collectors
	newFixture FixtureFactory
	configDir  string
}

// New loads settings from store and builds the runner. history and m may be nil.
func New(ctx context.Context, store config.Store, hist *history.Store, bus *events.Bus, m *metrics.Collectors, newFixture FixtureFactory, configDir string) (*Controller, error) {
	settings, err := store.Load()
	if err != nil {
		return nil, err
	}
	if newFixture == nil {
		newFixture = suite.FixtureFor
	}

	c := &Controller{
		ctx:        ctx,
		settings:   *settings,
		store:      store,
		history:    hist,
		bus:        bus,
		metrics:    m,
		newFixture: newFixture,
		configDir:  configDir,
	}
	runner, err := c.buildRunner(c.settings)
	if err != nil {
		return nil, err
	}
	c.runner = runner
	return c, nil
}

func (c *Controller) buildRunner(s config.Settings) (*suite.Runner, error) {
	fx, err := c.newFixture(s)
	if err != nil {
		return nil, err
	}
	opts := []suite.Option{suite.WithBus(c.bus)}
	if c.history != nil {
		opts = append(opts, suite.WithStore(c.history))
	}
	if c.metrics != nil {
		opts = append(opts, suite.WithMetrics(c.metrics))
	}
	return suite.NewRunner(fx, opts...), nil
}

// Settings returns a copy of the current settings.
func (c *Controller) Settings() config.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// UpdateSettings applies a partial update. Settings are locked while a run
// owns the DUT.
func (c *Controller) UpdateSettings(upd config.SettingsUpdate) (config.Settings, *models.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runner.Busy() {
		return config.Settings{}, models.ErrDUTBusy
	}
	next := c.settings
	if appErr := upd.Apply(&next); appErr != nil {
		return config.Settings{}, appErr
	}
	runner, err := c.buildRunner(next)
	if err != nil {
		return config.Settings{}, models.ErrBadRequest(err.Error())
	}

	if next.Transport != c.settings.Transport || next.Target != c.settings.Target {
		c.reachable = nil
	}
	c.settings = next
	c.runner = runner
	if err := c.store.Save(&c.settings); err != nil {
		slog.Error("controller: failed to save settings", "err", err)
	}
	slog.Info("controller: settings updated", "transport", next.Transport, "target", next.Target)
	return c.settings, nil
}

// Cases lists the matrix.
func (c *Controller) Cases() []models.CaseInfo {
	cases := suite.Cases()
	out := make([]models.CaseInfo, len(cases))
	for i, cs := range cases {
		steps := make([]string, len(cs.Steps))
		for j, st := range cs.Steps {
			steps[j] = st.Kind.String()
		}
		out[i] = models.CaseInfo{Name: cs.Name, Steps: steps}
	}
	return out
}

func (c *Controller) currentRunner() *suite.Runner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runner
}

// StartRun launches a run in the background and returns its ID.
func (c *Controller) StartRun(filter string) (string, *models.AppError) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, err := c.runner.Start(c.ctx, filter)
	switch {
	case errors.Is(err, suite.ErrBusy):
		return "", models.ErrDUTBusy
	case err != nil:
		return "", models.ErrInvalidField("filter", err.Error())
	}
	return id, nil
}

// Wait blocks until background runs have finished.
func (c *Controller) Wait() {
	c.currentRunner().Wait()
}

// GetRun returns the run in progress or a stored run.
func (c *Controller) GetRun(id string) (models.Run, *models.AppError) {
	if run, ok := c.currentRunner().Current(); ok && run.ID == id {
		return run, nil
	}
	if c.history == nil {
		return models.Run{}, models.ErrNotFound("run " + id + " not found")
	}
	run, err := c.history.GetRun(id)
	if errors.Is(err, history.ErrRunNotFound) {
		return models.Run{}, models.ErrNotFound("run " + id + " not found")
	}
	if err != nil {
		return models.Run{}, models.ErrInternal(err.Error())
	}
	return run, nil
}

// ListRuns returns stored run summaries, newest first.
func (c *Controller) ListRuns(limit int) ([]models.RunSummary, *models.AppError) {
	if c.history == nil {
		return []models.RunSummary{}, nil
	}
	runs, err := c.history.ListRuns(limit)
	if err != nil {
		return nil, models.ErrInternal(err.Error())
	}
	return runs, nil
}

// SetReachable records the last DUT reachability probe result.
func (c *Controller) SetReachable(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reachable = &ok
}

// Busy reports whether a run is in progress.
func (c *Controller) Busy() bool {
	return c.currentRunner().Busy()
}

// GetInfo describes the harness and its DUT.
func (c *Controller) GetInfo() models.Info {
	id := identity.Get(c.configDir)
	c.mu.RLock()
	info := models.Info{
		Hostname:     id.Hostname,
		Version:      id.Version,
		Kernel:       id.Kernel,
		Target:       c.settings.Target,
		DUTReachable: c.reachable,
	}
	runner := c.runner
	c.mu.RUnlock()

	if run, ok := runner.Current(); ok {
		info.Busy = true
		info.ActiveRun = run.ID
	}
	return info
}
