package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/events"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/metrics"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/power"
	"github.com/google/uuid"
)

// ErrBusy is returned when a run is requested while another one owns the DUT.
var ErrBusy = errors.New("suite: a run is already in progress")

// ErrNoCases is returned when the filter selects nothing.
var ErrNoCases = errors.New("suite: filter matches no case")

const teardownTimeout = 10 * time.Second

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(run models.Run) error
}

// Runner executes cases sequentially against one fixture. At most one run is
// active at a time.
type Runner struct {
	fixture Fixture
	bus     *events.Bus
	store   RunStore
	metrics *metrics.Collectors

	mu      sync.Mutex
	current *models.Run
	wg      sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithBus publishes run events on bus.
func WithBus(bus *events.Bus) Option { return func(r *Runner) { r.bus = bus } }

// WithStore saves every finished run.
func WithStore(s RunStore) Option { return func(r *Runner) { r.store = s } }

// WithMetrics records call, case and run metrics.
func WithMetrics(m *metrics.Collectors) Option { return func(r *Runner) { r.metrics = m } }

// NewRunner creates a runner for fixture.
func NewRunner(fixture Fixture, opts ...Option) *Runner {
	r := &Runner{fixture: fixture}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Busy reports whether a run is in progress.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Current returns a snapshot of the run in progress.
func (r *Runner) Current() (models.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return models.Run{}, false
	}
	run := *r.current
	run.Cases = append([]models.CaseResult(nil), r.current.Cases...)
	return run, true
}

// Run executes the cases selected by filter and blocks until they finish.
func (r *Runner) Run(ctx context.Context, filter string) (models.Run, error) {
	cases, err := r.selectCases(filter)
	if err != nil {
		return models.Run{}, err
	}
	run, err := r.acquire(filter)
	if err != nil {
		return models.Run{}, err
	}
	return r.execute(ctx, run, cases), nil
}

// Start launches a run in the background and returns its ID. The run is
// bound to ctx; use Wait to block until background runs finish.
func (r *Runner) Start(ctx context.Context, filter string) (string, error) {
	cases, err := r.selectCases(filter)
	if err != nil {
		return "", err
	}
	run, err := r.acquire(filter)
	if err != nil {
		return "", err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(ctx, run, cases)
	}()
	return run.ID, nil
}

// Wait blocks until every run launched by Start has finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) selectCases(filter string) ([]Case, error) {
	cases, err := Select(filter)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoCases, filter)
	}
	return cases, nil
}

func (r *Runner) acquire(filter string) (models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return models.Run{}, ErrBusy
	}
	transport, target := r.fixture.Describe()
	run := models.Run{
		ID:        uuid.New().String(),
		Target:    target,
		Transport: transport,
		Filter:    filter,
		Cases:     []models.CaseResult{},
		Started:   time.Now(),
	}
	r.current = &run
	return run, nil
}

func (r *Runner) publish(ev models.Event) {
	if r.bus == nil {
		return
	}
	ev.Time = time.Now()
	r.bus.Publish(ev)
}

func (r *Runner) execute(ctx context.Context, run models.Run, cases []Case) models.Run {
	slog.Info("suite: run started", "run", run.ID, "cases", len(cases), "target", run.Target)
	if r.metrics != nil {
		r.metrics.ObserveRun(run, true)
	}
	r.publish(models.Event{Type: models.EventRunStarted, RunID: run.ID})

	for _, c := range cases {
		if ctx.Err() != nil {
			slog.Warn("suite: run cancelled", "run", run.ID, "remaining_from", c.Name)
			break
		}
		res := r.runCase(ctx, run.ID, c)
		run.Cases = append(run.Cases, res)
		r.mu.Lock()
		r.current.Cases = append(r.current.Cases, res)
		r.mu.Unlock()
	}
	run.Finished = time.Now()

	if r.metrics != nil {
		r.metrics.ObserveRun(run, false)
	}
	if r.store != nil {
		if err := r.store.SaveRun(run); err != nil {
			slog.Error("suite: failed to save run", "run", run.ID, "err", err)
		}
	}

	passed := run.Passed()
	r.publish(models.Event{Type: models.EventRunFinished, RunID: run.ID, Passed: &passed})
	slog.Info("suite: run finished", "run", run.ID, "passed", passed, "failed", run.Failed(), "duration", run.Finished.Sub(run.Started))

	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
	return run
}

func (r *Runner) runCase(ctx context.Context, runID string, c Case) models.CaseResult {
	res := models.CaseResult{Name: c.Name, Calls: []models.Call{}, Started: time.Now()}
	r.publish(models.Event{Type: models.EventCaseStarted, RunID: runID, Case: c.Name})

	obs := func(call models.Call) {
		res.Calls = append(res.Calls, call)
		if r.metrics != nil {
			r.metrics.ObserveCall(call)
		}
		r.publish(models.Event{Type: models.EventCall, RunID: runID, Case: c.Name, Call: &call})
	}

	err := r.exec(ctx, c, obs, &res)
	res.Finished = time.Now()
	res.Passed = err == nil
	if err != nil {
		res.Error = err.Error()
		slog.Warn("suite: case failed", "case", c.Name, "err", err)
	} else {
		slog.Info("suite: case passed", "case", c.Name, "calls", len(res.Calls))
	}

	if r.metrics != nil {
		r.metrics.ObserveCase(res)
	}
	passed := res.Passed
	r.publish(models.Event{Type: models.EventCaseFinished, RunID: runID, Case: c.Name, Passed: &passed, Error: res.Error})
	return res
}

// exec runs one case between SetUp and TearDown. A teardown error fails an
// otherwise passing case.
func (r *Runner) exec(ctx context.Context, c Case, obs func(models.Call), res *models.CaseResult) (err error) {
	sess, err := r.fixture.SetUp(ctx, obs)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
		defer cancel()
		terr := r.fixture.TearDown(tctx, sess)
		res.Console = sess.Console
		if terr != nil && err == nil {
			err = fmt.Errorf("teardown: %w", terr)
		}
	}()

	return c.Exec(ctx, power.New(sess.Client, sess.Client))
}
