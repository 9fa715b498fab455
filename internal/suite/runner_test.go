package suite_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/events"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/history"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/metrics"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/suite"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/topshim"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	quiesce = []string{
		topshim.CallClearEventMask,
		topshim.CallClearEventFilter,
		topshim.CallClearFilterAcceptList,
		topshim.CallDisconnectAllACLs,
		topshim.CallUnregisterAdvertiser,
		topshim.CallStopScan,
	}
	restore = []string{
		topshim.CallSetDefaultEventMask,
		topshim.CallSetEventFilterInquiryResultAllDevices,
		topshim.CallSetEventFilterConnectionSetupAllDevices,
	}
	noWakeSuspendCalls  = append(append([]string{}, quiesce...), topshim.CallLeRand)
	noWakeResumeCalls   = append(append([]string{}, restore...), topshim.CallLeRand)
	wakefulSuspendCalls = append(append([]string{}, quiesce...), topshim.CallAllowWakeByHID, topshim.CallLeRand)
	wakefulResumeCalls  = noWakeResumeCalls
)

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var expectedCalls = map[string][]string{
	"no_wake_suspend":                                  noWakeSuspendCalls,
	"no_wake_resume":                                   noWakeResumeCalls,
	"no_wake_suspend_then_resume":                      concat(noWakeSuspendCalls, noWakeResumeCalls),
	"no_wake_suspend_then_resume_then_suspend":         concat(noWakeSuspendCalls, noWakeResumeCalls, noWakeSuspendCalls),
	"wakeful_suspend_no_a2dp":                          wakefulSuspendCalls,
	"wakeful_resume_no_a2dp":                           wakefulResumeCalls,
	"wakeful_suspend_then_resume_no_a2dp":              concat(wakefulSuspendCalls, wakefulResumeCalls),
	"wakeful_suspend_then_resume_then_suspend_no_a2dp": concat(wakefulSuspendCalls, wakefulResumeCalls, wakefulSuspendCalls),
}

func TestRunner_FullMatrix(t *testing.T) {
	fx := &suite.FakeFixture{}
	r := suite.NewRunner(fx)

	run, err := r.Run(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, run.Passed())
	assert.Equal(t, "fake", run.Transport)
	assert.NotEmpty(t, run.ID)
	require.Len(t, run.Cases, 8)
	for i, res := range run.Cases {
		assert.Equal(t, suite.Names()[i], res.Name)
		assert.Equal(t, expectedCalls[res.Name], res.CallNames(), res.Name)
	}

	fakes := fx.Fakes()
	require.Len(t, fakes, 8, "each case gets a fresh DUT")
	for i, f := range fakes {
		assert.True(t, f.Closed(), "fake %d not torn down", i)
		assert.Equal(t, expectedCalls[run.Cases[i].Name], f.Calls())
	}
	assert.False(t, r.Busy())
}

func TestRunner_FailureStopsSequence(t *testing.T) {
	fx := &suite.FakeFixture{Prepare: func(f *topshim.Fake) {
		f.FailOn(topshim.CallDisconnectAllACLs, nil)
	}}
	r := suite.NewRunner(fx)

	run, err := r.Run(context.Background(), "^no_wake_suspend_then_resume$")
	require.NoError(t, err)
	require.Len(t, run.Cases, 1)

	res := run.Cases[0]
	assert.False(t, res.Passed)
	assert.False(t, run.Passed())
	assert.Contains(t, res.Error, topshim.CallDisconnectAllACLs)
	assert.Contains(t, res.Error, "no-wake suspend")
	assert.Equal(t, quiesce[:4], res.CallNames(), "no call may follow the failing one")
	assert.NotEmpty(t, res.Calls[3].Error)
	assert.True(t, fx.Fakes()[0].Closed(), "teardown runs after failure")
}

func TestRunner_FailingCaseDoesNotStopRun(t *testing.T) {
	fx := &suite.FakeFixture{Prepare: func(f *topshim.Fake) {
		f.FailOn(topshim.CallAllowWakeByHID, errors.New("controller busy"))
	}}
	r := suite.NewRunner(fx)

	run, err := r.Run(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, run.Cases, 8)
	assert.Equal(t, 3, run.Failed(), "only the wakeful suspend cases touch allow_wake_by_hid")
	for _, res := range run.Cases {
		wantPass := !strings.Contains(res.Name, "wakeful_suspend")
		assert.Equal(t, wantPass, res.Passed, res.Name)
	}
}

func TestRunner_Busy(t *testing.T) {
	fx := &suite.FakeFixture{Prepare: func(f *topshim.Fake) { f.SetDelay(20 * time.Millisecond) }}
	r := suite.NewRunner(fx)

	id, err := r.Start(context.Background(), "^no_wake_suspend$")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.True(t, r.Busy())

	_, err = r.Run(context.Background(), "")
	assert.ErrorIs(t, err, suite.ErrBusy)
	_, err = r.Start(context.Background(), "")
	assert.ErrorIs(t, err, suite.ErrBusy)

	cur, ok := r.Current()
	assert.True(t, ok)
	assert.Equal(t, id, cur.ID)

	r.Wait()
	assert.False(t, r.Busy())
	_, ok = r.Current()
	assert.False(t, ok)
}

func TestRunner_BadFilter(t *testing.T) {
	r := suite.NewRunner(&suite.FakeFixture{})

	_, err := r.Run(context.Background(), "(")
	assert.Error(t, err)
	_, err = r.Run(context.Background(), "no_such_case")
	assert.ErrorIs(t, err, suite.ErrNoCases)
	assert.False(t, r.Busy())
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := suite.NewRunner(&suite.FakeFixture{})

	run, err := r.Run(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, run.Cases)
	assert.False(t, run.Passed())
}

func TestRunner_EventsStoreAndMetrics(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe("test")
	defer bus.Unsubscribe("test")

	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	m := metrics.New()
	r := suite.NewRunner(&suite.FakeFixture{},
		suite.WithBus(bus), suite.WithStore(store), suite.WithMetrics(m))

	run, err := r.Run(context.Background(), "^no_wake_resume$")
	require.NoError(t, err)

	var types []models.EventType
	for len(sub) > 0 {
		ev := <-sub
		assert.Equal(t, run.ID, ev.RunID)
		types = append(types, ev.Type)
	}
	want := []models.EventType{models.EventRunStarted, models.EventCaseStarted}
	for range noWakeResumeCalls {
		want = append(want, models.EventCall)
	}
	want = append(want, models.EventCaseFinished, models.EventRunFinished)
	assert.Equal(t, want, types)

	saved, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, noWakeResumeCalls, saved.Cases[0].CallNames())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CasesTotal.WithLabelValues("no_wake_resume", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsTotal.WithLabelValues(topshim.CallLeRand, "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunActive))
}
