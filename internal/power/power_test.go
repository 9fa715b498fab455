package power_test

import (
	"context"
	"testing"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/power"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/topshim"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var quiesceCalls = []string{
	topshim.CallClearEventMask,
	topshim.CallClearEventFilter,
	topshim.CallClearFilterAcceptList,
	topshim.CallDisconnectAllACLs,
	topshim.CallUnregisterAdvertiser,
	topshim.CallStopScan,
}

var restoreCalls = []string{
	topshim.CallSetDefaultEventMask,
	topshim.CallSetEventFilterInquiryResultAllDevices,
	topshim.CallSetEventFilterConnectionSetupAllDevices,
}

func join(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

type SequenceSuite struct {
	suite.Suite

	ctx  context.Context
	fake *topshim.Fake
	seq  *power.Sequencer
}

func TestSequenceSuite(t *testing.T) {
	suite.Run(t, new(SequenceSuite))
}

func (s *SequenceSuite) SetupTest() {
	s.ctx = context.Background()
	s.fake = topshim.NewFake()
	client := topshim.NewClient(s.fake)
	s.seq = power.New(client, client)
}

func (s *SequenceSuite) TestNoWakeSuspendOrder() {
	_, err := s.seq.NoWakeSuspend(s.ctx)
	s.Require().NoError(err)
	s.Equal(join(quiesceCalls, []string{topshim.CallLeRand}), s.fake.Calls())
}

func (s *SequenceSuite) TestNoWakeResumeOrder() {
	_, err := s.seq.NoWakeResume(s.ctx)
	s.Require().NoError(err)
	s.Equal(join(restoreCalls, []string{topshim.CallLeRand}), s.fake.Calls())
}

func (s *SequenceSuite) TestWakefulSuspendWithoutAudio() {
	st, err := s.seq.WakefulSuspend(s.ctx, false)
	s.Require().NoError(err)
	s.False(st.A2DPConnected)
	s.Equal(join(quiesceCalls, []string{topshim.CallAllowWakeByHID, topshim.CallLeRand}), s.fake.Calls())
}

func (s *SequenceSuite) TestWakefulSuspendWithAudioIssuesNoAudioCall() {
	st, err := s.seq.WakefulSuspend(s.ctx, true)
	s.Require().NoError(err)
	s.True(st.A2DPConnected, "state must carry the audio flag to resume")
	s.Equal(join(quiesceCalls, []string{topshim.CallAllowWakeByHID, topshim.CallLeRand}), s.fake.Calls())
}

func (s *SequenceSuite) TestWakefulResumeRestoresAcceptListOnlyAfterAudio() {
	_, err := s.seq.WakefulResume(s.ctx, power.SuspendState{A2DPConnected: false})
	s.Require().NoError(err)
	s.NotContains(s.fake.Calls(), topshim.CallRestoreFilterAcceptList)

	s.fake.Reset()
	_, err = s.seq.WakefulResume(s.ctx, power.SuspendState{A2DPConnected: true})
	s.Require().NoError(err)
	s.Equal(join(restoreCalls, []string{topshim.CallRestoreFilterAcceptList, topshim.CallLeRand}), s.fake.Calls())
}

func (s *SequenceSuite) TestNoWakeResumeNeverRestoresAcceptList() {
	_, err := s.seq.NoWakeResume(s.ctx)
	s.Require().NoError(err)
	s.NotContains(s.fake.Calls(), topshim.CallRestoreFilterAcceptList)
}

func (s *SequenceSuite) TestSuspendStateThreadsIntoResume() {
	st, err := s.seq.WakefulSuspend(s.ctx, true)
	s.Require().NoError(err)
	s.fake.Reset()

	_, err = s.seq.WakefulResume(s.ctx, st)
	s.Require().NoError(err)
	s.Contains(s.fake.Calls(), topshim.CallRestoreFilterAcceptList)
}

func (s *SequenceSuite) TestFailureStopsSequence() {
	s.fake.FailOn(topshim.CallDisconnectAllACLs, nil)

	_, err := s.seq.NoWakeSuspend(s.ctx)
	s.Require().Error(err)
	s.ErrorIs(err, topshim.ErrInjected)
	s.Contains(err.Error(), "no-wake suspend: disconnect_all_acls")
	s.Equal(quiesceCalls[:4], s.fake.Calls(), "calls after the failure must not be issued")
}

func (s *SequenceSuite) TestFailingLivenessProbe() {
	s.fake.FailOn(topshim.CallLeRand, nil)

	_, err := s.seq.WakefulSuspend(s.ctx, false)
	s.Require().ErrorIs(err, topshim.ErrInjected)
	s.Contains(err.Error(), "wakeful suspend: le_rand")
}

func (s *SequenceSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.seq.NoWakeResume(ctx)
	s.Require().ErrorIs(err, context.Canceled)
	s.Empty(s.fake.Calls())
}

func TestNoWakeSuspendThenResume(t *testing.T) {
	fake := topshim.NewFake()
	client := topshim.NewClient(fake)
	seq := power.New(client, client)
	ctx := context.Background()

	_, err := seq.NoWakeSuspend(ctx)
	require.NoError(t, err)
	_, err = seq.NoWakeResume(ctx)
	require.NoError(t, err)

	require.Equal(t, []string{
		"clear_event_mask",
		"clear_event_filter",
		"clear_filter_accept_list",
		"disconnect_all_acls",
		"unregister_advertiser",
		"stop_scan",
		"le_rand",
		"set_default_event_mask",
		"set_event_filter_inquiry_result_all_devices",
		"set_event_filter_connection_setup_all_devices",
		"le_rand",
	}, fake.Calls())
}
