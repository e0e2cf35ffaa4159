package supervisor

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type SupervisorTestSuite struct {
	suite.Suite
	helper    *testutils.TestHelper
	adapter   *testutils.MockAdapter
	dialer    *testutils.MockDialer
	transport *testutils.PipeTransport
	opts      Options
	sup       *Supervisor
}

func (s *SupervisorTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.adapter = testutils.NewReadyAdapter()
	s.dialer = &testutils.MockDialer{}
	s.transport = testutils.NewPipeTransport()
	s.opts = DefaultOptions()
	s.sup = nil
}

func (s *SupervisorTestSuite) TearDownTest() {
	if s.sup != nil {
		s.sup.Close()
	}
}

// withBondedScale makes the target available among bonded devices and dialable
func (s *SupervisorTestSuite) withBondedScale() {
	s.adapter.On("Bonded", mock.Anything).Return([]device.Handle{testutils.Scale()}, nil)
	s.dialer.On("Dial", mock.Anything, testutils.BondedScale(), device.SerialPortProfile).Return(s.transport, nil)
}

func (s *SupervisorTestSuite) start() *Supervisor {
	s.sup = New(s.adapter, s.dialer, s.opts, s.helper.Logger)
	s.Require().NoError(s.sup.Start(context.Background()))
	return s.sup
}

// connect starts the supervisor and waits for LinkUp
func (s *SupervisorTestSuite) connect() *Supervisor {
	s.withBondedScale()
	sup := s.start()
	ev := s.next(sup)
	s.Require().Equal(LinkUp, ev.Type, "first event MUST be LinkUp")
	s.Require().Equal(Connected, sup.State())
	return sup
}

func (s *SupervisorTestSuite) next(sup *Supervisor) Event {
	select {
	case ev, ok := <-sup.Events():
		s.Require().True(ok, "event stream closed unexpectedly")
		return ev
	case <-time.After(testutils.DefaultEventTimeout):
		s.FailNow("timed out waiting for event")
		return Event{}
	}
}

func (s *SupervisorTestSuite) expectNoEvent(sup *Supervisor) {
	select {
	case ev := <-sup.Events():
		s.Failf("unexpected event", "got %s: %v", ev.Type, ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func (s *SupervisorTestSuite) wait(sup *Supervisor) {
	ctx, cancel := context.WithTimeout(context.Background(), testutils.DefaultEventTimeout)
	defer cancel()
	s.Require().NoError(sup.Wait(ctx), "supervisor goroutines MUST finish")
}

func (s *SupervisorTestSuite) TestWeightThenCleanEnd() {
	// GOAL: a reading followed by end-of-stream closes the supervisor cleanly
	//
	// TEST SCENARIO: Connected → "70.5" → end-of-stream → [WeightReceived(70.5), LinkDown(CleanEnd)] → Closed

	sup := s.connect()

	s.Require().NoError(s.transport.Feed("70.5"))
	s.transport.Hangup()

	ev := s.next(sup)
	s.Equal(WeightReceived, ev.Type)
	s.Equal(70.5, ev.Weight)
	s.Equal("70.5", ev.Text)
	s.Equal(testutils.BondedScale(), ev.Device)

	ev = s.next(sup)
	s.Equal(LinkDown, ev.Type)
	s.True(device.IsCleanEnd(ev.Reason), "LinkDown reason MUST be a clean end")

	s.wait(sup)
	s.Equal(Closed, sup.State())
	s.Equal(1, s.transport.CloseCount(), "link MUST be closed exactly once")
	s.expectNoEvent(sup)
}

func (s *SupervisorTestSuite) TestGarbageKeepsLinkUp() {
	// GOAL: an unparseable chunk is rejected without tearing down the link
	//
	// TEST SCENARIO: Connected → "abc" → FrameRejected, still Connected → "71" → WeightReceived(71)

	sup := s.connect()

	s.Require().NoError(s.transport.Feed("abc"))
	ev := s.next(sup)
	s.Equal(FrameRejected, ev.Type)
	s.ErrorIs(ev.Reason, device.ErrParseFailed)
	s.Equal(Connected, sup.State(), "parse failure MUST NOT change state")

	s.Require().NoError(s.transport.Feed("71"))
	ev = s.next(sup)
	s.Equal(WeightReceived, ev.Type)
	s.Equal(71.0, ev.Weight)
}

func (s *SupervisorTestSuite) TestWeightsInArrivalOrder() {
	sup := s.connect()

	inputs := []string{"1.5", "", "2", "x", "-0.25", "3"}
	go func() {
		for _, in := range inputs {
			if in == "" {
				in = " "
			}
			_ = s.transport.Feed(in)
		}
	}()

	var weights []float64
	rejected := 0
	for len(weights)+rejected < len(inputs) {
		ev := s.next(sup)
		switch ev.Type {
		case WeightReceived:
			weights = append(weights, ev.Weight)
		case FrameRejected:
			rejected++
		default:
			s.FailNow("unexpected event", ev.Type.String())
		}
	}

	s.Equal([]float64{1.5, 2, -0.25, 3}, weights)
	s.Equal(2, rejected)
}

func (s *SupervisorTestSuite) TestScanConnectsOnlyFirstMatch() {
	// GOAL: the first scanned handle matching the target name is the one connected
	//
	// TEST SCENARIO: scan yields BT and Other → Dial called once, for BT

	bt := device.NewHandle("BT", "AA:BB:CC:DD:EE:FF", false)
	other := device.NewHandle("Other", "11:22:33:44:55:66", false)

	s.opts.PreferBonded = false
	s.adapter.On("Scan", mock.Anything, mock.Anything).Run(testutils.ScanEmitting(bt, other)).Return(nil)
	s.dialer.On("Dial", mock.Anything, bt, device.SerialPortProfile).Return(s.transport, nil)

	sup := s.start()
	ev := s.next(sup)
	s.Equal(LinkUp, ev.Type)
	s.Equal(bt, ev.Device)

	s.dialer.AssertNumberOfCalls(s.T(), "Dial", 1)
	s.dialer.AssertNotCalled(s.T(), "Dial", mock.Anything, other, mock.Anything)
	s.adapter.AssertNotCalled(s.T(), "Bonded", mock.Anything)
	s.adapter.AssertCalled(s.T(), "StopScan")
	s.Equal(bt, sup.Status().Device)
}

func (s *SupervisorTestSuite) TestTargetAddressNarrowsMatch() {
	first := device.NewHandle("BT", "AA:BB:CC:DD:EE:01", false)
	second := device.NewHandle("BT", "AA:BB:CC:DD:EE:02", false)

	s.opts.PreferBonded = false
	s.opts.TargetAddress = "aa-bb-cc-dd-ee-02"
	s.adapter.On("Scan", mock.Anything, mock.Anything).Run(testutils.ScanEmitting(first, second)).Return(nil)
	s.dialer.On("Dial", mock.Anything, second, device.SerialPortProfile).Return(s.transport, nil)

	sup := s.start()
	ev := s.next(sup)
	s.Equal(LinkUp, ev.Type)
	s.Equal(second, ev.Device)
}

func (s *SupervisorTestSuite) TestBondedMissFallsBackToScan() {
	s.adapter.On("Bonded", mock.Anything).Return([]device.Handle{testutils.Other("AA:AA:AA:AA:AA:AA")}, nil)
	s.adapter.On("Scan", mock.Anything, mock.Anything).Run(testutils.ScanEmitting(testutils.Scale())).Return(nil)
	s.dialer.On("Dial", mock.Anything, testutils.Scale(), device.SerialPortProfile).Return(s.transport, nil)

	sup := s.start()
	s.Equal(LinkUp, s.next(sup).Type)
	s.adapter.AssertCalled(s.T(), "Scan", mock.Anything, mock.Anything)
}

func (s *SupervisorTestSuite) TestDeviceNotFound() {
	s.adapter.On("Bonded", mock.Anything).Return([]device.Handle{}, nil)
	s.adapter.On("Scan", mock.Anything, mock.Anything).
		Run(testutils.ScanEmittingThenEnd(testutils.Other("AA:AA:AA:AA:AA:AA"))).
		Return(nil)

	sup := s.start()
	ev := s.next(sup)
	s.Equal(LinkDown, ev.Type)
	s.ErrorIs(ev.Reason, device.ErrDeviceNotFound)
	s.Equal(TextDeviceNotFound, ev.Text)

	s.Equal(Failed, sup.State())
	s.ErrorIs(sup.Status().Reason, device.ErrDeviceNotFound)
	s.dialer.AssertNotCalled(s.T(), "Dial", mock.Anything, mock.Anything, mock.Anything)
}

func (s *SupervisorTestSuite) TestScanTimeout() {
	s.opts.PreferBonded = false
	s.opts.ScanTimeout = 50 * time.Millisecond
	s.adapter.On("Scan", mock.Anything, mock.Anything).Run(testutils.ScanEmitting()).Return(context.DeadlineExceeded)

	sup := s.start()
	ev := s.next(sup)
	s.Equal(LinkDown, ev.Type)
	s.ErrorIs(ev.Reason, device.ErrDeviceNotFound)
}

func (s *SupervisorTestSuite) TestSendWhenNotConnected() {
	// GOAL: Send outside Connected fails with NotConnected and emits nothing
	//
	// TEST SCENARIO: Idle → Send → NotConnected, no event

	s.sup = New(s.adapter, s.dialer, s.opts, s.helper.Logger)

	err := s.sup.Send([]byte("T"))
	s.ErrorIs(err, device.ErrNotConnected)
	s.expectNoEvent(s.sup)
}

func (s *SupervisorTestSuite) TestSendWritesAndAcknowledges() {
	sup := s.connect()

	s.Require().NoError(sup.Send([]byte("TARE\r\n")))

	ev := s.next(sup)
	s.Equal(Sent, ev.Type)
	s.Equal(6, ev.Bytes)
	s.Equal(TextSent, ev.Text)
	s.Equal([]byte("TARE\r\n"), s.transport.Written())
}

func (s *SupervisorTestSuite) TestSendFailureEmitsNotice() {
	sup := s.connect()
	s.transport.FailWrites(syscall.EPIPE)

	err := sup.Send([]byte("TARE"))
	s.ErrorIs(err, device.ErrWriteFailed)
	s.ErrorIs(err, syscall.EPIPE)

	ev := s.next(sup)
	s.Equal(Notice, ev.Type)
	s.Equal(TextSendFailed, ev.Text)
	s.ErrorIs(ev.Reason, device.ErrWriteFailed)
	s.Equal(Connected, sup.State(), "a failed write MUST NOT change state")
}

func (s *SupervisorTestSuite) TestStopWhileConnected() {
	// GOAL: Stop emits exactly one LinkDown and makes the link unusable
	//
	// TEST SCENARIO: Connected → Stop → LinkDown(ErrStopped), Closed → Send fails → Stop again → no event

	sup := s.connect()

	sup.Stop()
	s.Equal(Closed, sup.State())
	s.Equal(1, s.transport.CloseCount(), "Stop MUST close the transport")

	ev := s.next(sup)
	s.Equal(LinkDown, ev.Type)
	s.ErrorIs(ev.Reason, ErrStopped)

	s.ErrorIs(sup.Send([]byte("T")), device.ErrNotConnected)

	sup.Stop()
	s.wait(sup)
	s.expectNoEvent(sup)
	s.Equal(1, s.transport.CloseCount())
}

func (s *SupervisorTestSuite) TestStopWhileConnecting() {
	// GOAL: stopping mid-connect emits no LinkDown and closes the late link
	//
	// TEST SCENARIO: Connecting (dial blocked) → Stop → Closed, no event → dial completes → transport closed

	release := make(chan struct{})
	s.adapter.On("Bonded", mock.Anything).Return([]device.Handle{testutils.Scale()}, nil)
	s.dialer.On("Dial", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(s.transport, nil)

	sup := s.start()
	s.Eventually(func() bool { return sup.State() == Connecting }, testutils.DefaultEventTimeout, 5*time.Millisecond)

	sup.Stop()
	s.Equal(Closed, sup.State())
	s.ErrorIs(sup.Status().Reason, ErrStopped)

	close(release)
	select {
	case <-s.transport.Closed():
	case <-time.After(testutils.DefaultEventTimeout):
		s.Fail("link completed after Stop MUST be closed")
	}

	s.wait(sup)
	s.expectNoEvent(sup)
}

func (s *SupervisorTestSuite) TestStopWhileDiscovering() {
	s.opts.PreferBonded = false
	s.adapter.On("Scan", mock.Anything, mock.Anything).Run(testutils.ScanEmitting()).Return(nil)

	sup := s.start()
	s.Equal(Discovering, sup.State())

	sup.Stop()
	s.Equal(Closed, sup.State())
	s.wait(sup)
	s.expectNoEvent(sup)
	s.adapter.AssertCalled(s.T(), "StopScan")
}

func (s *SupervisorTestSuite) TestStopWhenIdleIsNoop() {
	s.sup = New(s.adapter, s.dialer, s.opts, s.helper.Logger)
	s.sup.Stop()
	s.Equal(Idle, s.sup.State())
	s.expectNoEvent(s.sup)
}

func (s *SupervisorTestSuite) TestReadErrorFails() {
	sup := s.connect()

	s.transport.Fail(syscall.ECONNRESET)

	ev := s.next(sup)
	s.Equal(LinkDown, ev.Type)
	s.ErrorIs(ev.Reason, device.ErrLinkLost)
	s.ErrorIs(ev.Reason, syscall.ECONNRESET)
	s.False(device.IsCleanEnd(ev.Reason))

	s.wait(sup)
	s.Equal(Failed, sup.State())
	s.ErrorIs(sup.Send([]byte("T")), device.ErrNotConnected)
}

func (s *SupervisorTestSuite) TestAdapterUnavailable() {
	adapter := &testutils.MockAdapter{}
	adapter.On("Available", mock.Anything).Return(false)
	s.sup = New(adapter, s.dialer, s.opts, s.helper.Logger)

	err := s.sup.Start(context.Background())
	s.ErrorIs(err, device.ErrAdapterUnavailable)
	s.Equal(Failed, s.sup.State())

	ev := s.next(s.sup)
	s.Equal(LinkDown, ev.Type)
	s.Equal(TextAdapterUnavailable, ev.Text)
	s.NotEmpty(ev.Session)
}

// offAdapter returns an adapter that is present and granted but powered off
func offAdapter() *testutils.MockAdapter {
	adapter := &testutils.MockAdapter{}
	adapter.On("Available", mock.Anything).Return(true)
	adapter.On("CheckPermissions", mock.Anything).Return(nil).Maybe()
	adapter.On("StopScan").Return(nil).Maybe()
	return adapter
}

func (s *SupervisorTestSuite) TestRequestEnablePowersAdapterOn() {
	// GOAL: a disabled adapter is asked to power on and the cycle continues when it does
	//
	// TEST SCENARIO: adapter off → RequestEnable succeeds → Notice "Bluetooth Enabled" → LinkUp

	adapter := offAdapter()
	adapter.On("Enabled", mock.Anything).Return(false).Once()
	adapter.On("RequestEnable", mock.Anything).Return(nil).Once()
	adapter.On("Enabled", mock.Anything).Return(true)
	adapter.On("Bonded", mock.Anything).Return([]device.Handle{testutils.Scale()}, nil)
	s.dialer.On("Dial", mock.Anything, testutils.BondedScale(), device.SerialPortProfile).Return(s.transport, nil)

	s.sup = New(adapter, s.dialer, s.opts, s.helper.Logger)
	s.Require().NoError(s.sup.Start(context.Background()))

	ev := s.next(s.sup)
	s.Equal(Notice, ev.Type)
	s.Equal(TextEnabled, ev.Text)
	s.NoError(ev.Reason)
	s.Equal(LinkUp, s.next(s.sup).Type, "the connect cycle MUST continue once the adapter is on")
	adapter.AssertExpectations(s.T())
}

func (s *SupervisorTestSuite) TestRequestEnableRefused() {
	// GOAL: a refused enable request is reported before the adapter failure
	//
	// TEST SCENARIO: adapter off → RequestEnable fails → Notice "Bluetooth not Enabled" → LinkDown, Start fails

	adapter := offAdapter()
	adapter.On("Enabled", mock.Anything).Return(false)
	adapter.On("RequestEnable", mock.Anything).Return(device.ErrAdapterUnavailable).Once()

	s.sup = New(adapter, s.dialer, s.opts, s.helper.Logger)
	err := s.sup.Start(context.Background())
	s.ErrorIs(err, device.ErrAdapterUnavailable)
	s.Equal(Failed, s.sup.State())

	ev := s.next(s.sup)
	s.Equal(Notice, ev.Type)
	s.Equal(TextNotEnabled, ev.Text)
	s.ErrorIs(ev.Reason, device.ErrAdapterUnavailable)

	ev = s.next(s.sup)
	s.Equal(LinkDown, ev.Type)
	s.Equal(TextAdapterUnavailable, ev.Text)
	adapter.AssertExpectations(s.T())
}

func (s *SupervisorTestSuite) TestRequestEnableOff() {
	adapter := offAdapter()
	adapter.On("Enabled", mock.Anything).Return(false)
	s.opts.RequestEnable = false

	s.sup = New(adapter, s.dialer, s.opts, s.helper.Logger)
	s.ErrorIs(s.sup.Start(context.Background()), device.ErrAdapterUnavailable)

	s.Equal(LinkDown, s.next(s.sup).Type, "without RequestEnable the adapter failure MUST be the only event")
	adapter.AssertNotCalled(s.T(), "RequestEnable", mock.Anything)
}

func (s *SupervisorTestSuite) TestPermissionNeeded() {
	adapter := &testutils.MockAdapter{}
	adapter.On("Available", mock.Anything).Return(true)
	adapter.On("Enabled", mock.Anything).Return(true)
	adapter.On("CheckPermissions", mock.Anything).Return(device.ErrPermissionDenied)
	s.sup = New(adapter, s.dialer, s.opts, s.helper.Logger)

	err := s.sup.Start(context.Background())
	s.ErrorIs(err, device.ErrPermissionDenied)
	s.Equal(Failed, s.sup.State())

	ev := s.next(s.sup)
	s.Equal(PermissionNeeded, ev.Type, "grant failures MUST surface as PermissionNeeded")
	s.expectNoEvent(s.sup)
}

func (s *SupervisorTestSuite) TestConnectFailure() {
	s.adapter.On("Bonded", mock.Anything).Return([]device.Handle{testutils.Scale()}, nil)
	s.dialer.On("Dial", mock.Anything, mock.Anything, mock.Anything).Return(nil, syscall.EHOSTDOWN)

	sup := s.start()
	ev := s.next(sup)
	s.Equal(LinkDown, ev.Type)
	s.ErrorIs(ev.Reason, device.ErrConnectFailed)
	s.Equal(TextConnectFailed, ev.Text)
	s.Equal(Failed, sup.State())
}

func (s *SupervisorTestSuite) TestConnectPermissionDenied() {
	s.adapter.On("Bonded", mock.Anything).Return([]device.Handle{testutils.Scale()}, nil)
	s.dialer.On("Dial", mock.Anything, mock.Anything, mock.Anything).Return(nil, syscall.EACCES)

	sup := s.start()
	ev := s.next(sup)
	s.Equal(PermissionNeeded, ev.Type)
	s.Equal(Failed, sup.State())
}

func (s *SupervisorTestSuite) TestStartRules() {
	sup := s.connect()

	s.ErrorIs(sup.Start(context.Background()), device.ErrAlreadyActive)
	s.ErrorIs(sup.Reset(), device.ErrAlreadyActive, "Reset MUST be refused while active")

	sup.Stop()
	s.ErrorIs(sup.Start(context.Background()), device.ErrAlreadyActive, "Closed is terminal until Reset")
}

func (s *SupervisorTestSuite) TestResetAndRestart() {
	// GOAL: Reset returns a terminal supervisor to Idle and a new cycle can run
	//
	// TEST SCENARIO: Connected → end-of-stream → Closed → Reset → Idle → Start → Connected on a new session

	second := testutils.NewPipeTransport()
	s.adapter.On("Bonded", mock.Anything).Return([]device.Handle{testutils.Scale()}, nil)
	s.dialer.On("Dial", mock.Anything, mock.Anything, mock.Anything).Return(s.transport, nil).Once()
	s.dialer.On("Dial", mock.Anything, mock.Anything, mock.Anything).Return(second, nil).Once()

	sup := s.start()
	first := s.next(sup)
	s.Require().Equal(LinkUp, first.Type)

	s.transport.Hangup()
	s.Equal(LinkDown, s.next(sup).Type)
	s.wait(sup)

	s.Require().NoError(sup.Reset())
	s.Equal(Idle, sup.State())
	s.Nil(sup.Status().Reason)

	s.Require().NoError(sup.Start(context.Background()))
	ev := s.next(sup)
	s.Equal(LinkUp, ev.Type)
	s.NotEqual(first.Session, ev.Session, "each cycle MUST get a new session")

	s.Require().NoError(second.Feed("5"))
	ev = s.next(sup)
	s.Equal(WeightReceived, ev.Type)
	s.Equal(5.0, ev.Weight)
}

func (s *SupervisorTestSuite) TestContextCancelStops() {
	s.withBondedScale()
	s.sup = New(s.adapter, s.dialer, s.opts, s.helper.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Require().NoError(s.sup.Start(ctx))
	s.Equal(LinkUp, s.next(s.sup).Type)

	cancel()

	ev := s.next(s.sup)
	s.Equal(LinkDown, ev.Type)
	s.ErrorIs(ev.Reason, ErrStopped)
	s.Equal(Closed, s.sup.State())
}

func (s *SupervisorTestSuite) TestSlowConsumerOverwritesOldest() {
	s.opts.EventBuffer = 2
	s.withBondedScale()
	sup := s.start()

	s.Eventually(func() bool { return sup.State() == Connected }, testutils.DefaultEventTimeout, 5*time.Millisecond)
	for _, in := range []string{"1", "2", "3", "4", "5"} {
		s.Require().NoError(s.transport.Feed(in))
	}
	s.Eventually(func() bool { return sup.EventMetrics().Written == 6 }, testutils.DefaultEventTimeout, 5*time.Millisecond)

	s.Equal(int64(4), sup.EventMetrics().Overwritten)
	s.Equal(4.0, s.next(sup).Weight, "oldest events MUST be dropped first")
	s.Equal(5.0, s.next(sup).Weight)
}

func (s *SupervisorTestSuite) TestCloseEndsEventStream() {
	sup := s.connect()

	sup.Close()
	sup.Close()

	ev := s.next(sup)
	s.Equal(LinkDown, ev.Type)

	_, ok := <-sup.Events()
	s.False(ok, "event stream MUST be closed")
	s.ErrorIs(sup.Start(context.Background()), ErrClosed)
	s.ErrorIs(sup.Reset(), ErrClosed)
}

func (s *SupervisorTestSuite) TestOptionsDefaults() {
	opts := Options{}.normalized()
	s.Equal(DefaultTargetName, opts.TargetName)
	s.Equal(device.SerialPortProfile, opts.ServiceID)
	s.Equal(DefaultEventBuffer, opts.EventBuffer)

	opts = Options{TargetAddress: "aa-bb-cc-dd-ee-ff"}.normalized()
	s.Empty(opts.TargetName, "an address-only target MUST NOT require a name")
	s.True(opts.Matches(device.NewHandle("anything", "AA:BB:CC:DD:EE:FF", false)))
	s.False(opts.Matches(device.NewHandle("anything", "AA:BB:CC:DD:EE:00", false)))
}

func TestSupervisorTestSuite(t *testing.T) {
	suite.Run(t, new(SupervisorTestSuite))
}

func TestStateStrings(t *testing.T) {
	suite.Run(t, new(stateSuite))
}

type stateSuite struct {
	suite.Suite
}

func (s *stateSuite) TestTerminal() {
	for _, st := range []State{Idle, Discovering, Connecting, Connected} {
		s.False(st.Terminal(), st.String())
	}
	s.True(Closed.Terminal())
	s.True(Failed.Terminal())
	s.Equal("connected", Connected.String())
	s.Equal("unknown", State(42).String())
}

func (s *stateSuite) TestEventString() {
	s.Equal("Weight: 70.5", Event{Type: WeightReceived, Text: "70.5", Weight: 70.5}.String())
	s.Equal("Failed to send data: boom", Event{Type: Notice, Text: TextSendFailed, Reason: errors.New("boom")}.String())
}
