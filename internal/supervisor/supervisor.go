// Package supervisor owns the connection lifecycle of one scale.
//
// A Supervisor drives discovery, connect and the frame reader, and publishes
// every outcome (readings, acknowledgements, failures) on a single ordered
// event stream. Errors never cross goroutines as return values; they become
// events. Reconnection is left to the caller: after Closed or Failed, call
// Reset and Start again.
//
//	sup := supervisor.New(adapter, dialer, supervisor.DefaultOptions(), logger)
//	if err := sup.Start(ctx); err != nil {
//	    ...
//	}
//	for ev := range sup.Events() {
//	    ...
//	}
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/connector"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/discovery"
	"github.com/srg/scalelink/internal/frame"
	"github.com/srg/scalelink/internal/groutine"
	"github.com/srg/scalelink/internal/ringchan"
)

var (
	// ErrStopped is the LinkDown reason when the caller stops a connected supervisor
	ErrStopped = errors.New("stopped by caller")
	// ErrClosed is returned once Close has been called
	ErrClosed = errors.New("supervisor closed")
)

// Supervisor runs discovery, connect, read and write for one target device
type Supervisor struct {
	adapter    device.Adapter
	opts       Options
	logger     *logrus.Logger
	discoverer *discovery.Discoverer
	connector  *connector.Connector
	reader     *frame.Reader
	writer     *Writer
	events     *ringchan.RingChannel[Event]

	mu      sync.Mutex
	state   State
	reason  error
	dev     device.Handle
	session string
	gen     uint64
	link    *device.Link
	cancel  context.CancelFunc
	cycle   *groutine.Handle
	readerH *groutine.Handle
	closed  bool
}

// New creates an idle Supervisor
func New(adapter device.Adapter, dialer device.Dialer, opts Options, logger *logrus.Logger) *Supervisor {
	if logger == nil {
		logger = logrus.New()
	}
	opts = opts.normalized()

	s := &Supervisor{
		adapter: adapter,
		opts:    opts,
		logger:  logger,
		events:  ringchan.New[Event](opts.EventBuffer),
	}
	s.discoverer = discovery.New(adapter, logger)
	s.connector = connector.New(dialer, s.discoverer, logger)
	s.reader = frame.NewReader(opts.Reader, logger)
	s.writer = NewWriter(s.emit, logger)
	return s
}

// Start begins a connect cycle. It is only valid from Idle.
//
// With Options.RequestEnable a present but disabled adapter is asked to power
// on first, and the outcome is published as a Notice. A missing or still
// disabled adapter moves straight to Failed with a LinkDown event, missing
// grants to Failed with a PermissionNeeded event; the reason is also returned. Otherwise the supervisor enters Discovering and the cycle
// continues in the background. Cancelling ctx has the effect of Stop.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != Idle {
		return &device.Error{Kind: device.KindAlreadyActive, Msg: fmt.Sprintf("supervisor is %s", s.state)}
	}

	s.gen++
	s.session = ulid.Make().String()
	s.dev = device.Handle{}
	s.reason = nil
	s.cancel = nil

	if s.opts.RequestEnable {
		s.requestEnableLocked(ctx)
	}
	if err := discovery.CheckAdapter(ctx, s.adapter); err != nil {
		s.failLocked(err)
		return err
	}

	cycleCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.setStateLocked(Discovering)

	gen := s.gen
	context.AfterFunc(cycleCtx, func() { s.stop(gen) })
	s.cycle = groutine.Go(cycleCtx, "connect-cycle", func(ctx context.Context) {
		s.connectCycle(ctx, gen)
	})
	return nil
}

func (s *Supervisor) connectCycle(ctx context.Context, gen uint64) {
	target, err := s.findTarget(ctx)

	s.mu.Lock()
	if !s.current(gen, Discovering) {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.failLocked(err)
		s.mu.Unlock()
		return
	}
	s.dev = target
	s.setStateLocked(Connecting)
	s.mu.Unlock()

	link, err := s.connector.Connect(ctx, target, s.opts.ServiceID, s.opts.ConnectTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(gen, Connecting) {
		if link != nil {
			s.logger.WithField("address", target.Address).Debug("Closing link completed after stop")
			_ = link.Close()
		}
		return
	}
	if err != nil {
		s.failLocked(err)
		return
	}

	s.link = link
	s.setStateLocked(Connected)
	s.emitLocked(Event{Type: LinkUp, Text: TextConnected})

	s.readerH = groutine.Go(ctx, "frame-reader", func(context.Context) {
		s.reader.Run(link,
			func(f frame.Frame) { s.onFrame(gen, f) },
			func(err error) { s.onReadError(gen, err) },
		)
	})
}

// requestEnableLocked powers a present but disabled adapter on. The caller
// rechecks the adapter afterwards.
func (s *Supervisor) requestEnableLocked(ctx context.Context) {
	if !s.adapter.Available(ctx) || s.adapter.Enabled(ctx) {
		return
	}

	s.logger.Info("Bluetooth adapter is off, requesting enable")
	err := s.adapter.RequestEnable(ctx)
	if err == nil && s.adapter.Enabled(ctx) {
		s.emitLocked(Event{Type: Notice, Text: TextEnabled})
		return
	}
	s.logger.WithError(err).Warn("Bluetooth adapter was not enabled")
	s.emitLocked(Event{Type: Notice, Text: TextNotEnabled, Reason: err})
}

// findTarget picks the first bonded match, or the first scanned match
func (s *Supervisor) findTarget(ctx context.Context) (device.Handle, error) {
	if s.opts.PreferBonded {
		bonded, err := s.discoverer.QueryBonded(ctx)
		switch {
		case err == nil:
			for _, h := range bonded {
				if s.opts.Matches(h) {
					s.logger.WithField("address", h.Address).Info("Found target among paired devices")
					return h, nil
				}
			}
		case errors.Is(err, device.ErrPermissionDenied), errors.Is(err, device.ErrAdapterUnavailable):
			return device.Handle{}, err
		default:
			s.logger.WithError(err).Warn("Paired device query failed, falling back to discovery")
		}
	}

	scanCtx := ctx
	if s.opts.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.opts.ScanTimeout)
		defer cancel()
	}

	stream, err := s.discoverer.StartScan(scanCtx)
	if err != nil {
		return device.Handle{}, err
	}
	defer s.discoverer.StopScan()

	for h := range stream {
		if s.opts.Matches(h) {
			s.logger.WithField("address", h.Address).Info("Found target device")
			return h, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return device.Handle{}, err
	}
	if err := s.discoverer.Err(); err != nil {
		return device.Handle{}, err
	}
	return device.Handle{}, &device.Error{
		Kind: device.KindDeviceNotFound,
		Msg:  fmt.Sprintf("no device matching %s", s.targetDescription()),
	}
}

func (s *Supervisor) targetDescription() string {
	switch {
	case s.opts.TargetAddress != "" && s.opts.TargetName != "":
		return fmt.Sprintf("%q (%s)", s.opts.TargetName, s.opts.TargetAddress)
	case s.opts.TargetAddress != "":
		return s.opts.TargetAddress
	default:
		return fmt.Sprintf("%q", s.opts.TargetName)
	}
}

func (s *Supervisor) onFrame(gen uint64, f frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(gen, Connected) {
		return
	}
	s.emitLocked(Event{Type: WeightReceived, Weight: f.Weight, Text: f.Text})
}

func (s *Supervisor) onReadError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(gen, Connected) {
		s.logger.WithError(err).Debug("Ignoring reader outcome of a finished link")
		return
	}

	switch {
	case errors.Is(err, device.ErrParseFailed):
		s.emitLocked(Event{Type: FrameRejected, Text: "Invalid weight data", Reason: err})
	case device.IsCleanEnd(err):
		s.link = nil
		s.reason = err
		s.setStateLocked(Closed)
		s.cancelLocked()
		s.emitLocked(Event{Type: LinkDown, Text: TextDisconnected, Reason: err})
	default:
		s.failLocked(err)
	}
}

// Stop ends the current cycle. Connected: the link is closed and exactly one
// LinkDown(ErrStopped) is emitted. Discovering or Connecting: the cycle is
// cancelled without a LinkDown, and a link that completes afterwards is
// closed. Otherwise Stop does nothing.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	link, scanning := s.stopLocked()
	s.mu.Unlock()

	s.release(link, scanning)
}

// stop is Stop restricted to cycle gen
func (s *Supervisor) stop(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	link, scanning := s.stopLocked()
	s.mu.Unlock()

	s.release(link, scanning)
}

func (s *Supervisor) stopLocked() (*device.Link, bool) {
	switch s.state {
	case Discovering, Connecting:
		s.reason = ErrStopped
		s.setStateLocked(Closed)
		s.cancelLocked()
		return nil, true
	case Connected:
		link := s.link
		s.link = nil
		s.reason = ErrStopped
		s.setStateLocked(Closed)
		s.cancelLocked()
		s.emitLocked(Event{Type: LinkDown, Text: TextDisconnected, Reason: ErrStopped})
		return link, false
	default:
		return nil, false
	}
}

func (s *Supervisor) release(link *device.Link, scanning bool) {
	if scanning {
		s.discoverer.StopScan()
	}
	if link != nil {
		if err := link.Close(); err != nil {
			s.logger.WithError(err).Warn("Error closing link")
		}
	}
}

// Send writes payload to the connected device. Fails with NotConnected
// unless the supervisor is Connected.
func (s *Supervisor) Send(payload []byte) error {
	s.mu.Lock()
	if s.state != Connected || s.link == nil {
		s.mu.Unlock()
		return device.ErrNotConnected
	}
	link := s.link
	s.mu.Unlock()

	return s.writer.Write(link, payload)
}

// Reset returns a Closed or Failed supervisor to Idle
func (s *Supervisor) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state.Active() {
		return &device.Error{Kind: device.KindAlreadyActive, Msg: fmt.Sprintf("supervisor is %s", s.state)}
	}
	s.reason = nil
	s.dev = device.Handle{}
	s.link = nil
	s.setStateLocked(Idle)
	return nil
}

// Close stops the supervisor and closes the event stream. Idempotent.
func (s *Supervisor) Close() {
	s.Stop()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.events.Close()
}

// Events returns the ordered event stream. It is closed by Close.
func (s *Supervisor) Events() <-chan Event {
	return s.events.C()
}

// EventMetrics reports event stream traffic, including overwritten events
func (s *Supervisor) EventMetrics() ringchan.Metrics {
	return s.events.Metrics()
}

// ReaderStats reports frame reader counters across links
func (s *Supervisor) ReaderStats() frame.Stats {
	return s.reader.Stats()
}

// State returns the current state
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current state with its reason, device and session
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:   s.state,
		Reason:  s.reason,
		Device:  s.dev,
		Session: s.session,
	}
}

// Wait blocks until the connect cycle and the reader of the latest session have
// returned, or ctx is done
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	handles := []*groutine.Handle{s.cycle, s.readerH}
	s.mu.Unlock()

	for _, h := range handles {
		if h == nil {
			continue
		}
		if err := h.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) current(gen uint64, state State) bool {
	return s.gen == gen && s.state == state
}

func (s *Supervisor) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Supervisor) failLocked(err error) {
	s.link = nil
	s.reason = err
	s.setStateLocked(Failed)
	s.cancelLocked()

	if errors.Is(err, device.ErrPermissionDenied) {
		s.emitLocked(Event{Type: PermissionNeeded, Text: TextPermissionDenied, Reason: err})
		return
	}
	s.emitLocked(Event{Type: LinkDown, Text: linkDownText(err), Reason: err})
}

func linkDownText(err error) string {
	switch {
	case errors.Is(err, device.ErrAdapterUnavailable):
		return TextAdapterUnavailable
	case errors.Is(err, device.ErrDeviceNotFound):
		return TextDeviceNotFound
	case errors.Is(err, device.ErrConnectFailed), errors.Is(err, device.ErrTimeout):
		return TextConnectFailed
	default:
		return TextDisconnected
	}
}

func (s *Supervisor) setStateLocked(state State) {
	if s.state == state {
		return
	}
	fields := logrus.Fields{
		"from":    s.state.String(),
		"to":      state.String(),
		"session": s.session,
	}
	if s.dev.Address != "" {
		fields["address"] = s.dev.Address
	}
	if s.reason != nil && state.Terminal() {
		fields["reason"] = s.reason.Error()
	}
	s.logger.WithFields(fields).Info("Connection state changed")
	s.state = state
}

// emit publishes an event produced outside the supervisor lock
func (s *Supervisor) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(ev)
}

func (s *Supervisor) emitLocked(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Session == "" {
		ev.Session = s.session
	}
	if ev.Device.Address == "" {
		ev.Device = s.dev
	}
	if !s.events.Send(ev) {
		s.logger.WithField("event", ev.Type.String()).Debug("Dropped event after close")
	}
}
