package bridge

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/supervisor"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type fakeTerminal struct {
	mu      sync.Mutex
	out     bytes.Buffer
	handler func([]byte)
	short   bool // accept one byte less than written
}

func (f *fakeTerminal) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.short {
		f.out.Write(p[:len(p)-1])
		return len(p) - 1, nil
	}
	return f.out.Write(p)
}

func (f *fakeTerminal) TTYName() string { return "/dev/pts/7" }

func (f *fakeTerminal) SetInputHandler(h func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeTerminal) input(data string) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h([]byte(data))
	return true
}

func (f *fakeTerminal) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.String()
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(payload []byte) error {
	args := m.Called(string(payload))
	return args.Error(0)
}

type BridgeTestSuite struct {
	suite.Suite
	term   *fakeTerminal
	sender *mockSender
	logger *logrus.Logger
}

func (s *BridgeTestSuite) SetupTest() {
	s.term = &fakeTerminal{}
	s.sender = &mockSender{}
	s.logger = logrus.New()
	s.logger.SetOutput(io.Discard)
}

func (s *BridgeTestSuite) TestReadingsAreMirroredAsLines() {
	// GOAL: each weight reading becomes one terminal line with the configured ending
	//
	// TEST SCENARIO: weights "70.5", "71.0" and a link event → two CRLF lines only

	b := New(s.term, s.sender, Options{}, s.logger)

	b.Forward(supervisor.Event{Type: supervisor.WeightReceived, Weight: 70.5, Text: "70.5"})
	b.Forward(supervisor.Event{Type: supervisor.LinkUp, Text: supervisor.TextConnected})
	b.Forward(supervisor.Event{Type: supervisor.WeightReceived, Weight: 71, Text: "71.0"})

	s.Equal("70.5\r\n71.0\r\n", s.term.String())
	s.Equal(uint64(2), b.Stats().Readings)
	s.Equal("/dev/pts/7", b.TTYName())
}

func (s *BridgeTestSuite) TestRejectedFramesOnlyWhenEnabled() {
	rejected := supervisor.Event{Type: supervisor.FrameRejected, Text: "ERR"}

	New(s.term, s.sender, Options{LineEnding: "\n"}, s.logger).Forward(rejected)
	s.Empty(s.term.String(), "rejected frames MUST NOT be mirrored by default")

	New(s.term, s.sender, Options{LineEnding: "\n", Rejected: true}, s.logger).Forward(rejected)
	s.Equal("ERR\n", s.term.String())
}

func (s *BridgeTestSuite) TestShortWriteIsNotCounted() {
	s.term.short = true
	b := New(s.term, s.sender, Options{}, s.logger)

	b.Forward(supervisor.Event{Type: supervisor.WeightReceived, Text: "70.5"})

	s.Zero(b.Stats().Readings)
}

func (s *BridgeTestSuite) TestInputIsForwarded() {
	s.sender.On("Send", "TARE\r\n").Return(nil).Once()
	b := New(s.term, s.sender, Options{}, s.logger)

	s.Require().True(s.term.input("TARE\r\n"), "bridge MUST install an input handler")

	s.sender.AssertExpectations(s.T())
	s.Equal(uint64(6), b.Stats().Forwarded)
}

func (s *BridgeTestSuite) TestInputDroppedWhileDisconnected() {
	s.sender.On("Send", "T").Return(device.ErrNotConnected).Once()
	s.sender.On("Send", "Z").Return(device.WriteFailed(errors.New("broken pipe"))).Once()
	b := New(s.term, s.sender, Options{}, s.logger)

	s.term.input("T")
	s.term.input("Z")

	st := b.Stats()
	s.Zero(st.Forwarded)
	s.Equal(uint64(2), st.DroppedInput)
}

func (s *BridgeTestSuite) TestCloseStopsForwarding() {
	b := New(s.term, s.sender, Options{}, s.logger)
	b.Close()

	s.False(s.term.input("TARE"), "closed bridge MUST NOT receive input")
	s.sender.AssertNotCalled(s.T(), "Send", mock.Anything)
}

func TestBridgeTestSuite(t *testing.T) {
	suite.Run(t, new(BridgeTestSuite))
}
