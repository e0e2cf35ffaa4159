package goble

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
	"github.com/stretchr/testify/suite"
)

type fakeClient struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	cancels  int
	disc     chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{disc: make(chan struct{})}
}

func (c *fakeClient) WriteCharacteristic(_ *ble.Characteristic, value []byte, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), value...))
	return nil
}

func (c *fakeClient) CancelConnection() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels++
	return nil
}

func (c *fakeClient) Disconnected() <-chan struct{} {
	return c.disc
}

type StreamTestSuite struct {
	suite.Suite
	client *fakeClient
	stream *stream
}

func (s *StreamTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	opts := DefaultOptions()
	opts.ChunkDelay = 0

	s.client = newFakeClient()
	s.stream = newStream(s.client, &ble.Characteristic{}, opts, logger)
	s.stream.watch()
}

func (s *StreamTestSuite) TestNotificationsReadInOrder() {
	s.stream.deliver([]byte("70.5"))
	s.stream.deliver([]byte("71.0"))

	buf := make([]byte, 16)
	n, err := s.stream.Read(buf)
	s.Require().NoError(err)
	s.Equal("70.5", string(buf[:n]))

	n, err = s.stream.Read(buf)
	s.Require().NoError(err)
	s.Equal("71.0", string(buf[:n]))
}

func (s *StreamTestSuite) TestLargeNotificationSpansReads() {
	s.stream.deliver([]byte("123456"))

	buf := make([]byte, 4)
	n, _ := s.stream.Read(buf)
	s.Equal("1234", string(buf[:n]))
	n, _ = s.stream.Read(buf)
	s.Equal("56", string(buf[:n]))
}

func (s *StreamTestSuite) TestDeliverCopiesBuffer() {
	b := []byte("70.5")
	s.stream.deliver(b)
	b[0] = 'X'

	buf := make([]byte, 8)
	n, _ := s.stream.Read(buf)
	s.Equal("70.5", string(buf[:n]), "notification MUST not alias the stack's buffer")
}

func (s *StreamTestSuite) TestWriteIsChunked() {
	// GOAL: writes are split into MTU-sized chunks
	//
	// TEST SCENARIO: 45-byte payload → 20, 20, 5

	payload := make([]byte, 45)
	n, err := s.stream.Write(payload)

	s.Require().NoError(err)
	s.Equal(45, n)
	s.Require().Len(s.client.writes, 3)
	s.Len(s.client.writes[0], 20)
	s.Len(s.client.writes[1], 20)
	s.Len(s.client.writes[2], 5)
}

func (s *StreamTestSuite) TestWriteFailureReportsProgress() {
	s.client.writeErr = errors.New("device not connected")

	n, err := s.stream.Write([]byte("TARE"))
	s.Equal(0, n)
	s.ErrorIs(err, device.ErrLinkLost)
}

func (s *StreamTestSuite) TestDisconnectDrainsThenEOF() {
	s.stream.deliver([]byte("70.5"))
	close(s.client.disc)

	buf := make([]byte, 8)
	n, err := s.stream.Read(buf)
	s.Require().NoError(err)
	s.Equal("70.5", string(buf[:n]), "buffered data MUST be delivered before end-of-stream")

	_, err = s.stream.Read(buf)
	s.ErrorIs(err, io.EOF)
}

func (s *StreamTestSuite) TestCloseUnblocksRead() {
	errCh := make(chan error, 1)
	go func() {
		_, err := s.stream.Read(make([]byte, 8))
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Require().NoError(s.stream.Close())
	s.Require().NoError(s.stream.Close(), "Close MUST be idempotent")

	select {
	case err := <-errCh:
		s.ErrorIs(err, io.ErrClosedPipe)
	case <-time.After(time.Second):
		s.Fail("Read MUST return after Close")
	}
	s.Equal(1, s.client.cancels)

	_, err := s.stream.Write([]byte("x"))
	s.ErrorIs(err, io.ErrClosedPipe)
}

func TestStreamTestSuite(t *testing.T) {
	suite.Run(t, new(StreamTestSuite))
}
