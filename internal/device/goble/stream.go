package goble

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/groutine"
	"github.com/srg/scalelink/internal/ringchan"
)

// DefaultNotificationBuffer bounds notifications waiting for Read
const DefaultNotificationBuffer = 128

// gattClient is the part of ble.Client a stream needs after setup
type gattClient interface {
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	CancelConnection() error
	Disconnected() <-chan struct{}
}

// stream turns TX notifications and chunked RX writes into a byte stream
type stream struct {
	client gattClient
	rx     *ble.Characteristic
	opts   Options
	logger *logrus.Logger

	data    *ringchan.RingChannel[[]byte]
	pending []byte

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newStream(client gattClient, rx *ble.Characteristic, opts Options, logger *logrus.Logger) *stream {
	return &stream{
		client: client,
		rx:     rx,
		opts:   opts,
		logger: logger,
		data:   ringchan.New[[]byte](DefaultNotificationBuffer),
		closed: make(chan struct{}),
	}
}

// deliver is the notification handler. It must not block the BLE stack.
func (s *stream) deliver(b []byte) {
	s.logger.WithField("bytes", len(b)).Debug("Received data from device")
	cp := make([]byte, len(b))
	copy(cp, b)
	s.data.Send(cp)
}

// watch ends the stream when the peer disconnects
func (s *stream) watch() {
	groutine.Go(context.Background(), "goble-disconnect", func(context.Context) {
		select {
		case <-s.client.Disconnected():
			s.logger.Info("BLE device disconnected")
			s.data.Close()
		case <-s.closed:
		}
	})
}

// Read returns one notification at a time; a large notification spans reads.
// After a disconnect, buffered notifications are drained before io.EOF.
func (s *stream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		b, ok := <-s.data.C()
		if !ok {
			select {
			case <-s.closed:
				return 0, io.ErrClosedPipe
			default:
				return 0, io.EOF
			}
		}
		s.pending = b
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write sends p to the RX characteristic in MTU-sized chunks
func (s *stream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	written := 0
	for written < len(p) {
		select {
		case <-s.closed:
			return written, io.ErrClosedPipe
		default:
		}

		end := written + s.opts.ChunkSize
		if end > len(p) {
			end = len(p)
		}
		if err := s.client.WriteCharacteristic(s.rx, p[written:end], false); err != nil {
			return written, normalizeError(err)
		}
		s.logger.WithField("bytes", end-written).Debug("Wrote chunk to device")
		written = end

		if written < len(p) && s.opts.ChunkDelay > 0 {
			time.Sleep(s.opts.ChunkDelay)
		}
	}
	return written, nil
}

// Close cancels the connection and unblocks a pending Read
func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.data.Close()
		err = s.client.CancelConnection()
	})
	return err
}
