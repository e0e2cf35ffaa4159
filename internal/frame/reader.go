// Package frame turns the raw byte stream of a scale link into weight frames.
//
// The Reader runs one blocking read loop per link. Each read result is split
// into raw frames by a Decoder, trimmed and parsed as a decimal weight.
// Parse failures are reported and the loop continues; end-of-stream or an I/O
// error ends the loop exactly once and the link is closed on the way out.
package frame

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
)

// DefaultBufferSize is the working buffer used for each read
const DefaultBufferSize = 1024

// Frame is one decoded unit of incoming data
type Frame struct {
	Raw    []byte
	Text   string
	Weight float64
	Err    error
}

// OK reports whether the frame carries a weight
func (f Frame) OK() bool {
	return f.Err == nil
}

// Options configures a Reader
type Options struct {
	BufferSize int            // read buffer size in bytes (0 = DefaultBufferSize)
	NewDecoder func() Decoder // frame splitting policy, one decoder per Run (nil = ChunkDecoder)
}

// Stats counts reader traffic
type Stats struct {
	Reads    uint64
	Bytes    uint64
	Frames   uint64
	Rejected uint64
}

// Reader runs the read loop over a link
type Reader struct {
	bufSize    int
	newDecoder func() Decoder
	logger     *logrus.Logger

	reads    atomic.Uint64
	bytes    atomic.Uint64
	frames   atomic.Uint64
	rejected atomic.Uint64
}

// NewReader creates a Reader. A nil logger logs to a fresh logrus logger.
func NewReader(opts Options, logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.NewDecoder == nil {
		opts.NewDecoder = func() Decoder { return ChunkDecoder{} }
	}
	return &Reader{
		bufSize:    opts.BufferSize,
		newDecoder: opts.NewDecoder,
		logger:     logger,
	}
}

// Run reads until the link ends. It blocks; callers run it on a dedicated goroutine.
//
// onFrame receives every frame that parsed as a weight. onError receives a
// ParseFailed error for every rejected frame, and exactly one LinkLost error
// when the loop ends. The link is always closed before Run returns. Each Run
// owns its decoder, so a loop still draining an old link never shares
// reassembly state with the next one.
func (r *Reader) Run(link io.ReadCloser, onFrame func(Frame), onError func(error)) {
	defer func() {
		if err := link.Close(); err != nil {
			r.logger.WithError(err).Debug("Link close after read loop")
		}
	}()

	decoder := r.newDecoder()
	buf := make([]byte, r.bufSize)

	for {
		n, err := link.Read(buf)
		if n > 0 {
			r.reads.Add(1)
			r.bytes.Add(uint64(n))
			r.logger.WithField("bytes", n).Debug("Received data from device")

			for _, raw := range decoder.Decode(buf[:n]) {
				r.emit(raw, onFrame, onError)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				r.logger.Info("Device closed the stream")
			} else {
				r.logger.WithError(err).Warn("Read loop ended with error")
			}
			onError(device.LinkLost(err))
			return
		}
	}
}

func (r *Reader) emit(raw Raw, onFrame func(Frame), onError func(error)) {
	f := Frame{Raw: raw.Data, Text: Trim(string(raw.Data))}

	if raw.Overflow {
		f.Err = device.ParseFailed(f.Text, ErrFrameTooLong)
	} else {
		f.Weight, f.Err = ParseWeight(f.Text)
	}

	if f.Err != nil {
		r.rejected.Add(1)
		r.logger.WithField("text", f.Text).Debug("Rejected frame")
		onError(f.Err)
		return
	}

	r.frames.Add(1)
	onFrame(f)
}

// Stats returns a snapshot of the counters
func (r *Reader) Stats() Stats {
	return Stats{
		Reads:    r.reads.Load(),
		Bytes:    r.bytes.Load(),
		Frames:   r.frames.Load(),
		Rejected: r.rejected.Load(),
	}
}
