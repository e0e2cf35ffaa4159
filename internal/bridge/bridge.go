// Package bridge mirrors a supervisor's weight readings onto a terminal and
// forwards terminal input to the scale, so software expecting a serial port
// can talk to a Bluetooth scale through a pty.
package bridge

import (
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/supervisor"
)

// DefaultLineEnding follows each mirrored reading
const DefaultLineEnding = "\r\n"

// Terminal is the pty side of the bridge
type Terminal interface {
	io.Writer
	TTYName() string
	SetInputHandler(func(data []byte))
}

// Sender writes to the scale; *supervisor.Supervisor implements it
type Sender interface {
	Send(payload []byte) error
}

// Options configures a Bridge
type Options struct {
	LineEnding string // appended to each reading; empty uses DefaultLineEnding
	Rejected   bool   // also mirror frames that did not parse
}

// Stats are bridge counters
type Stats struct {
	Readings     uint64 // lines written to the terminal
	Forwarded    uint64 // input bytes sent to the scale
	DroppedInput uint64 // input bytes discarded while disconnected or after a failed send
}

// Bridge connects one Terminal to one Sender
type Bridge struct {
	term   Terminal
	sender Sender
	opts   Options
	logger *logrus.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a bridge and starts forwarding terminal input
func New(term Terminal, sender Sender, opts Options, logger *logrus.Logger) *Bridge {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.LineEnding == "" {
		opts.LineEnding = DefaultLineEnding
	}
	b := &Bridge{term: term, sender: sender, opts: opts, logger: logger}
	term.SetInputHandler(b.onInput)
	return b
}

// TTYName returns the terminal's device path
func (b *Bridge) TTYName() string {
	return b.term.TTYName()
}

// Forward mirrors ev onto the terminal if it carries a reading
func (b *Bridge) Forward(ev supervisor.Event) {
	switch ev.Type {
	case supervisor.WeightReceived:
	case supervisor.FrameRejected:
		if !b.opts.Rejected {
			return
		}
	default:
		return
	}
	if ev.Text == "" {
		return
	}

	line := ev.Text + b.opts.LineEnding
	n, err := b.term.Write([]byte(line))
	if err != nil {
		b.logger.WithError(err).Warn("Failed to write reading to terminal")
		return
	}
	if n < len(line) {
		// Partial lines are left to the terminal's own overflow accounting
		return
	}

	b.mu.Lock()
	b.stats.Readings++
	b.mu.Unlock()
}

func (b *Bridge) onInput(data []byte) {
	err := b.sender.Send(data)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.stats.Forwarded += uint64(len(data))
		return
	}
	b.stats.DroppedInput += uint64(len(data))

	entry := b.logger.WithField("bytes", len(data))
	if errors.Is(err, device.ErrNotConnected) {
		entry.Debug("Dropped terminal input while disconnected")
		return
	}
	entry.WithError(err).Warn("Failed to forward terminal input")
}

// Stats returns a snapshot of the counters
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Close stops forwarding terminal input. The terminal itself is not closed.
func (b *Bridge) Close() {
	b.term.SetInputHandler(nil)
}
