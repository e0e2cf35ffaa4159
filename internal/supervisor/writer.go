package supervisor

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
)

// Writer sends payloads over a link and reports the outcome as events
type Writer struct {
	emit   func(Event)
	logger *logrus.Logger
}

// NewWriter creates a Writer publishing through emit
func NewWriter(emit func(Event), logger *logrus.Logger) *Writer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Writer{emit: emit, logger: logger}
}

// Write sends payload. Success emits Sent. A link closed by a racing stop
// yields NotConnected with no event; any other failure yields WriteFailed
// and a Notice event.
func (w *Writer) Write(link *device.Link, payload []byte) error {
	if link == nil {
		return device.ErrNotConnected
	}

	n, err := link.Write(payload)
	if err == nil && n < len(payload) {
		err = io.ErrShortWrite
	}
	if err != nil {
		if errors.Is(err, device.ErrNotConnected) {
			return err
		}
		werr := device.WriteFailed(err)
		w.logger.WithError(err).WithField("address", link.Device().Address).Error("Error writing data")
		w.emit(Event{Type: Notice, Text: TextSendFailed, Reason: werr})
		return werr
	}

	w.logger.WithFields(logrus.Fields{
		"address": link.Device().Address,
		"bytes":   n,
	}).Debug("Sent data to device")
	w.emit(Event{Type: Sent, Text: TextSent, Bytes: n})
	return nil
}
