// Package connector opens links to devices.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/groutine"
)

// DefaultConnectTimeout bounds a dial when the caller passes no timeout
const DefaultConnectTimeout = 30 * time.Second

// Connector turns a device handle into an open Link. One attempt runs at a time.
type Connector struct {
	dialer  device.Dialer
	scan    device.ScanStopper
	logger  *logrus.Logger
	pending atomic.Bool
}

// New creates a Connector. scan may be nil when no discovery runs alongside.
func New(dialer device.Dialer, scan device.ScanStopper, logger *logrus.Logger) *Connector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Connector{
		dialer: dialer,
		scan:   scan,
		logger: logger,
	}
}

type dialResult struct {
	transport io.ReadWriteCloser
	err       error
}

// Connect stops discovery and dials h for service within timeout.
//
// Failures are Timeout when the deadline passes, PermissionDenied when access
// is refused and ConnectFailed otherwise. A transport that arrives after the
// deadline is closed. Cancelling ctx yields ConnectFailed wrapping context.Canceled.
func (c *Connector) Connect(ctx context.Context, h device.Handle, service device.ServiceID, timeout time.Duration) (*device.Link, error) {
	if !c.pending.CompareAndSwap(false, true) {
		return nil, &device.Error{Kind: device.KindAlreadyActive, Msg: "connect already in progress"}
	}
	defer c.pending.Store(false)

	if c.scan != nil {
		c.scan.StopScan()
	}

	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	c.logger.WithFields(logrus.Fields{
		"device":  h.Name,
		"address": h.Address,
		"service": service.String(),
		"timeout": timeout,
	}).Info("Connecting to device...")

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan dialResult, 1)
	groutine.Go(dialCtx, "link-dial", func(ctx context.Context) {
		t, err := c.dialer.Dial(ctx, h, service)
		results <- dialResult{transport: t, err: err}
	})

	select {
	case r := <-results:
		if r.err != nil {
			if r.transport != nil {
				_ = r.transport.Close()
			}
			err := c.classify(ctx, r.err, timeout)
			c.logger.WithError(err).WithField("address", h.Address).Warn("Failed to connect to device")
			return nil, err
		}
		c.logger.WithField("address", h.Address).Info("Connected to device")
		return device.NewLink(h, r.transport), nil

	case <-dialCtx.Done():
		go c.closeLate(results, h)
		err := c.classify(ctx, dialCtx.Err(), timeout)
		c.logger.WithError(err).WithField("address", h.Address).Warn("Failed to connect to device")
		return nil, err
	}
}

// closeLate waits for an abandoned dial and closes whatever it produced
func (c *Connector) closeLate(results <-chan dialResult, h device.Handle) {
	r := <-results
	if r.transport == nil {
		return
	}
	c.logger.WithField("address", h.Address).Debug("Closing transport of an abandoned connect")
	if err := r.transport.Close(); err != nil {
		c.logger.WithError(err).Debug("Close of abandoned transport failed")
	}
}

// Busy reports whether a connect attempt is in progress
func (c *Connector) Busy() bool {
	return c.pending.Load()
}

func (c *Connector) classify(parent context.Context, err error, timeout time.Duration) error {
	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			return &device.Error{Kind: device.KindTimeout, Msg: "connect deadline exceeded", Err: perr}
		}
		return device.ConnectFailed(perr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &device.Error{Kind: device.KindTimeout, Msg: fmt.Sprintf("no response within %s", timeout), Err: err}
	}

	err = device.NormalizeError(err)
	switch {
	case errors.Is(err, device.ErrPermissionDenied),
		errors.Is(err, device.ErrTimeout),
		errors.Is(err, device.ErrConnectFailed):
		return err
	default:
		return device.ConnectFailed(err)
	}
}
