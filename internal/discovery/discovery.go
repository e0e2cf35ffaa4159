// Package discovery finds nearby and bonded devices through a device.Adapter.
//
// Name filtering is left to the caller so the same discoverer serves the
// supervisor, the CLI scan command and tests.
package discovery

import (
	"context"
	"errors"
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/groutine"
)

// Discoverer runs at most one scan session at a time
type Discoverer struct {
	adapter device.Adapter
	logger  *logrus.Logger

	mu       sync.Mutex
	active   bool
	session  uint64
	cancel   context.CancelFunc
	registry *hashmap.Map[string, device.Handle]
	err      error
}

// New creates a Discoverer over adapter
func New(adapter device.Adapter, logger *logrus.Logger) *Discoverer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Discoverer{
		adapter:  adapter,
		logger:   logger,
		registry: hashmap.New[string, device.Handle](),
	}
}

// CheckAdapter verifies that an enabled adapter exists and access is granted
func CheckAdapter(ctx context.Context, adapter device.Adapter) error {
	if !adapter.Available(ctx) {
		return &device.Error{Kind: device.KindAdapterUnavailable, Msg: "no bluetooth adapter"}
	}
	if !adapter.Enabled(ctx) {
		return &device.Error{Kind: device.KindAdapterUnavailable, Msg: "bluetooth is turned off"}
	}
	if err := adapter.CheckPermissions(ctx); err != nil {
		if errors.Is(err, device.ErrPermissionDenied) {
			return err
		}
		return device.NormalizeError(err)
	}
	return nil
}

// StartScan starts a scan session and returns the stream of discovered devices.
// Each address is reported once per session. The stream is closed when the
// session ends: StopScan, ctx cancellation or a platform failure (see Err).
func (d *Discoverer) StartScan(ctx context.Context) (<-chan device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil, &device.Error{Kind: device.KindAlreadyActive, Msg: "scan already running"}
	}
	if err := CheckAdapter(ctx, d.adapter); err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithCancel(ctx)
	d.active = true
	d.session++
	d.cancel = cancel
	d.err = nil
	d.registry = hashmap.New[string, device.Handle]()

	registry := d.registry
	session := d.session
	q := newQueue()
	out := make(chan device.Handle)

	d.logger.Info("Starting device discovery...")

	groutine.Go(scanCtx, "discovery-scan", func(ctx context.Context) {
		err := d.adapter.Scan(ctx, func(h device.Handle) {
			h.Address = device.NormalizeAddress(h.Address)
			if h.Address == "" {
				return
			}
			if _, loaded := registry.GetOrInsert(h.Address, h); loaded {
				return
			}
			d.logger.WithFields(logrus.Fields{
				"device":  h.Name,
				"address": h.Address,
			}).Info("Discovered device")
			q.push(h)
		})
		d.finishScan(session, registry.Len(), err)
		q.finish()
	})

	groutine.Go(scanCtx, "discovery-stream", func(ctx context.Context) {
		defer func() {
			cancel()
			d.release(session)
			close(out)
		}()
		for {
			h, ok := q.pop(ctx)
			if !ok {
				return
			}
			select {
			case out <- h:
			case <-ctx.Done():
				return
			}
		}
	})

	return out, nil
}

// finishScan records the outcome of adapter.Scan
func (d *Discoverer) finishScan(session uint64, found int, err error) {
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = device.NormalizeError(err)
		d.logger.WithError(err).Warn("Device discovery failed")
	} else {
		err = nil
	}

	d.mu.Lock()
	if d.session == session {
		d.err = err
	}
	d.mu.Unlock()

	d.logger.WithField("device_count", found).Info("Device discovery finished")
}

// release marks the given session as ended unless a newer one replaced it
func (d *Discoverer) release(session uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active && d.session == session {
		d.active = false
		d.cancel = nil
	}
}

// StopScan ends the current session and asks the platform to stop discovery.
// Safe to call at any time, any number of times.
func (d *Discoverer) StopScan() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := d.adapter.StopScan(); err != nil {
		d.logger.WithError(err).Debug("Platform stop scan failed")
	}
}

// Scanning reports whether a session is running
func (d *Discoverer) Scanning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Err returns the platform failure that ended the last session, or nil
func (d *Discoverer) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// QueryBonded returns the adapter's bonded devices sorted by address
func (d *Discoverer) QueryBonded(ctx context.Context) ([]device.Handle, error) {
	if err := CheckAdapter(ctx, d.adapter); err != nil {
		return nil, err
	}

	bonded, err := d.adapter.Bonded(ctx)
	if err != nil {
		return nil, device.NormalizeError(err)
	}

	out := make([]device.Handle, 0, len(bonded))
	for _, h := range bonded {
		h = device.NewHandle(h.Name, h.Address, true)
		d.logger.WithFields(logrus.Fields{
			"device":  h.Name,
			"address": h.Address,
		}).Debug("Paired device")
		out = append(out, h)
	}
	device.SortHandles(out)
	return out, nil
}

// Devices returns the handles seen by the current or last session
func (d *Discoverer) Devices() []device.Handle {
	d.mu.Lock()
	registry := d.registry
	d.mu.Unlock()

	devs := make([]device.Handle, 0, registry.Len())
	registry.Range(func(_ string, h device.Handle) bool {
		devs = append(devs, h)
		return true
	})
	device.SortHandles(devs)
	return devs
}
