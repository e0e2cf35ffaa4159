// Package goble runs the device layer over go-ble for scales reachable through
// a BLE UART bridge. Classic RFCOMM is not available through go-ble, so a
// Serial Port Profile request is mapped onto the configured GATT serial service.
package goble

import (
	"context"
	"errors"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
)

// central is the part of ble.Device the backend drives
type central interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Dial(ctx context.Context, a ble.Addr) (ble.Client, error)
	Stop() error
}

// Adapter implements device.Adapter on top of a lazily created ble.Device
type Adapter struct {
	factory func() (ble.Device, error)
	logger  *logrus.Logger

	mu  sync.Mutex
	dev central
}

// NewAdapter creates an Adapter. A nil factory selects DeviceFactory.
func NewAdapter(factory func() (ble.Device, error), logger *logrus.Logger) *Adapter {
	if factory == nil {
		factory = DeviceFactory
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Adapter{factory: factory, logger: logger}
}

// central returns the shared device, creating it on first use.
// Failures are not cached so a later call can succeed once the radio is on.
func (a *Adapter) central() (central, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dev != nil {
		return a.dev, nil
	}
	dev, err := a.factory()
	if err != nil {
		return nil, normalizeError(err)
	}
	a.dev = dev
	return dev, nil
}

// Available reports true when a radio exists, even if it is powered off
func (a *Adapter) Available(context.Context) bool {
	_, err := a.central()
	if err == nil {
		return true
	}
	// A powered-off radio is reported with the same error as a missing one
	// on linux, but darwin distinguishes it.
	return containsIgnoreCase(err.Error(), "is Bluetooth turned on?")
}

// Enabled reports whether the radio could be opened
func (a *Adapter) Enabled(context.Context) bool {
	_, err := a.central()
	return err == nil
}

// RequestEnable cannot power the radio through go-ble
func (a *Adapter) RequestEnable(context.Context) error {
	if _, err := a.central(); err == nil {
		return nil
	}
	return &device.Error{Kind: device.KindAdapterUnavailable, Msg: "turn bluetooth on in system settings"}
}

// CheckPermissions surfaces a permission failure from opening the radio
func (a *Adapter) CheckPermissions(context.Context) error {
	_, err := a.central()
	if err != nil && errors.Is(err, device.ErrPermissionDenied) {
		return err
	}
	return nil
}

// Bonded is always empty: go-ble has no access to the pairing database
func (a *Adapter) Bonded(context.Context) ([]device.Handle, error) {
	a.logger.Debug("go-ble does not expose bonded devices")
	return nil, nil
}

// Scan reports advertisements as handles until ctx is done
func (a *Adapter) Scan(ctx context.Context, handler func(device.Handle)) error {
	dev, err := a.central()
	if err != nil {
		return err
	}

	err = dev.Scan(ctx, false, func(adv ble.Advertisement) {
		if h, ok := handleFromAdvertisement(adv); ok {
			handler(h)
		}
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return normalizeError(err)
}

// StopScan stops a running scan. A device that was never opened is left alone.
func (a *Adapter) StopScan() error {
	a.mu.Lock()
	dev := a.dev
	a.mu.Unlock()

	if dev == nil {
		return nil
	}
	return normalizeError(dev.Stop())
}

func handleFromAdvertisement(adv ble.Advertisement) (device.Handle, bool) {
	if adv == nil || adv.Addr() == nil {
		return device.Handle{}, false
	}
	addr := adv.Addr().String()
	if addr == "" {
		return device.Handle{}, false
	}
	return device.NewHandle(adv.LocalName(), addr, false), true
}
