package goble

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
)

// Nordic UART Service, the de facto serial profile of BLE bridges
const (
	DefaultServiceUUID = "6E400001-B5A3-F393-E0A9-E50E24DCCA9E"
	DefaultTxUUID      = "6E400003-B5A3-F393-E0A9-E50E24DCCA9E"
	DefaultRxUUID      = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E"

	// DefaultChunkSize fits the minimum ATT MTU
	DefaultChunkSize  = 20
	DefaultChunkDelay = 10 * time.Millisecond
)

// Options selects the GATT serial service
type Options struct {
	ServiceUUID string
	TxUUID      string // device -> host, notify
	RxUUID      string // host -> device, write
	ChunkSize   int
	ChunkDelay  time.Duration
}

// DefaultOptions returns the Nordic UART layout
func DefaultOptions() Options {
	return Options{
		ServiceUUID: DefaultServiceUUID,
		TxUUID:      DefaultTxUUID,
		RxUUID:      DefaultRxUUID,
		ChunkSize:   DefaultChunkSize,
		ChunkDelay:  DefaultChunkDelay,
	}
}

// Dialer implements device.Dialer over a GATT serial service
type Dialer struct {
	adapter *Adapter
	opts    Options
	logger  *logrus.Logger
}

// NewDialer creates a Dialer sharing the adapter's ble.Device
func NewDialer(adapter *Adapter, opts Options, logger *logrus.Logger) *Dialer {
	def := DefaultOptions()
	if opts.ServiceUUID == "" {
		opts.ServiceUUID = def.ServiceUUID
	}
	if opts.TxUUID == "" {
		opts.TxUUID = def.TxUUID
	}
	if opts.RxUUID == "" {
		opts.RxUUID = def.RxUUID
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Dialer{adapter: adapter, opts: opts, logger: logger}
}

// Dial connects, discovers the serial service and subscribes to its TX characteristic
func (d *Dialer) Dial(ctx context.Context, h device.Handle, service device.ServiceID) (io.ReadWriteCloser, error) {
	dev, err := d.adapter.central()
	if err != nil {
		return nil, err
	}

	serviceUUID, err := d.gattService(service)
	if err != nil {
		return nil, err
	}

	d.logger.WithField("address", h.Address).Debug("Dialing BLE device...")
	client, err := dev.Dial(ctx, ble.NewAddr(h.Address))
	if err != nil {
		return nil, normalizeError(err)
	}

	tx, rx, err := d.discover(client, serviceUUID)
	if err != nil {
		_ = client.CancelConnection()
		return nil, err
	}

	s := newStream(client, rx, d.opts, d.logger)
	if err := client.Subscribe(tx, false, s.deliver); err != nil {
		_ = s.Close()
		return nil, normalizeError(fmt.Errorf("failed to subscribe to TX characteristic: %w", err))
	}
	s.watch()

	d.logger.WithFields(logrus.Fields{
		"address": h.Address,
		"service": serviceUUID.String(),
	}).Info("BLE serial connection established")
	return s, nil
}

// gattService maps the requested service onto a GATT service UUID
func (d *Dialer) gattService(service device.ServiceID) (ble.UUID, error) {
	s := d.opts.ServiceUUID
	if service != device.SerialPortProfile {
		s = service.String()
	}
	u, err := ble.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid service uuid %q: %w", s, err)
	}
	return u, nil
}

func (d *Dialer) discover(client ble.Client, serviceUUID ble.UUID) (tx, rx *ble.Characteristic, err error) {
	txUUID, err := ble.Parse(d.opts.TxUUID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid tx uuid %q: %w", d.opts.TxUUID, err)
	}
	rxUUID, err := ble.Parse(d.opts.RxUUID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid rx uuid %q: %w", d.opts.RxUUID, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return nil, nil, device.ConnectFailed(fmt.Errorf("failed to discover profile: %w", err))
	}
	return findSerial(profile, serviceUUID, txUUID, rxUUID)
}

// findSerial locates the TX and RX characteristics of the serial service
func findSerial(profile *ble.Profile, serviceUUID, txUUID, rxUUID ble.UUID) (tx, rx *ble.Characteristic, err error) {
	for _, svc := range profile.Services {
		if !svc.UUID.Equal(serviceUUID) {
			continue
		}
		for _, c := range svc.Characteristics {
			switch {
			case c.UUID.Equal(txUUID):
				tx = c
			case c.UUID.Equal(rxUUID):
				rx = c
			}
		}
		if tx == nil || rx == nil {
			return nil, nil, device.ConnectFailed(fmt.Errorf("serial service %s lacks TX or RX characteristic", serviceUUID))
		}
		return tx, rx, nil
	}
	return nil, nil, device.ConnectFailed(fmt.Errorf("serial service %s not found", serviceUUID))
}
