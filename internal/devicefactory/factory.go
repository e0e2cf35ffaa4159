// Package devicefactory builds the platform backend selected by configuration
package devicefactory

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/device/bluez"
	"github.com/srg/scalelink/internal/device/goble"
	"github.com/srg/scalelink/internal/device/serial"
	"github.com/srg/scalelink/pkg/config"
)

// Backend bundles an adapter with its dialer. Close releases platform resources.
type Backend struct {
	Name    string
	Adapter device.Adapter
	Dialer  device.Dialer
	closers []func() error
}

// Close releases the backend. Idempotent.
func (b *Backend) Close() error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.closers = nil
	return firstErr
}

// Factories are variables so that tests can replace them
var (
	BlueZFactory  = newBlueZ
	BLEFactory    = newBLE
	SerialFactory = newSerial
)

// New creates the backend named by cfg.Backend
func New(cfg *config.Config, logger *logrus.Logger) (*Backend, error) {
	if logger == nil {
		logger = logrus.New()
	}

	var (
		b   *Backend
		err error
	)
	switch cfg.Backend {
	case config.BackendBlueZ, "":
		b, err = BlueZFactory(cfg, logger)
	case config.BackendBLE:
		b, err = BLEFactory(cfg, logger)
	case config.BackendSerial:
		b, err = SerialFactory(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.WithField("backend", b.Name).Debug("Device backend ready")
	return b, nil
}

func newBlueZ(cfg *config.Config, logger *logrus.Logger) (*Backend, error) {
	conn, err := bluez.Connect()
	if err != nil {
		return nil, err
	}

	opts := bluez.Options{
		AdapterName:   cfg.BlueZ.Adapter,
		RFCOMMChannel: cfg.BlueZ.RFCOMMChannel,
		ProfileName:   cfg.BlueZ.ProfileName,
	}
	dialer := bluez.NewDialer(conn, opts, logger)
	return &Backend{
		Name:    config.BackendBlueZ,
		Adapter: bluez.NewAdapter(conn, opts, logger),
		Dialer:  dialer,
		closers: []func() error{conn.Close, dialer.Close},
	}, nil
}

func newBLE(cfg *config.Config, logger *logrus.Logger) (*Backend, error) {
	adapter := goble.NewAdapter(nil, logger)
	dialer := goble.NewDialer(adapter, goble.Options{
		ServiceUUID: cfg.BLE.Service,
		TxUUID:      cfg.BLE.TxChar,
		RxUUID:      cfg.BLE.RxChar,
		ChunkSize:   cfg.BLE.ChunkSize,
		ChunkDelay:  cfg.BLE.ChunkDelay,
	}, logger)
	return &Backend{
		Name:    config.BackendBLE,
		Adapter: adapter,
		Dialer:  dialer,
	}, nil
}

func newSerial(cfg *config.Config, logger *logrus.Logger) (*Backend, error) {
	adapter := serial.NewAdapter(serial.Options{Ports: cfg.Serial.Ports}, logger)
	return &Backend{
		Name:    config.BackendSerial,
		Adapter: adapter,
		Dialer:  adapter,
	}, nil
}
