package bluez

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
)

// DefaultProfileName is the name registered for the client profile
const DefaultProfileName = "scalelink"

// Dialer implements device.Dialer over BlueZ
type Dialer struct {
	conn    *dbus.Conn
	adapter dbus.ObjectPath
	channel uint8
	name    string
	logger  *logrus.Logger

	mu         sync.Mutex
	profile    *clientProfile
	registered map[uuid.UUID]dbus.ObjectPath
}

// NewDialer creates a Dialer for the adapter configured in opts
func NewDialer(conn *dbus.Conn, opts Options, logger *logrus.Logger) *Dialer {
	if logger == nil {
		logger = logrus.New()
	}
	name := opts.AdapterName
	if name == "" {
		name = DefaultAdapterName
	}
	profileName := opts.ProfileName
	if profileName == "" {
		profileName = DefaultProfileName
	}
	return &Dialer{
		conn:       conn,
		adapter:    adapterPath(name),
		channel:    opts.RFCOMMChannel,
		name:       profileName,
		logger:     logger,
		profile:    newClientProfile(logger, closeFD),
		registered: make(map[uuid.UUID]dbus.ObjectPath),
	}
}

// Dial opens a stream to h. With a configured RFCOMM channel the socket is
// opened directly; otherwise BlueZ resolves service on the device and hands
// the connected socket to the registered client profile.
func (d *Dialer) Dial(ctx context.Context, h device.Handle, service device.ServiceID) (io.ReadWriteCloser, error) {
	if d.channel > 0 {
		d.logger.WithFields(logrus.Fields{
			"address": h.Address,
			"channel": d.channel,
		}).Debug("Dialing RFCOMM channel")
		return dialRFCOMM(ctx, h.Address, d.channel)
	}
	return d.dialProfile(ctx, h, service)
}

func (d *Dialer) dialProfile(ctx context.Context, h device.Handle, service device.ServiceID) (io.ReadWriteCloser, error) {
	if err := d.ensureProfile(ctx, service); err != nil {
		return nil, err
	}

	dev := devicePath(d.adapter, h.Address)
	fds := d.profile.expect(dev)

	serviceID := strings.ToLower(service.String())
	call := d.conn.Object(busName, dev).GoWithContext(ctx, deviceInterface+".ConnectProfile", 0, nil, serviceID)

	select {
	case <-ctx.Done():
		d.profile.forget(dev, fds)
		return nil, ctx.Err()
	case <-call.Done:
		if call.Err != nil && !isBenign(call.Err) {
			d.profile.forget(dev, fds)
			return nil, normalizeError(call.Err)
		}
	}

	select {
	case <-ctx.Done():
		d.profile.forget(dev, fds)
		return nil, ctx.Err()
	case fd := <-fds:
		return fileFromFD(fd, "rfcomm:"+h.Address)
	}
}

// ensureProfile exports and registers the client profile for service once
func (d *Dialer) ensureProfile(ctx context.Context, service device.ServiceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.registered[service]; ok {
		return nil
	}

	path := dbus.ObjectPath(fmt.Sprintf("/org/scalelink/profile_%s", strings.ReplaceAll(service.String(), "-", "")))
	if err := d.conn.Export(d.profile, path, profileInterface); err != nil {
		return fmt.Errorf("failed to export profile: %w", err)
	}

	opts := map[string]dbus.Variant{
		"Name":                  dbus.MakeVariant(d.name),
		"Role":                  dbus.MakeVariant("client"),
		"RequireAuthentication": dbus.MakeVariant(false),
		"RequireAuthorization":  dbus.MakeVariant(false),
	}
	manager := d.conn.Object(busName, profileManagerPath)
	err := manager.CallWithContext(ctx, profileManagerInterface+".RegisterProfile", 0, path, strings.ToLower(service.String()), opts).Err
	if err != nil && !isBenign(err) {
		_ = d.conn.Export(nil, path, profileInterface)
		return normalizeError(err)
	}

	d.registered[service] = path
	d.logger.WithFields(logrus.Fields{
		"path":    path,
		"service": service.String(),
	}).Debug("Registered client profile")
	return nil
}

// Close unregisters every profile registered by this dialer
func (d *Dialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	manager := d.conn.Object(busName, profileManagerPath)
	var firstErr error
	for service, path := range d.registered {
		if err := manager.Call(profileManagerInterface+".UnregisterProfile", 0, path).Err; err != nil && firstErr == nil {
			firstErr = normalizeError(err)
		}
		_ = d.conn.Export(nil, path, profileInterface)
		delete(d.registered, service)
	}
	return firstErr
}
