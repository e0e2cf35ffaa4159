// Package bluez implements the device boundary on Linux over the BlueZ D-Bus API.
//
// Discovery, bonded queries and power state go through org.bluez.Adapter1 and
// org.bluez.Device1 on the system bus. Links are either raw RFCOMM sockets
// (when the channel is known) or file descriptors handed over by BlueZ after
// Device1.ConnectProfile through a registered org.bluez.Profile1 object.
package bluez

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
)

// DefaultAdapterName is the adapter used when none is configured
const DefaultAdapterName = "hci0"

// Options configures the BlueZ backend
type Options struct {
	AdapterName   string // adapter object name (default hci0)
	RFCOMMChannel uint8  // dial this RFCOMM channel directly (0 = let BlueZ resolve the profile)
	ProfileName   string // name registered for the client profile
}

// Adapter implements device.Adapter over BlueZ
type Adapter struct {
	conn   *dbus.Conn
	path   dbus.ObjectPath
	logger *logrus.Logger

	mu          sync.Mutex
	discovering bool
}

// Connect opens the system bus. A missing bus is reported as AdapterUnavailable.
func Connect() (*dbus.Conn, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, &device.Error{Kind: device.KindAdapterUnavailable, Msg: "failed to connect to system D-Bus", Err: err}
	}
	return conn, nil
}

// NewAdapter creates an Adapter for the named adapter on conn
func NewAdapter(conn *dbus.Conn, opts Options, logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	name := opts.AdapterName
	if name == "" {
		name = DefaultAdapterName
	}
	return &Adapter{
		conn:   conn,
		path:   adapterPath(name),
		logger: logger,
	}
}

// Path returns the adapter object path
func (a *Adapter) Path() dbus.ObjectPath {
	return a.path
}

func (a *Adapter) objects(ctx context.Context) (managedObjects, error) {
	objects := make(managedObjects)
	obj := a.conn.Object(busName, "/")
	if err := obj.CallWithContext(ctx, objectManagerInterface+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, normalizeError(err)
	}
	return objects, nil
}

func (a *Adapter) adapterProps(ctx context.Context) (map[string]dbus.Variant, error) {
	props := make(map[string]dbus.Variant)
	obj := a.conn.Object(busName, a.path)
	if err := obj.CallWithContext(ctx, propertiesInterface+".GetAll", 0, adapterInterface).Store(&props); err != nil {
		return nil, normalizeError(err)
	}
	return props, nil
}

// Available reports whether the adapter object exists
func (a *Adapter) Available(ctx context.Context) bool {
	objects, err := a.objects(ctx)
	if err != nil {
		a.logger.WithError(err).Debug("Failed to list BlueZ objects")
		return false
	}
	_, ok := objects[a.path][adapterInterface]
	return ok
}

// Enabled reports the adapter's Powered property
func (a *Adapter) Enabled(ctx context.Context) bool {
	props, err := a.adapterProps(ctx)
	if err != nil {
		return false
	}
	powered, _ := boolProp(props, "Powered")
	return powered
}

// RequestEnable powers the adapter on
func (a *Adapter) RequestEnable(ctx context.Context) error {
	obj := a.conn.Object(busName, a.path)
	err := obj.CallWithContext(ctx, propertiesInterface+".Set", 0, adapterInterface, "Powered", dbus.MakeVariant(true)).Err
	if err != nil {
		return normalizeError(err)
	}
	a.logger.WithField("adapter", a.path).Info("Bluetooth adapter powered on")
	return nil
}

// CheckPermissions verifies the caller may talk to the adapter
func (a *Adapter) CheckPermissions(ctx context.Context) error {
	_, err := a.adapterProps(ctx)
	if errors.Is(err, device.ErrPermissionDenied) {
		return err
	}
	return nil
}

// Bonded returns the paired devices of this adapter
func (a *Adapter) Bonded(ctx context.Context) ([]device.Handle, error) {
	objects, err := a.objects(ctx)
	if err != nil {
		return nil, err
	}
	return bondedDevices(objects, a.path), nil
}

// Scan runs BR/EDR discovery until ctx is done. Devices BlueZ already knows
// are reported first, then every device added or renamed while discovering.
func (a *Adapter) Scan(ctx context.Context, handler func(device.Handle)) error {
	signals := make(chan *dbus.Signal, 64)
	a.conn.Signal(signals)
	defer a.conn.RemoveSignal(signals)

	rules := []string{
		fmt.Sprintf("type='signal',interface='%s',member='InterfacesAdded'", objectManagerInterface),
		fmt.Sprintf("type='signal',interface='%s',member='PropertiesChanged',arg0='%s'", propertiesInterface, deviceInterface),
	}
	for _, rule := range rules {
		if err := a.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
			return normalizeError(err)
		}
	}
	defer func() {
		for _, rule := range rules {
			a.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)
		}
	}()

	if err := a.startDiscovery(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.StopScan(); err != nil {
			a.logger.WithError(err).Debug("Failed to stop discovery")
		}
	}()

	objects, err := a.objects(ctx)
	if err != nil {
		return err
	}
	for _, h := range knownDevices(objects, a.path) {
		handler(h)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return &device.Error{Kind: device.KindAdapterUnavailable, Msg: "D-Bus connection closed"}
			}
			if h, ok := a.handleFromSignal(ctx, sig); ok {
				handler(h)
			}
		}
	}
}

func (a *Adapter) startDiscovery(ctx context.Context) error {
	obj := a.conn.Object(busName, a.path)

	filter := map[string]interface{}{
		"Transport": "bredr",
	}
	if err := obj.CallWithContext(ctx, adapterInterface+".SetDiscoveryFilter", 0, filter).Err; err != nil {
		// Some adapters reject filters; discovery still works without one
		a.logger.WithError(err).Debug("Failed to set discovery filter")
	}

	if err := obj.CallWithContext(ctx, adapterInterface+".StartDiscovery", 0).Err; err != nil && !isBenign(err) {
		return normalizeError(err)
	}

	a.mu.Lock()
	a.discovering = true
	a.mu.Unlock()

	a.logger.WithField("adapter", a.path).Debug("Discovery started")
	return nil
}

func (a *Adapter) handleFromSignal(ctx context.Context, sig *dbus.Signal) (device.Handle, bool) {
	switch sig.Name {
	case objectManagerInterface + ".InterfacesAdded":
		if len(sig.Body) < 2 {
			return device.Handle{}, false
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok || !underAdapter(a.path, path) {
			return device.Handle{}, false
		}
		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return device.Handle{}, false
		}
		props, ok := ifaces[deviceInterface]
		if !ok {
			return device.Handle{}, false
		}
		return handleFromProperties(path, props)

	case propertiesInterface + ".PropertiesChanged":
		if !underAdapter(a.path, sig.Path) || len(sig.Body) < 2 {
			return device.Handle{}, false
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return device.Handle{}, false
		}
		if _, renamed := changed["Name"]; !renamed {
			return device.Handle{}, false
		}
		props := make(map[string]dbus.Variant)
		obj := a.conn.Object(busName, sig.Path)
		if err := obj.CallWithContext(ctx, propertiesInterface+".GetAll", 0, deviceInterface).Store(&props); err != nil {
			return device.Handle{}, false
		}
		return handleFromProperties(sig.Path, props)
	}
	return device.Handle{}, false
}

// StopScan stops discovery started by Scan. A no-op when none is running.
func (a *Adapter) StopScan() error {
	a.mu.Lock()
	running := a.discovering
	a.discovering = false
	a.mu.Unlock()

	if !running {
		return nil
	}
	obj := a.conn.Object(busName, a.path)
	if err := obj.Call(adapterInterface+".StopDiscovery", 0).Err; err != nil {
		return normalizeError(err)
	}
	a.logger.WithField("adapter", a.path).Debug("Discovery stopped")
	return nil
}
