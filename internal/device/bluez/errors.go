package bluez

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/srg/scalelink/internal/device"
)

// dbusErrorName returns the D-Bus error name carried by err, if any
func dbusErrorName(err error) (string, bool) {
	var de dbus.Error
	if errors.As(err, &de) {
		return de.Name, true
	}
	var pde *dbus.Error
	if errors.As(err, &pde) && pde != nil {
		return pde.Name, true
	}
	return "", false
}

// normalizeError classifies BlueZ and bus errors by their D-Bus error name.
// The message text of a D-Bus error does not carry the name, so string
// matching alone would miss most of them.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	name, ok := dbusErrorName(err)
	if !ok {
		return device.NormalizeError(err)
	}

	switch name {
	case "org.freedesktop.DBus.Error.AccessDenied",
		"org.bluez.Error.NotAuthorized",
		"org.bluez.Error.AuthenticationFailed",
		"org.bluez.Error.AuthenticationRejected":
		return &device.Error{Kind: device.KindPermissionDenied, Msg: name, Err: err}
	case "org.bluez.Error.NotReady",
		"org.freedesktop.DBus.Error.ServiceUnknown",
		"org.freedesktop.DBus.Error.UnknownObject":
		return &device.Error{Kind: device.KindAdapterUnavailable, Msg: name, Err: err}
	case "org.freedesktop.DBus.Error.NoReply",
		"org.freedesktop.DBus.Error.Timeout",
		"org.bluez.Error.AuthenticationTimeout":
		return &device.Error{Kind: device.KindTimeout, Msg: name, Err: err}
	case "org.bluez.Error.DoesNotExist":
		return &device.Error{Kind: device.KindDeviceNotFound, Msg: name, Err: err}
	default:
		return device.NormalizeError(fmt.Errorf("%s: %w", name, err))
	}
}

// isBenign reports errors that mean the requested state already holds
func isBenign(err error) bool {
	name, ok := dbusErrorName(err)
	if !ok {
		return false
	}
	switch name {
	case "org.bluez.Error.AlreadyExists", "org.bluez.Error.InProgress", "org.bluez.Error.AlreadyConnected":
		return true
	}
	return false
}
