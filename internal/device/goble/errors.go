package goble

import (
	"strings"

	"github.com/srg/scalelink/internal/device"
)

// normalizeError maps go-ble error strings onto device error kinds.
// go-ble reports most platform conditions as plain text.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "is Bluetooth turned on?"),
		containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "no devices available"),
		containsIgnoreCase(msg, "can't init hci"):
		return &device.Error{Kind: device.KindAdapterUnavailable, Err: err}
	case containsIgnoreCase(msg, "operation not permitted"),
		containsIgnoreCase(msg, "unauthorized"):
		return &device.Error{Kind: device.KindPermissionDenied, Err: err}
	case containsIgnoreCase(msg, "device not connected"),
		containsIgnoreCase(msg, "disconnected"):
		return device.LinkLost(err)
	default:
		return device.NormalizeError(err)
	}
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
