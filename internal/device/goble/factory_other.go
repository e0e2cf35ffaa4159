//go:build !darwin && !linux

package goble

import (
	"errors"

	"github.com/go-ble/ble"
)

// DeviceFactory creates the platform ble.Device (can be overridden in tests)
var DeviceFactory = func() (ble.Device, error) {
	return nil, errors.New("no bluetooth adapter: go-ble supports darwin and linux only")
}
