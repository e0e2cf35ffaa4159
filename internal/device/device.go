package device

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// ServiceID selects the remote service a link is opened against
type ServiceID = uuid.UUID

// SerialPortProfile is the well-known Serial Port Profile service class
var SerialPortProfile = uuid.MustParse("00001101-0000-1000-8000-00805F9B34FB")

// ParseServiceID parses a service identifier in canonical UUID form
func ParseServiceID(s string) (ServiceID, error) {
	return uuid.Parse(s)
}

// Adapter is the platform capability set the core depends on. Implementations
// wrap a concrete Bluetooth stack; the core never touches platform APIs directly.
type Adapter interface {
	// Available reports whether a Bluetooth adapter exists
	Available(ctx context.Context) bool
	// Enabled reports whether the adapter is powered
	Enabled(ctx context.Context) bool
	// RequestEnable asks the platform to power the adapter on
	RequestEnable(ctx context.Context) error
	// CheckPermissions returns ErrPermissionDenied when access grants are missing
	CheckPermissions(ctx context.Context) error
	// Bonded returns the devices already paired with this adapter
	Bonded(ctx context.Context) ([]Handle, error)
	// Scan reports nearby devices to handler until ctx is done or the platform fails.
	// The handler may be called with the same device more than once.
	Scan(ctx context.Context, handler func(Handle)) error
	// StopScan cancels platform-level discovery. Safe to call when no scan runs.
	StopScan() error
}

// Dialer opens a byte stream to a device. A Dialer that fails after partially
// opening a transport must close it before returning. Close on the returned
// transport must unblock a pending Read.
type Dialer interface {
	Dial(ctx context.Context, h Handle, service ServiceID) (io.ReadWriteCloser, error)
}

// ScanStopper is the part of discovery a connector needs
type ScanStopper interface {
	StopScan()
}
