// Package serial runs the device layer over tty nodes, typically /dev/rfcommN
// bound to the scale with `rfcomm bind`. There is no radio to scan: the
// configured ports whose device node exists are the discoverable set.
package serial

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
	"golang.org/x/sys/unix"
)

// Port maps a device name to its tty node. Address defaults to Path.
type Port struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// Options configures the serial backend
type Options struct {
	Ports []Port
}

// Adapter implements device.Adapter and device.Dialer over configured ports
type Adapter struct {
	ports  []Port
	logger *logrus.Logger
}

// NewAdapter creates an Adapter for opts.Ports
func NewAdapter(opts Options, logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	ports := make([]Port, 0, len(opts.Ports))
	for _, p := range opts.Ports {
		if p.Path == "" {
			continue
		}
		if p.Address == "" {
			p.Address = p.Path
		}
		ports = append(ports, p)
	}
	return &Adapter{ports: ports, logger: logger}
}

func (p Port) handle() device.Handle {
	return device.NewHandle(p.Name, p.Address, true)
}

func present(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// presentPorts returns the ports whose node exists, in configuration order
func (a *Adapter) presentPorts() []Port {
	var out []Port
	for _, p := range a.ports {
		if present(p.Path) {
			out = append(out, p)
		} else {
			a.logger.WithField("path", p.Path).Debug("Serial device node missing")
		}
	}
	return out
}

// Available reports whether any configured node exists
func (a *Adapter) Available(context.Context) bool {
	return len(a.presentPorts()) > 0
}

// Enabled is the same as Available for tty nodes
func (a *Adapter) Enabled(ctx context.Context) bool {
	return a.Available(ctx)
}

// RequestEnable cannot create device nodes
func (a *Adapter) RequestEnable(ctx context.Context) error {
	if a.Available(ctx) {
		return nil
	}
	return &device.Error{Kind: device.KindAdapterUnavailable, Msg: "no configured serial device node exists"}
}

// CheckPermissions requires read and write access to every present node
func (a *Adapter) CheckPermissions(context.Context) error {
	for _, p := range a.presentPorts() {
		if err := unix.Access(p.Path, unix.R_OK|unix.W_OK); err != nil {
			if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
				return &device.Error{Kind: device.KindPermissionDenied, Msg: p.Path, Err: err}
			}
			return device.NormalizeError(err)
		}
	}
	return nil
}

// Bonded returns present ports; a bound rfcomm node implies a paired device
func (a *Adapter) Bonded(context.Context) ([]device.Handle, error) {
	ports := a.presentPorts()
	out := make([]device.Handle, 0, len(ports))
	for _, p := range ports {
		out = append(out, p.handle())
	}
	device.SortHandles(out)
	return out, nil
}

// Scan reports every present port once, then waits for ctx
func (a *Adapter) Scan(ctx context.Context, handler func(device.Handle)) error {
	for _, p := range a.presentPorts() {
		handler(p.handle())
	}
	<-ctx.Done()
	return ctx.Err()
}

// StopScan has nothing to stop
func (a *Adapter) StopScan() error {
	return nil
}

// lookup finds the port a handle was produced from
func (a *Adapter) lookup(h device.Handle) (Port, bool) {
	for _, p := range a.ports {
		if device.NormalizeAddress(p.Address) == h.Address {
			return p, true
		}
	}
	return Port{}, false
}
