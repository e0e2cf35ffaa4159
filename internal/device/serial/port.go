package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Dial opens the port behind h. The node is opened non-blocking so the
// runtime poller can unblock a pending Read on Close.
func (a *Adapter) Dial(ctx context.Context, h device.Handle, _ device.ServiceID) (io.ReadWriteCloser, error) {
	p, ok := a.lookup(h)
	if !ok {
		return nil, &device.Error{Kind: device.KindDeviceNotFound, Msg: fmt.Sprintf("no serial port configured for %s", h)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(p.Path, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, &device.Error{Kind: device.KindPermissionDenied, Msg: p.Path, Err: err}
		}
		return nil, err
	}

	port := &port{f: f, path: p.Path, logger: a.logger}
	if err := port.makeRaw(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to set raw mode on %s: %w", p.Path, err)
	}

	a.logger.WithFields(logrus.Fields{
		"device": p.Name,
		"path":   p.Path,
	}).Info("Serial port opened")
	return port, nil
}

// port is an open tty node
type port struct {
	f      *os.File
	path   string
	logger *logrus.Logger

	mu     sync.Mutex
	state  *term.State
	closed bool
}

// makeRaw switches a terminal into raw mode and remembers the previous state.
// Non-terminal nodes are left untouched.
func (p *port) makeRaw() error {
	rc, err := p.f.SyscallConn()
	if err != nil {
		return err
	}
	var rawErr error
	if err := rc.Control(func(fd uintptr) {
		if !term.IsTerminal(int(fd)) {
			return
		}
		p.state, rawErr = term.MakeRaw(int(fd))
	}); err != nil {
		return err
	}
	return rawErr
}

func (p *port) Read(b []byte) (int, error) {
	return p.f.Read(b)
}

func (p *port) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

// Close restores the terminal mode and closes the node. Idempotent.
func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.state != nil {
		if rc, err := p.f.SyscallConn(); err == nil {
			_ = rc.Control(func(fd uintptr) {
				if err := term.Restore(int(fd), p.state); err != nil {
					p.logger.WithError(err).WithField("path", p.path).Warn("Failed to restore terminal mode")
				}
			})
		}
	}
	return p.f.Close()
}
