package bluez

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

// clientProfile is the exported org.bluez.Profile1 object. BlueZ calls
// NewConnection with the connected socket once ConnectProfile succeeds.
type clientProfile struct {
	logger  *logrus.Logger
	closeFD func(int) error
	mu      sync.Mutex
	waiters map[dbus.ObjectPath]chan int
}

func newClientProfile(logger *logrus.Logger, closeFD func(int) error) *clientProfile {
	return &clientProfile{
		logger:  logger,
		closeFD: closeFD,
		waiters: make(map[dbus.ObjectPath]chan int),
	}
}

// expect registers interest in the next connection of dev
func (p *clientProfile) expect(dev dbus.ObjectPath) <-chan int {
	ch := make(chan int, 1)
	p.mu.Lock()
	p.waiters[dev] = ch
	p.mu.Unlock()
	return ch
}

// forget drops the waiter registered by expect and closes a descriptor that
// was delivered on fds but never taken.
func (p *clientProfile) forget(dev dbus.ObjectPath, fds <-chan int) {
	p.mu.Lock()
	if cur, ok := p.waiters[dev]; ok && (<-chan int)(cur) == fds {
		delete(p.waiters, dev)
	}
	p.mu.Unlock()

	select {
	case fd := <-fds:
		p.logger.WithField("device", dev).Debug("Closing profile connection nobody waits for")
		_ = p.closeFD(fd)
	default:
	}
}

// NewConnection implements org.bluez.Profile1
func (p *clientProfile) NewConnection(dev dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	p.mu.Lock()
	ch := p.waiters[dev]
	delete(p.waiters, dev)
	p.mu.Unlock()

	if ch == nil {
		p.logger.WithField("device", dev).Warn("Unexpected profile connection, closing")
		_ = p.closeFD(int(fd))
		return nil
	}

	p.logger.WithField("device", dev).Debug("Profile connection received")
	ch <- int(fd)
	return nil
}

// RequestDisconnection implements org.bluez.Profile1
func (p *clientProfile) RequestDisconnection(dev dbus.ObjectPath) *dbus.Error {
	p.logger.WithField("device", dev).Debug("Profile disconnection requested")
	return nil
}

// Release implements org.bluez.Profile1
func (p *clientProfile) Release() *dbus.Error {
	p.logger.Debug("Profile released")
	return nil
}
