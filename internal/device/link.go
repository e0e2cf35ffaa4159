package device

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Link is an open byte stream to a peer. It is owned by one supervisor;
// readers and writers only borrow it for the link's lifetime.
//
// Write and Close are serialized by a single mutex so a write can never race
// a close. Read is deliberately outside that mutex: a blocked read must not
// prevent Close, and Close is what unblocks it.
type Link struct {
	device    Handle
	transport io.ReadWriteCloser
	openedAt  time.Time

	mu       sync.Mutex
	closed   atomic.Bool
	closeErr error
}

// NewLink takes ownership of transport
func NewLink(dev Handle, transport io.ReadWriteCloser) *Link {
	return &Link{
		device:    dev,
		transport: transport,
		openedAt:  time.Now(),
	}
}

// Device returns the peer this link is connected to
func (l *Link) Device() Handle {
	return l.device
}

// OpenedAt returns the time the link was established
func (l *Link) OpenedAt() time.Time {
	return l.openedAt
}

// Read reads from the transport. Returns ErrNotConnected once the link is closed.
func (l *Link) Read(p []byte) (int, error) {
	if l.closed.Load() {
		return 0, ErrNotConnected
	}
	return l.transport.Read(p)
}

// Write writes payload to the transport. Returns ErrNotConnected once the link is closed.
func (l *Link) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return 0, ErrNotConnected
	}
	return l.transport.Write(p)
}

// Close closes the transport once. Later calls return the first result.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Swap(true) {
		return l.closeErr
	}
	l.closeErr = l.transport.Close()
	return l.closeErr
}

// Closed reports whether Close has been called
func (l *Link) Closed() bool {
	return l.closed.Load()
}
