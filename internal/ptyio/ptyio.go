// Package ptyio exposes a pseudo-terminal whose slave end can be opened by
// software that expects a serial port.
//
// Output for the slave is queued in a ring buffer and written by a background
// loop, so Write never blocks the caller. When the queue is full the excess
// bytes are dropped and counted. Bytes the slave writes are handed to an
// input handler from a second background loop.
//
//	p, err := ptyio.Open(ptyio.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//	p.SetInputHandler(func(data []byte) { ... })
//	p.Write([]byte("70.5\r\n"))
//	fmt.Println(p.TTYName()) // /dev/pts/N
package ptyio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"github.com/srg/scalelink/internal/groutine"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Defaults for zero Options fields
const (
	DefaultWriteCap    = 4096
	DefaultPollTimeout = 50 * time.Millisecond
)

// InputHandler receives bytes written by the slave side. It runs on the read
// loop goroutine and must not retain data.
type InputHandler = func(data []byte)

// Options configures Open
type Options struct {
	WriteCap    int           // queued output capacity in bytes
	PollTimeout time.Duration // bounds how long the loops wait before checking for Close
	Symlink     string        // optional stable path pointing at the slave device
	Logger      *logrus.Logger
}

// Stats are runtime counters
type Stats struct {
	Queued  int
	Dropped uint64 // output bytes lost to a full queue
	Written uint64 // output bytes delivered to the master
	Read    uint64 // input bytes received from the slave
}

// PTY is an open master/slave pair
type PTY struct {
	logger  *logrus.Logger
	master  *os.File
	slave   *os.File
	fd      int32 // master descriptor, captured before the loops start
	name    string
	symlink string
	poll    int // ms

	out  *ringbuffer.RingBuffer
	kick chan struct{}

	onInput atomic.Pointer[InputHandler]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	dropped atomic.Uint64
	written atomic.Uint64
	read    atomic.Uint64
}

// Open creates the pair, switches the slave to raw mode and starts the I/O loops
func Open(opts Options) (*PTY, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if opts.WriteCap <= 0 {
		opts.WriteCap = DefaultWriteCap
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}

	master, slave, err := openPair()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &PTY{
		logger: logger,
		master: master,
		slave:  slave,
		fd:     int32(master.Fd()),
		name:   slave.Name(),
		poll:   int(opts.PollTimeout / time.Millisecond),
		out:    ringbuffer.New(opts.WriteCap),
		kick:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	if p.poll <= 0 {
		p.poll = 1
	}

	if opts.Symlink != "" {
		if err := linkSlave(p.name, opts.Symlink); err != nil {
			cancel()
			_ = master.Close()
			_ = slave.Close()
			return nil, err
		}
		p.symlink = opts.Symlink
	}

	p.wg.Add(2)
	groutine.Go(ctx, "pty-read-loop", func(context.Context) { p.readLoop() })
	groutine.Go(ctx, "pty-write-loop", func(context.Context) { p.writeLoop() })

	logger.WithFields(logrus.Fields{
		"tty":     p.name,
		"symlink": p.symlink,
	}).Info("PTY opened")
	return p, nil
}

// openPair opens a pty with the slave in raw mode and the master non-blocking
func openPair() (*os.File, *os.File, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create PTY (check permissions and available PTY devices): %w", err)
	}

	if _, err := term.MakeRaw(int(slave.Fd())); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, nil, fmt.Errorf("failed to set PTY %s to raw mode: %w", slave.Name(), err)
	}
	if err := syscall.SetNonblock(int(master.Fd()), true); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, nil, fmt.Errorf("failed to set PTY %s to nonblocking mode: %w", slave.Name(), err)
	}
	return master, slave, nil
}

// linkSlave points path at the slave device, replacing a stale symlink.
// Anything other than a symlink at path is left alone.
func linkSlave(target, path string) error {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("symlink path %s exists and is not a symlink", path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove stale symlink %s: %w", path, err)
		}
	}
	if err := os.Symlink(target, path); err != nil {
		return fmt.Errorf("failed to create symlink %s: %w", path, err)
	}
	return nil
}

// TTYName returns the slave device path, e.g. /dev/pts/5
func (p *PTY) TTYName() string {
	return p.name
}

// Symlink returns the symlink path, or "" if none was requested
func (p *PTY) Symlink() string {
	return p.symlink
}

// SetInputHandler installs h for slave input; nil discards input
func (p *PTY) SetInputHandler(h InputHandler) {
	if h == nil {
		p.onInput.Store(nil)
		return
	}
	p.onInput.Store(&h)
}

// Write queues data for the slave and returns the number of bytes queued.
// A short count means the queue was full; the rest is dropped.
func (p *PTY) Write(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, os.ErrClosed
	}
	if len(data) == 0 {
		return 0, nil
	}

	n, err := p.out.Write(data)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) && !errors.Is(err, ringbuffer.ErrTooMuchDataToWrite) {
		return n, err
	}
	if n < len(data) {
		dropped := len(data) - n
		p.dropped.Add(uint64(dropped))
		p.logger.WithFields(logrus.Fields{
			"dropped": dropped,
			"queued":  n,
		}).Warn("PTY output queue full")
	}

	select {
	case p.kick <- struct{}{}:
	default:
	}
	return n, nil
}

func (p *PTY) writeLoop() {
	defer p.wg.Done()

	master := p.master
	pollFd := []unix.PollFd{{Fd: p.fd, Events: unix.POLLOUT}}
	buf := make([]byte, 4096)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.kick:
		}

		for {
			n, err := p.out.TryRead(buf)
			if n == 0 || errors.Is(err, ringbuffer.ErrIsEmpty) {
				break
			}
			if !p.writeAll(master, pollFd, buf[:n]) {
				return
			}
		}
	}
}

// writeAll writes chunk to the master, waiting while it is not writable.
// Returns false when the loop must exit.
func (p *PTY) writeAll(master *os.File, pollFd []unix.PollFd, chunk []byte) bool {
	for len(chunk) > 0 {
		if p.ctx.Err() != nil {
			return false
		}
		n, err := master.Write(chunk)
		if n > 0 {
			chunk = chunk[n:]
			p.written.Add(uint64(n))
		}
		switch {
		case err == nil:
		case errors.Is(err, syscall.EINTR):
		case errors.Is(err, syscall.EAGAIN):
			if _, perr := unix.Poll(pollFd, p.poll); perr != nil && !errors.Is(perr, syscall.EINTR) {
				p.logger.WithError(perr).Warn("PTY write poll failed")
			}
		case errors.Is(err, syscall.EBADF), errors.Is(err, os.ErrClosed):
			return false
		default:
			p.logger.WithError(err).Warn("PTY write loop exiting")
			return false
		}
	}
	return true
}

func (p *PTY) readLoop() {
	defer p.wg.Done()

	master := p.master
	pollFd := []unix.PollFd{{Fd: p.fd, Events: unix.POLLIN}}
	buf := make([]byte, 4096)

	for {
		if p.ctx.Err() != nil {
			return
		}

		ready, err := unix.Poll(pollFd, p.poll)
		if err != nil && !errors.Is(err, syscall.EINTR) {
			p.logger.WithError(err).Warn("PTY read poll failed")
			continue
		}
		if ready == 0 {
			continue
		}

		n, err := master.Read(buf)
		if n > 0 {
			p.read.Add(uint64(n))
			p.deliver(buf[:n])
		}
		switch {
		case err == nil:
		case errors.Is(err, syscall.EINTR), errors.Is(err, syscall.EAGAIN):
		case errors.Is(err, syscall.EBADF), errors.Is(err, os.ErrClosed), errors.Is(err, io.EOF):
			p.logger.Debug("PTY read loop exiting")
			return
		default:
			p.logger.WithError(err).Warn("PTY read loop exiting")
			return
		}
	}
}

// deliver hands a copy of data to the input handler. A panicking handler is
// unregistered.
func (p *PTY) deliver(data []byte) {
	h := p.onInput.Load()
	if h == nil {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("PTY input handler panicked: %v", r)
			p.onInput.Store(nil)
		}
	}()
	(*h)(chunk)
}

// Stats returns a snapshot of the counters
func (p *PTY) Stats() Stats {
	return Stats{
		Queued:  p.out.Length(),
		Dropped: p.dropped.Load(),
		Written: p.written.Load(),
		Read:    p.read.Load(),
	}
}

// Close stops the loops, closes both ends and removes the symlink. Idempotent.
// The descriptors are closed only after the loops have stopped polling them.
func (p *PTY) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.cancel()

	done := make(chan struct{})
	groutine.Go(context.Background(), "pty-wait-close", func(context.Context) {
		p.wg.Wait()
		close(done)
	})
	timeout := time.Duration(p.poll)*time.Millisecond*3 + time.Second
	select {
	case <-done:
	case <-time.After(timeout):
		p.logger.WithField("tty", p.name).Errorf("PTY loops did not exit within %v", timeout)
	}

	var errs []error
	if err := p.master.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close PTY master: %w", err))
	}
	if err := p.slave.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close PTY slave: %w", err))
	}

	if p.symlink != "" {
		if err := os.Remove(p.symlink); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove symlink: %w", err))
		}
	}

	p.logger.WithField("tty", p.name).Debug("PTY closed")
	return errors.Join(errs...)
}
