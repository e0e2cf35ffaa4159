package testutils

import (
	"bytes"
	"io"
	"sync"
)

// PipeTransport is an in-memory io.ReadWriteCloser standing in for a device
// link. The test plays the device side: Feed delivers bytes to the reader,
// Hangup ends the stream cleanly and Fail ends it with an error. Close from
// the host side unblocks a pending Read, like a real socket.
type PipeTransport struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
	closeErr error
	closes   int
	closed   chan struct{}
}

// NewPipeTransport creates a connected transport
func NewPipeTransport() *PipeTransport {
	pr, pw := io.Pipe()
	return &PipeTransport{pr: pr, pw: pw, closed: make(chan struct{})}
}

func (p *PipeTransport) Read(b []byte) (int, error) {
	return p.pr.Read(b)
}

func (p *PipeTransport) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closes > 0 {
		return 0, io.ErrClosedPipe
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *PipeTransport) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closes++
	if p.closes == 1 {
		_ = p.pr.Close()
		close(p.closed)
	}
	return p.closeErr
}

// Feed delivers one chunk to the reader. It blocks until the chunk is read
// and returns io.ErrClosedPipe once the host side is closed.
func (p *PipeTransport) Feed(data string) error {
	_, err := p.pw.Write([]byte(data))
	return err
}

// Hangup makes the reader see end-of-stream
func (p *PipeTransport) Hangup() {
	_ = p.pw.Close()
}

// Fail makes the reader see err
func (p *PipeTransport) Fail(err error) {
	_ = p.pw.CloseWithError(err)
}

// FailWrites makes every later Write return err
func (p *PipeTransport) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// Written returns everything the host wrote
func (p *PipeTransport) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

// CloseCount returns how many times Close was called
func (p *PipeTransport) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// Closed is closed on the first Close
func (p *PipeTransport) Closed() <-chan struct{} {
	return p.closed
}
