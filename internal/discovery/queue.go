package discovery

import (
	"context"
	"sync"

	"github.com/srg/scalelink/internal/device"
)

// queue is an unbounded FIFO between the platform scan callback and the
// consumer stream. push never blocks the platform callback.
type queue struct {
	mu       sync.Mutex
	items    []device.Handle
	finished bool
	notify   chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(h device.Handle) {
	q.mu.Lock()
	q.items = append(q.items, h)
	q.mu.Unlock()
	q.signal()
}

// finish marks the end of input; pop drains what is left, then reports false
func (q *queue) finish() {
	q.mu.Lock()
	q.finished = true
	q.mu.Unlock()
	q.signal()
}

func (q *queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop waits for the next item. Returns false once the queue is finished and
// empty, or ctx is done.
func (q *queue) pop(ctx context.Context) (device.Handle, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			h := q.items[0]
			q.items[0] = device.Handle{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return h, true
		}
		finished := q.finished
		q.mu.Unlock()

		if finished {
			return device.Handle{}, false
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return device.Handle{}, false
		}
	}
}
