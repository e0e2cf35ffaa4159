// Package groutine starts named goroutines. Names are attached as pprof labels
// so the reader and connect loops are identifiable in goroutine dumps.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Handle joins a goroutine started with Go
type Handle struct {
	name string
	done chan struct{}
}

// Name returns the goroutine name
func (h *Handle) Name() string {
	return h.name
}

// Done is closed when the goroutine returns
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the goroutine returns or ctx is done
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go starts fn on a new goroutine labelled with name.
// If parentCtx is nil, context.Background() is used.
//
//	h := groutine.Go(ctx, "frame-reader", func(ctx context.Context) {
//	    // work
//	})
//	<-h.Done()
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) *Handle {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	h := &Handle{name: name, done: make(chan struct{})}
	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		defer close(h.done)
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})

	return h
}

// GetName retrieves the goroutine name from the context
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(goroutineNameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
