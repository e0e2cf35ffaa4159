package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter shows "<prefix> (<phase> Ns)" on a terminal while a
// long operation runs. It prints nothing when w is not a terminal.
//
// A ProgressPrinter is single-use: Start once, Stop at least once.
type ProgressPrinter struct {
	w         io.Writer
	prefix    string
	phase     func() string
	stopPhase string
	enabled   bool

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewProgressPrinter creates a printer polling phase on every tick. The
// printer stops by itself once phase returns stopPhase.
func NewProgressPrinter(w io.Writer, prefix string, phase func() string, stopPhase string) *ProgressPrinter {
	f, ok := w.(*os.File)
	return &ProgressPrinter{
		w:         w,
		prefix:    prefix,
		phase:     phase,
		stopPhase: stopPhase,
		enabled:   ok && term.IsTerminal(int(f.Fd())),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins displaying progress updates in a background goroutine
func (p *ProgressPrinter) Start() {
	if !p.enabled {
		close(p.done)
		return
	}

	start := time.Now()
	go func() {
		defer close(p.done)

		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()

		for {
			phase := p.phase()
			if phase == p.stopPhase {
				return
			}
			fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, phase, int(time.Since(start).Seconds()))

			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the display and clears the line. Safe to call more than once.
func (p *ProgressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		<-p.done
		if p.enabled {
			fmt.Fprint(p.w, clearLineSequence)
		}
	})
}
