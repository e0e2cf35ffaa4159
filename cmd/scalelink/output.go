package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/supervisor"
)

var validFormats = []string{"table", "json"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("invalid format '%s': must be one of %v", format, validFormats)
}

// printHandles renders handles in the given order
func printHandles(w io.Writer, handles []device.Handle, format string) error {
	if format == "json" {
		if handles == nil {
			handles = []device.Handle{}
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(handles)
	}

	if len(handles) == 0 {
		_, err := fmt.Fprintln(w, "No devices discovered")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tBONDED")
	for _, h := range handles {
		name := h.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		if name == "" {
			name = "-"
		}
		bonded := "no"
		if h.Bonded {
			bonded = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, h.Address, bonded)
	}
	return tw.Flush()
}

// eventRenderer prints supervisor events, one line each
type eventRenderer struct {
	w       io.Writer
	weight  *color.Color
	good    *color.Color
	bad     *color.Color
	muted   *color.Color
	verbose bool // print rejected frames
}

func newEventRenderer(w io.Writer, verbose bool) *eventRenderer {
	return &eventRenderer{
		w:       w,
		weight:  color.New(color.FgGreen, color.Bold),
		good:    color.New(color.FgCyan),
		bad:     color.New(color.FgRed),
		muted:   color.New(color.Faint),
		verbose: verbose,
	}
}

func (r *eventRenderer) render(ev supervisor.Event) {
	switch ev.Type {
	case supervisor.WeightReceived:
		r.weight.Fprintf(r.w, "Weight: %s\n", ev.Text)
	case supervisor.Sent, supervisor.LinkUp:
		r.good.Fprintln(r.w, ev.String())
	case supervisor.Notice:
		if ev.Reason == nil {
			r.good.Fprintln(r.w, ev.String())
			return
		}
		r.bad.Fprintln(r.w, ev.String())
	case supervisor.FrameRejected:
		if r.verbose {
			r.muted.Fprintln(r.w, ev.String())
		}
	case supervisor.LinkDown:
		if device.IsCleanEnd(ev.Reason) || errors.Is(ev.Reason, supervisor.ErrStopped) {
			fmt.Fprintln(r.w, ev.Text)
			return
		}
		r.bad.Fprintln(r.w, ev.String())
	default:
		r.bad.Fprintln(r.w, ev.String())
	}
}
