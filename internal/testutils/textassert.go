package testutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the part of testing.T the asserter needs
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// TranscriptOptions controls how CLI output is normalized before comparison
type TranscriptOptions struct {
	StripANSI                bool `default:"true"`
	IgnoreTrailingWhitespace bool `default:"true"`
	IgnoreEmptyLines         bool `default:"false"`
	TrimSpace                bool `default:"true"`
	ColorDiff                bool `default:"false"`
}

// TranscriptOption tweaks TranscriptOptions
type TranscriptOption func(*TranscriptOptions)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// AssertTranscript compares CLI output line by line and reports a unified diff
func AssertTranscript(t TestingT, actual, expected string, opts ...TranscriptOption) bool {
	t.Helper()

	o := TranscriptOptions{}
	defaults.SetDefaults(&o)
	for _, opt := range opts {
		opt(&o)
	}

	diff := TranscriptDiff(actual, expected, o)
	if diff == "" {
		return true
	}
	t.Errorf("CLI output mismatch - unified diff:\n%s", diff)
	return false
}

// TranscriptDiff returns "" when the normalized texts are equal
func TranscriptDiff(actual, expected string, o TranscriptOptions) string {
	a := normalizeTranscript(actual, o)
	e := normalizeTranscript(expected, o)
	if a == e {
		return ""
	}

	edits := myers.ComputeEdits("", e, a)
	unified := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", e, edits))
	if !o.ColorDiff {
		return unified
	}
	return colorizeDiff(unified)
}

func normalizeTranscript(text string, o TranscriptOptions) string {
	if o.StripANSI {
		text = ansiEscape.ReplaceAllString(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if o.TrimSpace {
		text = strings.TrimSpace(text)
	}

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if o.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t")
		}
		if o.IgnoreEmptyLines && line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n") + "\n"
}

func colorizeDiff(diff string) string {
	red := color.New(color.FgRed)
	red.EnableColor()
	green := color.New(color.FgGreen)
	green.EnableColor()
	cyan := color.New(color.FgCyan)
	cyan.EnableColor()

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
			lines[i] = cyan.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = red.Sprint(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = green.Sprint(line)
		}
	}
	return strings.Join(lines, "\n")
}

// WithANSI keeps color escapes in the comparison
func WithANSI() TranscriptOption {
	return func(o *TranscriptOptions) { o.StripANSI = false }
}

// WithIgnoreEmptyLines drops blank lines before comparing
func WithIgnoreEmptyLines() TranscriptOption {
	return func(o *TranscriptOptions) { o.IgnoreEmptyLines = true }
}

// WithColorDiff colors the reported diff
func WithColorDiff() TranscriptOption {
	return func(o *TranscriptOptions) { o.ColorDiff = true }
}
