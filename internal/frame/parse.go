package frame

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/srg/scalelink/internal/device"
)

var (
	// ErrEmptyFrame is the cause for frames that are blank after trimming
	ErrEmptyFrame = errors.New("empty frame")
	// ErrNotDecimal is the cause for frames that are not plain decimal notation
	ErrNotDecimal = errors.New("not a decimal value")
	// ErrFrameTooLong is the cause for frames that overflowed the accumulator
	ErrFrameTooLong = errors.New("frame exceeds maximum length")
)

// Plain decimal notation only: no exponent, hex, Inf/NaN or digit separators.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// Trim removes surrounding whitespace and NUL padding
func Trim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == 0
	})
}

// ParseWeight interprets trimmed frame text as a decimal weight.
// Failures are ParseFailed errors.
func ParseWeight(text string) (float64, error) {
	t := Trim(text)
	if t == "" {
		return 0, device.ParseFailed(text, ErrEmptyFrame)
	}
	if !decimalPattern.MatchString(t) {
		return 0, device.ParseFailed(text, ErrNotDecimal)
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, device.ParseFailed(text, err)
	}
	return v, nil
}
