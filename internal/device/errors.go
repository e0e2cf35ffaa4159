package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
)

// ErrorKind classifies a link failure
type ErrorKind string

const (
	KindAdapterUnavailable ErrorKind = "adapter_unavailable"
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindTimeout            ErrorKind = "timeout"
	KindConnectFailed      ErrorKind = "connect_failed"
	KindLinkLost           ErrorKind = "link_lost"
	KindParseFailed        ErrorKind = "parse_failed"
	KindWriteFailed        ErrorKind = "write_failed"
	KindNotConnected       ErrorKind = "not_connected"
	KindDeviceNotFound     ErrorKind = "device_not_found"
	KindAlreadyActive      ErrorKind = "already_active"
)

// Error is the single error type crossing component boundaries.
// Cause, when present, is reachable through errors.Unwrap.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare Error values by Kind
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors, one per kind
var (
	ErrAdapterUnavailable = &Error{Kind: KindAdapterUnavailable}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrConnectFailed      = &Error{Kind: KindConnectFailed}
	ErrLinkLost           = &Error{Kind: KindLinkLost}
	ErrParseFailed        = &Error{Kind: KindParseFailed}
	ErrWriteFailed        = &Error{Kind: KindWriteFailed}
	ErrNotConnected       = &Error{Kind: KindNotConnected}
	ErrDeviceNotFound     = &Error{Kind: KindDeviceNotFound}
	ErrAlreadyActive      = &Error{Kind: KindAlreadyActive}

	// ErrCleanEnd is the LinkLost outcome of a peer closing the stream
	ErrCleanEnd = LinkLost(io.EOF)
)

// ConnectFailed wraps a dial failure
func ConnectFailed(cause error) error {
	return &Error{Kind: KindConnectFailed, Err: cause}
}

// LinkLost wraps the error that terminated a read loop. An io.EOF cause marks a clean end.
func LinkLost(cause error) error {
	if errors.Is(cause, io.EOF) {
		return &Error{Kind: KindLinkLost, Msg: "peer closed the stream", Err: io.EOF}
	}
	return &Error{Kind: KindLinkLost, Err: cause}
}

// WriteFailed wraps an outbound write failure
func WriteFailed(cause error) error {
	return &Error{Kind: KindWriteFailed, Err: cause}
}

// ParseFailed reports a frame that is not a decimal weight
func ParseFailed(text string, cause error) error {
	return &Error{Kind: KindParseFailed, Msg: fmt.Sprintf("%q", text), Err: cause}
}

// IsKind reports whether err carries the given kind anywhere in its chain
func IsKind(err error, kind ErrorKind) bool {
	var derr *Error
	for err != nil {
		if errors.As(err, &derr) {
			if derr.Kind == kind {
				return true
			}
			err = derr.Err
			continue
		}
		return false
	}
	return false
}

// IsCleanEnd reports whether err is a LinkLost caused by end-of-stream
func IsCleanEnd(err error) bool {
	return errors.Is(err, ErrLinkLost) && errors.Is(err, io.EOF)
}

// NormalizeError maps platform error strings and errno values into the taxonomy.
// Errors already carrying a kind are returned unchanged; the original error is kept
// in the chain so callers can still inspect it.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	var derr *Error
	if errors.As(err, &derr) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, syscall.ETIMEDOUT):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return &Error{Kind: KindPermissionDenied, Err: err}
	case errors.Is(err, syscall.ENODEV):
		return &Error{Kind: KindAdapterUnavailable, Err: err}
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "org.freedesktop.DBus.Error.AccessDenied"),
		containsIgnoreCase(msg, "org.bluez.Error.NotAuthorized"),
		containsIgnoreCase(msg, "permission denied"):
		return &Error{Kind: KindPermissionDenied, Err: err}
	case containsIgnoreCase(msg, "org.bluez.Error.NotReady"),
		containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "is Bluetooth turned on?"),
		containsIgnoreCase(msg, "no bluetooth adapter"):
		return &Error{Kind: KindAdapterUnavailable, Err: err}
	case containsIgnoreCase(msg, "timeout"), containsIgnoreCase(msg, "timed out"):
		return &Error{Kind: KindTimeout, Err: err}
	default:
		return err
	}
}

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
