package main

import (
	"errors"
	"fmt"

	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/supervisor"
)

// ErrConnectionLost indicates the link ended before the command finished
var ErrConnectionLost = errors.New("connection lost")

// FormatUserError turns a device error into the message shown to the user
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var headline string
	switch {
	case errors.Is(err, device.ErrPermissionDenied):
		headline = supervisor.TextPermissionDenied
	case errors.Is(err, device.ErrAdapterUnavailable):
		headline = supervisor.TextAdapterUnavailable
	case errors.Is(err, device.ErrDeviceNotFound):
		headline = supervisor.TextDeviceNotFound
	case errors.Is(err, device.ErrTimeout):
		headline = "Connection timed out"
	case errors.Is(err, device.ErrConnectFailed):
		headline = supervisor.TextConnectFailed
	case errors.Is(err, device.ErrWriteFailed):
		headline = supervisor.TextSendFailed
	case errors.Is(err, device.ErrNotConnected):
		headline = "Not connected"
	default:
		return err.Error()
	}

	var derr *device.Error
	if !errors.As(err, &derr) {
		return headline
	}
	switch {
	case derr.Msg != "" && derr.Err != nil:
		return fmt.Sprintf("%s: %s: %v", headline, derr.Msg, derr.Err)
	case derr.Msg != "":
		return fmt.Sprintf("%s: %s", headline, derr.Msg)
	case derr.Err != nil:
		return fmt.Sprintf("%s: %v", headline, derr.Err)
	default:
		return headline
	}
}
