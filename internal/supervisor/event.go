package supervisor

import (
	"fmt"
	"time"

	"github.com/srg/scalelink/internal/device"
)

// EventType tags an Event
type EventType int

const (
	// WeightReceived carries one parsed reading in Weight
	WeightReceived EventType = iota
	// Sent acknowledges a successful write of Bytes bytes
	Sent
	// LinkDown reports the end of a connect cycle; Reason says why
	LinkDown
	// PermissionNeeded reports missing access grants
	PermissionNeeded
	// FrameRejected reports a frame that did not parse; the link stays up
	FrameRejected
	// Notice is a user-facing message, e.g. a failed send
	Notice
	// LinkUp reports a newly connected link
	LinkUp
)

func (t EventType) String() string {
	switch t {
	case WeightReceived:
		return "weight"
	case Sent:
		return "sent"
	case LinkDown:
		return "link_down"
	case PermissionNeeded:
		return "permission_needed"
	case FrameRejected:
		return "frame_rejected"
	case Notice:
		return "notice"
	case LinkUp:
		return "link_up"
	default:
		return "unknown"
	}
}

// Event is one entry of the supervisor's event stream
type Event struct {
	Type    EventType
	Time    time.Time
	Session string
	Device  device.Handle

	Weight float64 // WeightReceived
	Text   string  // raw frame text, or the user-facing message
	Bytes  int     // Sent
	Reason error   // LinkDown, PermissionNeeded, FrameRejected, Notice
}

// User-facing texts
const (
	TextSent               = "Data Sent"
	TextSendFailed         = "Failed to send data"
	TextPermissionDenied   = "Bluetooth Permission Denied"
	TextAdapterUnavailable = "Bluetooth is not available or not enabled"
	TextEnabled            = "Bluetooth Enabled"
	TextNotEnabled         = "Bluetooth not Enabled"
	TextConnected          = "Connected"
	TextDisconnected       = "Disconnected"
	TextConnectFailed      = "Connection Failed"
	TextDeviceNotFound     = "Device not found"
)

func (e Event) String() string {
	switch e.Type {
	case WeightReceived:
		return fmt.Sprintf("Weight: %s", e.Text)
	case Sent:
		return fmt.Sprintf("%s (%d bytes)", TextSent, e.Bytes)
	case LinkDown, PermissionNeeded, Notice, FrameRejected:
		if e.Reason != nil {
			return fmt.Sprintf("%s: %v", e.Text, e.Reason)
		}
		return e.Text
	case LinkUp:
		return fmt.Sprintf("%s to %s", TextConnected, e.Device)
	default:
		return e.Type.String()
	}
}
