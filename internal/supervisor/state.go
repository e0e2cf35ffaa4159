package supervisor

import (
	"github.com/srg/scalelink/internal/device"
)

// State is the connection lifecycle state
type State int

const (
	Idle State = iota
	Discovering
	Connecting
	Connected
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Discovering:
		return "discovering"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a connect cycle
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}

// Active reports whether a connect cycle or link is running
func (s State) Active() bool {
	return s == Discovering || s == Connecting || s == Connected
}

// Status is a snapshot of the supervisor
type Status struct {
	State   State
	Reason  error
	Device  device.Handle
	Session string
}
