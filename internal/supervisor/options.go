package supervisor

import (
	"time"

	"github.com/google/uuid"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/frame"
)

const (
	// DefaultTargetName is the advertised name of the scale
	DefaultTargetName = "BT"
	// DefaultEventBuffer is the event stream capacity
	DefaultEventBuffer = 256
)

// Options configures a Supervisor
type Options struct {
	TargetName     string           // exact device name to connect to
	TargetAddress  string           // optional exact address, checked in addition to the name
	ServiceID      device.ServiceID // service to open (uuid.Nil = serial port profile)
	ConnectTimeout time.Duration    // dial bound (0 = connector default)
	ScanTimeout    time.Duration    // discovery bound (0 = until stopped)
	PreferBonded   bool             // look for the target among bonded devices before scanning
	RequestEnable  bool             // ask the platform to power a disabled adapter on before failing
	Reader         frame.Options
	EventBuffer    int // event stream capacity (0 = DefaultEventBuffer)
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		TargetName:    DefaultTargetName,
		ServiceID:     device.SerialPortProfile,
		PreferBonded:  true,
		RequestEnable: true,
		EventBuffer:   DefaultEventBuffer,
	}
}

func (o Options) normalized() Options {
	if o.TargetName == "" && o.TargetAddress == "" {
		o.TargetName = DefaultTargetName
	}
	if o.TargetAddress != "" {
		o.TargetAddress = device.NormalizeAddress(o.TargetAddress)
	}
	if o.ServiceID == uuid.Nil {
		o.ServiceID = device.SerialPortProfile
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultEventBuffer
	}
	return o
}

// Matches reports whether h is the configured target
func (o Options) Matches(h device.Handle) bool {
	if o.TargetAddress != "" && device.NormalizeAddress(o.TargetAddress) != h.Address {
		return false
	}
	if o.TargetName != "" && !h.Matches(o.TargetName) {
		return false
	}
	return true
}
