package testutils

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/device"
)

// DefaultEventTimeout bounds how long tests wait for asynchronous outcomes
const DefaultEventTimeout = 2 * time.Second

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug logger
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// Scale returns the handle of the default target device
func Scale() device.Handle {
	return device.NewHandle("BT", "00:11:22:33:44:55", false)
}

// BondedScale returns Scale marked as bonded
func BondedScale() device.Handle {
	h := Scale()
	h.Bonded = true
	return h
}

// Other returns a handle that never matches the default target
func Other(address string) device.Handle {
	return device.NewHandle("Headset", address, false)
}
