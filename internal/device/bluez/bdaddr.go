package bluez

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/srg/scalelink/internal/device"
)

// parseBDAddr converts "AA:BB:CC:DD:EE:FF" into the little-endian byte order
// the kernel expects in a sockaddr_rc
func parseBDAddr(address string) ([6]uint8, error) {
	var out [6]uint8
	parts := strings.Split(device.NormalizeAddress(address), ":")
	if len(parts) != 6 {
		return out, fmt.Errorf("invalid bluetooth address %q", address)
	}
	for i, p := range parts {
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil || len(p) != 2 {
			return out, fmt.Errorf("invalid bluetooth address %q", address)
		}
		out[5-i] = uint8(b)
	}
	return out, nil
}
