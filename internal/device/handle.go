package device

import (
	"fmt"
	"sort"
	"strings"
)

// Handle identifies a discoverable peer. Address is the unique key.
type Handle struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Bonded  bool   `json:"bonded"`
}

// NewHandle builds a Handle with a normalized address
func NewHandle(name, address string, bonded bool) Handle {
	return Handle{
		Name:    strings.TrimSpace(name),
		Address: NormalizeAddress(address),
		Bonded:  bonded,
	}
}

// NormalizeAddress upper-cases an address and uses ':' as separator
func NormalizeAddress(address string) string {
	a := strings.ToUpper(strings.TrimSpace(address))
	return strings.ReplaceAll(a, "-", ":")
}

// Matches reports an exact name match
func (h Handle) Matches(name string) bool {
	return h.Name == name
}

// DisplayName falls back to the address for unnamed devices
func (h Handle) DisplayName() string {
	if h.Name == "" {
		return h.Address
	}
	return h.Name
}

func (h Handle) String() string {
	if h.Name == "" {
		return h.Address
	}
	return fmt.Sprintf("%s (%s)", h.Name, h.Address)
}

// SortHandles orders handles by address, then name
func SortHandles(handles []Handle) {
	sort.SliceStable(handles, func(i, j int) bool {
		if handles[i].Address != handles[j].Address {
			return handles[i].Address < handles[j].Address
		}
		return handles[i].Name < handles[j].Name
	})
}

// FirstMatch returns the first handle, in slice order, whose name matches
func FirstMatch(handles []Handle, name string) (Handle, bool) {
	for _, h := range handles {
		if h.Matches(name) {
			return h, true
		}
	}
	return Handle{}, false
}
