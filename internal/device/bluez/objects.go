package bluez

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/srg/scalelink/internal/device"
)

const (
	busName = "org.bluez"

	adapterInterface        = "org.bluez.Adapter1"
	deviceInterface         = "org.bluez.Device1"
	profileInterface        = "org.bluez.Profile1"
	profileManagerInterface = "org.bluez.ProfileManager1"
	objectManagerInterface  = "org.freedesktop.DBus.ObjectManager"
	propertiesInterface     = "org.freedesktop.DBus.Properties"

	profileManagerPath = dbus.ObjectPath("/org/bluez")
)

// managedObjects is the reply shape of ObjectManager.GetManagedObjects
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// adapterPath returns the object path of a named adapter, e.g. hci0
func adapterPath(name string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + name)
}

// devicePath formats the Device1 object path for address under adapter
func devicePath(adapter dbus.ObjectPath, address string) dbus.ObjectPath {
	addr := strings.ReplaceAll(device.NormalizeAddress(address), ":", "_")
	return dbus.ObjectPath(fmt.Sprintf("%s/dev_%s", adapter, addr))
}

// addressFromPath extracts the address from a Device1 object path
func addressFromPath(path dbus.ObjectPath) (string, bool) {
	s := string(path)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return "", false
	}
	addr := strings.ReplaceAll(s[i+len("/dev_"):], "_", ":")
	if len(addr) != len("00:00:00:00:00:00") {
		return "", false
	}
	return device.NormalizeAddress(addr), true
}

// underAdapter reports whether path is a direct device child of adapter
func underAdapter(adapter, path dbus.ObjectPath) bool {
	prefix := string(adapter) + "/dev_"
	return strings.HasPrefix(string(path), prefix) && !strings.Contains(string(path)[len(prefix):], "/")
}

// handleFromProperties builds a Handle from Device1 properties
func handleFromProperties(path dbus.ObjectPath, props map[string]dbus.Variant) (device.Handle, bool) {
	address, ok := stringProp(props, "Address")
	if !ok {
		if address, ok = addressFromPath(path); !ok {
			return device.Handle{}, false
		}
	}
	name, ok := stringProp(props, "Name")
	if !ok {
		name, _ = stringProp(props, "Alias")
	}
	return device.NewHandle(name, address, isBonded(props)), true
}

func isBonded(props map[string]dbus.Variant) bool {
	paired, _ := boolProp(props, "Paired")
	bonded, _ := boolProp(props, "Bonded")
	return paired || bonded
}

// bondedDevices lists the paired devices of adapter
func bondedDevices(objects managedObjects, adapter dbus.ObjectPath) []device.Handle {
	var out []device.Handle
	for path, ifaces := range objects {
		props, ok := ifaces[deviceInterface]
		if !ok || !underAdapter(adapter, path) || !isBonded(props) {
			continue
		}
		if h, ok := handleFromProperties(path, props); ok {
			out = append(out, h)
		}
	}
	device.SortHandles(out)
	return out
}

// knownDevices lists every device object of adapter
func knownDevices(objects managedObjects, adapter dbus.ObjectPath) []device.Handle {
	var out []device.Handle
	for path, ifaces := range objects {
		props, ok := ifaces[deviceInterface]
		if !ok || !underAdapter(adapter, path) {
			continue
		}
		if h, ok := handleFromProperties(path, props); ok {
			out = append(out, h)
		}
	}
	device.SortHandles(out)
	return out
}

func stringProp(props map[string]dbus.Variant, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func boolProp(props map[string]dbus.Variant, key string) (bool, bool) {
	v, ok := props[key]
	if !ok {
		return false, false
	}
	b, ok := v.Value().(bool)
	return b, ok
}
