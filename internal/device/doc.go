// Package device defines the core data model of the scale link: discovered
// device handles, the open Link to a peer, the error taxonomy shared by all
// components, and the platform boundary (Adapter, Dialer) that concrete
// Bluetooth backends implement.
//
// Backends live in sub-packages:
//   - bluez:  Linux classic Bluetooth over D-Bus with RFCOMM stream sockets
//   - goble:  BLE serial bridges (Nordic UART style) via go-ble
//   - serial: tty nodes such as /dev/rfcomm0
package device
