package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scalelink",
		Short: "Bluetooth serial weighing scale bridge",
		Long: `Connects to a Bluetooth weighing scale over its serial profile and streams readings:

- Scan for nearby devices and list bonded ones
- Watch weight readings as they arrive, optionally reconnecting
- Send commands (e.g. tare) to the scale
- Bridge the scale to a pseudo-terminal for serial-port software

Backends: BlueZ (Linux classic Bluetooth), go-ble (BLE UART bridges) and
serial (bound /dev/rfcommN nodes).`,
		Version:       formatVersion(version),
		SilenceErrors: true, // main prints clean errors
	}
	root.SetVersionTemplate(fmt.Sprintf("scalelink %s (commit %s, built %s)\n", formatVersion(version), commit, date))

	root.PersistentFlags().String("config", "", "Config file (default ~/.config/scalelink/config.yaml)")
	root.PersistentFlags().String("backend", "", "Device backend (bluez, ble, serial)")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	// Add -v as a short flag for --version
	root.Flags().BoolP("version", "v", false, "Show version information")

	root.AddCommand(newScanCmd())
	root.AddCommand(newBondedCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newBridgeCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
