package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/scalelink/internal/bridge"
	"github.com/srg/scalelink/internal/ptyio"
	"github.com/srg/scalelink/internal/supervisor"
)

// terminal is a bridge.Terminal the command owns
type terminal interface {
	bridge.Terminal
	io.Closer
}

// openTerminal creates the pty (can be overridden in tests)
var openTerminal = func(opts ptyio.Options) (terminal, error) {
	return ptyio.Open(opts)
}

type bridgeOptions struct {
	watch   watchOptions
	symlink string
}

func newBridgeCmd() *cobra.Command {
	opts := &bridgeOptions{}
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Expose the scale as a pseudo-terminal",
		Long: `Creates a pseudo-terminal (e.g. /dev/pts/3) for applications that expect a
serial scale. Every reading is written to the terminal as one line and
anything written to the terminal is sent to the scale.

The bridge reconnects after the link goes down unless --reconnect=false.

Example:
  scalelink bridge --symlink /tmp/scale`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, &opts.watch, attachBridge(cmd, opts))
		},
	}
	opts.watch.target.register(cmd)
	cmd.Flags().BoolVarP(&opts.watch.reconnect, "reconnect", "r", true, "Reconnect after the link goes down")
	cmd.Flags().DurationVar(&opts.watch.reconnectInterval, "reconnect-interval", DefaultReconnectInterval, "Minimum time between reconnect attempts")
	cmd.Flags().BoolVar(&opts.watch.showRejected, "show-rejected", false, "Print and mirror frames that are not weights")
	cmd.Flags().StringVar(&opts.symlink, "symlink", "", "Create a symlink to the PTY device (e.g., /tmp/scale)")
	return cmd
}

func attachBridge(cmd *cobra.Command, opts *bridgeOptions) attachFunc {
	return func(env *cmdEnv, sup *supervisor.Supervisor) (func(supervisor.Event), func(), error) {
		ptyOpts := env.cfg.PTYOptions(env.logger)
		if cmd.Flags().Changed("symlink") {
			ptyOpts.Symlink = opts.symlink
		}
		term, err := openTerminal(ptyOpts)
		if err != nil {
			return nil, nil, err
		}

		bridgeOpts := env.cfg.BridgeOptions()
		bridgeOpts.Rejected = opts.watch.showRejected
		b := bridge.New(term, sup, bridgeOpts, env.logger)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Bridge ready: %s\n", b.TTYName())
		if ptyOpts.Symlink != "" {
			fmt.Fprintf(out, "Symlink: %s -> %s\n", ptyOpts.Symlink, b.TTYName())
		}

		cleanup := func() {
			b.Close()
			if err := term.Close(); err != nil {
				env.logger.WithError(err).Warn("Failed to close PTY")
			}
			st := b.Stats()
			env.logger.WithFields(logrus.Fields{
				"readings":      st.Readings,
				"forwarded":     st.Forwarded,
				"dropped_input": st.DroppedInput,
			}).Info("Bridge closed")
		}
		return b.Forward, cleanup, nil
	}
}
