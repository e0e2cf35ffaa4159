package main

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/supervisor"
	"github.com/srg/scalelink/pkg/config"
	"golang.org/x/time/rate"
)

// DefaultReconnectInterval paces watch --reconnect attempts
const DefaultReconnectInterval = 5 * time.Second

type targetFlags struct {
	name       string
	address    string
	terminator string
	enable     bool
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Device name to connect to (default from config, BT)")
	cmd.Flags().StringVarP(&f.address, "address", "a", "", "Device address to connect to")
	cmd.Flags().StringVarP(&f.terminator, "terminator", "t", "", `Frame terminator, e.g. '\n' (default: one reading per read)`)
	cmd.Flags().BoolVar(&f.enable, "enable", true, "Ask the system to power the adapter on when it is off")
}

// apply overrides config values with the flags the user set
func (f *targetFlags) apply(cmd *cobra.Command) func(*config.Config) error {
	return func(cfg *config.Config) error {
		if cmd.Flags().Changed("name") {
			cfg.Target.Name = f.name
		}
		if cmd.Flags().Changed("address") {
			cfg.Target.Address = f.address
		}
		if cmd.Flags().Changed("terminator") {
			cfg.Frame.Terminator = f.terminator
		}
		if cmd.Flags().Changed("enable") {
			cfg.Target.RequestEnable = f.enable
		}
		return nil
	}
}

type watchOptions struct {
	target            targetFlags
	reconnect         bool
	reconnectInterval time.Duration
	send              string
	showRejected      bool
}

func newWatchCmd() *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to the scale and print weight readings",
		Long: `Connect to the scale and print every reading as "Weight: <value>".

The target is looked up among bonded devices first, then by scanning. Without
--reconnect the command ends when the link goes down.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, opts, nil)
		},
	}
	opts.target.register(cmd)
	cmd.Flags().BoolVarP(&opts.reconnect, "reconnect", "r", false, "Reconnect after the link goes down")
	cmd.Flags().DurationVar(&opts.reconnectInterval, "reconnect-interval", DefaultReconnectInterval, "Minimum time between reconnect attempts")
	cmd.Flags().StringVarP(&opts.send, "send", "s", "", `Payload to send once connected, e.g. 'T\r\n'`)
	cmd.Flags().BoolVar(&opts.showRejected, "show-rejected", false, "Print frames that are not weights")
	return cmd
}

// attachFunc hooks extra consumers onto a running supervisor. The returned
// observer sees every event after it is rendered; cleanup runs on exit.
type attachFunc func(env *cmdEnv, sup *supervisor.Supervisor) (observer func(supervisor.Event), cleanup func(), err error)

func runWatch(cmd *cobra.Command, opts *watchOptions, attach attachFunc) error {
	env, err := setupEnv(cmd, opts.target.apply(cmd))
	if err != nil {
		return err
	}
	defer env.Close()

	supOpts, err := env.cfg.SupervisorOptions()
	if err != nil {
		return err
	}

	sup := supervisor.New(env.backend.Adapter, env.backend.Dialer, supOpts, env.logger)
	defer sup.Close()

	observe := func(supervisor.Event) {}
	if attach != nil {
		observer, cleanup, err := attach(env, sup)
		if err != nil {
			return err
		}
		defer cleanup()
		observe = observer
	}

	renderer := newEventRenderer(cmd.OutOrStdout(), opts.showRejected)

	ctx := cmd.Context()
	if err := sup.Start(ctx); err != nil {
		renderNotices(sup, renderer)
		return err
	}

	progress := NewProgressPrinter(cmd.ErrOrStderr(), "Waiting for "+targetName(env.cfg), func() string {
		return sup.State().String()
	}, supervisor.Connected.String())
	progress.Start()
	defer progress.Stop()

	limiter := rate.NewLimiter(rate.Every(opts.reconnectInterval), 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sup.Events():
			if !ok {
				return ctx.Err()
			}
			if ev.Type == supervisor.LinkUp || ev.Type == supervisor.LinkDown || ev.Type == supervisor.PermissionNeeded {
				progress.Stop()
			}
			renderer.render(ev)
			observe(ev)

			switch ev.Type {
			case supervisor.LinkUp:
				if opts.send != "" {
					// A failure is reported as a Notice event
					_ = sup.Send(decodePayload(opts.send))
				}
			case supervisor.PermissionNeeded:
				return ev.Reason
			case supervisor.LinkDown:
				if errors.Is(ev.Reason, supervisor.ErrStopped) {
					// Cancellation stops the supervisor too; report it the same way either branch wins
					return ctx.Err()
				}
				if !opts.reconnect {
					if device.IsCleanEnd(ev.Reason) {
						return nil
					}
					return ev.Reason
				}
				if err := restart(ctx, sup, limiter, env.logger); err != nil {
					return err
				}
			}
		}
	}
}

// renderNotices prints the notices already queued by a failed Start. The
// failure itself is returned to the caller.
func renderNotices(sup *supervisor.Supervisor, renderer *eventRenderer) {
	for {
		select {
		case ev, ok := <-sup.Events():
			if !ok {
				return
			}
			if ev.Type == supervisor.Notice {
				renderer.render(ev)
			}
		default:
			return
		}
	}
}

// restart waits for the limiter and starts a new connect cycle. A failed
// start is reported through the event stream, so only fatal errors return.
func restart(ctx context.Context, sup *supervisor.Supervisor, limiter *rate.Limiter, logger *logrus.Logger) error {
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	if err := sup.Reset(); err != nil {
		return err
	}
	logger.Info("Reconnecting...")
	if err := sup.Start(ctx); err != nil && (errors.Is(err, supervisor.ErrClosed) || errors.Is(err, device.ErrAlreadyActive)) {
		return err
	}
	return nil
}

func targetName(cfg *config.Config) string {
	if cfg.Target.Name != "" {
		return cfg.Target.Name
	}
	return cfg.Target.Address
}

// decodePayload interprets Go escapes such as \r\n; anything else is sent verbatim
func decodePayload(s string) []byte {
	return []byte(config.Unescape(s))
}
