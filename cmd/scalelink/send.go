package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/supervisor"
)

type sendOptions struct {
	target  targetFlags
	timeout time.Duration
}

func newSendCmd() *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send <payload>",
		Short: "Connect, send one payload and disconnect",
		Long: `Connect to the scale, write the payload once and wait for the write to complete.

Go escapes are interpreted, so 'T\r\n' sends T followed by CR LF.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, opts, decodePayload(args[0]))
		},
	}
	opts.target.register(cmd)
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "Give up if the payload is not sent within this time")
	return cmd
}

func runSend(cmd *cobra.Command, opts *sendOptions, payload []byte) error {
	env, err := setupEnv(cmd, opts.target.apply(cmd))
	if err != nil {
		return err
	}
	defer env.Close()

	supOpts, err := env.cfg.SupervisorOptions()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	sup := supervisor.New(env.backend.Adapter, env.backend.Dialer, supOpts, env.logger)
	defer sup.Close()

	renderer := newEventRenderer(cmd.OutOrStdout(), false)
	if err := sup.Start(ctx); err != nil {
		renderNotices(sup, renderer)
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return sendCanceled(ctx, opts.timeout)
		case ev, ok := <-sup.Events():
			if !ok {
				return ErrConnectionLost
			}
			switch ev.Type {
			case supervisor.LinkUp:
				renderer.render(ev)
				if err := sup.Send(payload); err != nil {
					return err
				}
			case supervisor.Notice:
				renderer.render(ev)
			case supervisor.Sent:
				renderer.render(ev)
				sup.Stop()
				return nil
			case supervisor.LinkDown, supervisor.PermissionNeeded:
				renderer.render(ev)
				if errors.Is(ev.Reason, supervisor.ErrStopped) && ctx.Err() != nil {
					return sendCanceled(ctx, opts.timeout)
				}
				if ev.Reason == nil || device.IsCleanEnd(ev.Reason) {
					return ErrConnectionLost
				}
				return ev.Reason
			}
		}
	}
}

func sendCanceled(ctx context.Context, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &device.Error{Kind: device.KindTimeout, Msg: "payload not sent within " + timeout.String()}
	}
	return ctx.Err()
}
