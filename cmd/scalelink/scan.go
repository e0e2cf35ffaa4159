package main

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/discovery"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type scanOptions struct {
	duration time.Duration
	format   string
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for nearby devices",
		Long: `Scan for nearby Bluetooth devices and list them in discovery order.

Each device is reported once per scan. Use the name shown here as target.name
in the config file or with watch --name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, opts)
		},
	}
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Scan duration (default from config, 10s)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format (table, json)")
	return cmd
}

func runScan(cmd *cobra.Command, opts *scanOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}

	env, err := setupEnv(cmd, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	duration := env.cfg.ScanTimeout
	if cmd.Flags().Changed("duration") {
		duration = opts.duration
	}

	ctx := cmd.Context()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	d := discovery.New(env.backend.Adapter, env.logger)
	stream, err := d.StartScan(ctx)
	if err != nil {
		return err
	}

	found := orderedmap.New[string, device.Handle]()
	var count atomic.Int64
	progress := NewProgressPrinter(cmd.ErrOrStderr(), "Scanning for devices", func() string {
		return "found " + strconv.FormatInt(count.Load(), 10)
	}, "")
	progress.Start()

	for h := range stream {
		found.Set(h.Address, h)
		count.Add(1)
	}
	progress.Stop()

	if err := d.Err(); err != nil {
		return err
	}

	// Ctrl+C ends the scan early; what was found is still printed
	handles := make([]device.Handle, 0, found.Len())
	for pair := found.Oldest(); pair != nil; pair = pair.Next() {
		handles = append(handles, pair.Value)
	}
	return printHandles(cmd.OutOrStdout(), handles, opts.format)
}
