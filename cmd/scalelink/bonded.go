package main

import (
	"github.com/spf13/cobra"
	"github.com/srg/scalelink/internal/discovery"
)

func newBondedCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "bonded",
		Short: "List bonded (paired) devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			env, err := setupEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer env.Close()

			bonded, err := discovery.New(env.backend.Adapter, env.logger).QueryBonded(cmd.Context())
			if err != nil {
				return err
			}
			return printHandles(cmd.OutOrStdout(), bonded, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json)")
	return cmd
}
