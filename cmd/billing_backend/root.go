package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "billing_backend",
		Short:         "Hotel billing and payment reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(logger),
		newMigrateCmd(logger),
		newSweepOverdueCmd(logger),
	)
	return root
}
