package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/hotel_billing/internal/middleware"
	"github.com/spf13/cobra"
)

func newSweepOverdueCmd(logger *slog.Logger) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark every past-due unpaid invoice as overdue",
		Long:  "Intended to be run by an external scheduler. Each invoice is marked in its own transaction.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			asOf := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				asOf = parsed.UTC()
			}

			a, err := buildApp(cmd.Context(), logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.services.Invoice.SweepOverdue(cmd.Context(), asOf, middleware.SystemUserID)
			if err != nil {
				return err
			}
			logger.Info("Overdue sweep complete",
				slog.Time("as_of", summary.AsOf),
				slog.Int("checked", summary.Checked),
				slog.Any("marked", summary.Marked),
				slog.Any("failures", summary.Failures))
			if len(summary.Failures) > 0 {
				return fmt.Errorf("%d invoice(s) could not be marked overdue", len(summary.Failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate due dates as of this RFC3339 time (default now)")
	return cmd
}
