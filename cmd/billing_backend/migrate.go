package main

import (
	"log/slog"

	"github.com/SscSPs/hotel_billing/internal/platform/config"
	"github.com/SscSPs/hotel_billing/pkg/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			applied, err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
			if err != nil {
				return err
			}
			if applied {
				logger.Info("Database migrations applied successfully.")
			} else {
				logger.Info("No new migrations to apply.")
			}
			return nil
		},
	}
}
