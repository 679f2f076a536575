package main

import (
	"log/slog"
	"os"
)

// @title Hotel Billing API
// @version 1.0
// @description Multi-currency invoicing and payment reconciliation.

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error("Command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
