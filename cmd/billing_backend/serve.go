package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SscSPs/hotel_billing/internal/dto"
	"github.com/SscSPs/hotel_billing/internal/handlers"
	"github.com/SscSPs/hotel_billing/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(logger *slog.Logger) *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, logger, !skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on startup")
	return cmd
}

func newRouter(a *app, logger *slog.Logger) (*gin.Engine, error) {
	if a.cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AddAllowHeaders("Authorization", dto.IdempotencyKeyHeader)
	r.Use(cors.New(corsCfg))

	if a.cfg.RateLimit != "" {
		l, err := middleware.NewRateLimiter(a.cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		r.Use(middleware.RateLimit(l))
	}

	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	handlers.RegisterRoutes(r, a.cfg, a.services, a.registry)
	return r, nil
}

func serve(ctx context.Context, logger *slog.Logger, runMigrations bool) error {
	a, err := buildApp(ctx, logger, runMigrations)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := newRouter(a, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", slog.String("port", a.cfg.Port), slog.String("store", a.cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
