package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	portsrepo "github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/hotel_billing/internal/core/ports/services"
	"github.com/SscSPs/hotel_billing/internal/core/services"
	"github.com/SscSPs/hotel_billing/internal/platform/config"
	"github.com/SscSPs/hotel_billing/internal/platform/metrics"
	"github.com/SscSPs/hotel_billing/internal/repositories/database/pgsql"
	"github.com/SscSPs/hotel_billing/internal/repositories/idempotency"
	"github.com/SscSPs/hotel_billing/internal/repositories/memory"
	"github.com/SscSPs/hotel_billing/pkg/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const idempotencySweepEvery = time.Minute

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	services *portssvc.ServiceContainer
	registry *prometheus.Registry
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newIdempotencyStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (portsrepo.IdempotencyStore, error) {
	if cfg.RedisURL == "" {
		logger.Info("Using in-memory idempotency store")
		return idempotency.NewMemoryStore(idempotencySweepEvery), nil
	}
	store, err := idempotency.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Using redis idempotency store")
	return store, nil
}

// buildApp opens the configured store and wires the services. With
// runMigrations the Postgres schema is brought up to date first.
func buildApp(ctx context.Context, logger *slog.Logger, runMigrations bool) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	idem, err := newIdempotencyStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := idem.Close(); err != nil {
			logger.Error("Error closing idempotency store", slog.String("error", err.Error()))
		}
	})

	var repos portsrepo.RepositoryProvider
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("Using in-memory store; data is lost on restart")
		repos = memory.NewStore().Provider(idem)
	default:
		if runMigrations {
			applied, err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
			if err != nil {
				a.Close()
				return nil, err
			}
			logger.Info("Database migrations checked", slog.Bool("applied", applied))
		}
		pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		a.closers = append(a.closers, func() { database.ClosePgxPool(pool) })
		repos = pgsql.NewRepositoryProvider(pool, idem)
	}

	a.services, err = services.NewServiceContainer(cfg, repos, metrics.NewBillingMetrics(a.registry))
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.services.Currency.InitializeStaticData(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize static data: %w", err)
	}
	return a, nil
}
