package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/okvist/equipstats/internal/config"
	"github.com/okvist/equipstats/internal/core"
	"github.com/okvist/equipstats/internal/logging"
	"github.com/okvist/equipstats/internal/metrics"
	"github.com/okvist/equipstats/internal/store"
	"github.com/okvist/equipstats/internal/web"
)

func main() {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"db_driver", cfg.Database.Driver,
		"retention_max", cfg.Retention.MaxDatasets,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open dataset store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	service := core.NewService(st, core.ServiceOptions{
		RetentionMax: cfg.Retention.MaxDatasets,
		Observer:     m,
	})

	server := web.NewServer(service, cfg, reg, m)

	// Periodic retention sweep; upload-time pruning covers the common
	// case, the sweep catches datasets left behind by failed prunes.
	var sweeper *cron.Cron
	if cfg.Retention.MaxDatasets > 0 && cfg.Retention.SweepSchedule != "" {
		sweeper = cron.New()
		_, err := sweeper.AddFunc(cfg.Retention.SweepSchedule, func() {
			if err := service.PruneRetention(ctx); err != nil {
				slog.Warn("retention sweep failed", "error", err)
			}
		})
		if err != nil {
			slog.Error("invalid retention sweep schedule", "schedule", cfg.Retention.SweepSchedule, "error", err)
			os.Exit(1)
		}
		sweeper.Start()
		slog.Info("retention sweep scheduled", "schedule", cfg.Retention.SweepSchedule)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		if sweeper != nil {
			sweeper.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// openStore opens the configured dataset store and returns it with its
// cleanup function.
func openStore(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		poolCfg.MaxConns = int32(cfg.Database.MaxConns)
		poolCfg.MinConns = int32(cfg.Database.MinConns)

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}

		st := store.NewPostgres(pool)
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("connected to postgres store")
		return st, pool.Close, nil

	default:
		st, err := store.OpenSQLite(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("opened sqlite store", "path", cfg.Database.Path)
		return st, func() { st.Close() }, nil
	}
}
