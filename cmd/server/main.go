package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/coursehub/internal/config"
	"github.com/JonMunkholm/coursehub/internal/core"
	"github.com/JonMunkholm/coursehub/internal/logging"
	"github.com/JonMunkholm/coursehub/internal/store"
	"github.com/JonMunkholm/coursehub/internal/telemetry"
	"github.com/JonMunkholm/coursehub/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"sync_max_concurrent", cfg.Sync.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"require_auth", cfg.Security.RequireAuth,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	courses := store.New(pool)
	if err := courses.Migrate(ctx); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	provider, err := telemetry.NewProvider(cfg.Metrics.Enabled)
	if err != nil {
		slog.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	metrics, err := telemetry.NewSyncMetrics(provider.MeterProvider)
	if err != nil {
		slog.Error("failed to create sync metrics", "error", err)
		os.Exit(1)
	}

	syncs := core.NewSyncService(
		store.NewCourseService(courses),
		core.NewSyncLimiter(cfg.Sync.MaxConcurrent, cfg.Sync.MaxWait),
		metrics,
	)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = provider.Handler()
	}
	server := web.NewServer(cfg, courses, syncs, metricsHandler)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Close the listener first; progress streams end as their jobs do
		serverErr := make(chan error, 1)
		go func() { serverErr <- server.Shutdown(shutdownCtx) }()

		// Running syncs stop between items and keep their partial result
		active := syncs.LimiterStatus().Active
		syncs.Close()
		if active > 0 {
			slog.Info("cancelling active syncs", "active", active)
		}
		if err := syncs.WaitForJobs(shutdownCtx); err != nil {
			slog.Warn("syncs did not stop in time", "error", err)
		}

		if err := <-serverErr; err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
