package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/tabular/internal/config"
	"github.com/JonMunkholm/tabular/internal/core"
	_ "github.com/JonMunkholm/tabular/internal/core/schemas" // Register built-in schemas
	"github.com/JonMunkholm/tabular/internal/logging"
	"github.com/JonMunkholm/tabular/internal/metrics"
	"github.com/JonMunkholm/tabular/internal/metrics/datadog"
	"github.com/JonMunkholm/tabular/internal/web"
	"github.com/joho/godotenv"
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
		"ingest_max_concurrent", cfg.Ingest.MaxConcurrent,
		"ingest_max_file_size", cfg.Ingest.MaxFileSize,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"datadog_enabled", cfg.Metrics.DatadogEnabled,
	)

	if cfg.Ingest.SchemaFile != "" {
		if err := loadSchemaFile(cfg.Ingest.SchemaFile); err != nil {
			slog.Error("failed to load schema file", "path", cfg.Ingest.SchemaFile, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("schemas registered", "count", core.SchemaCount())

	ctx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	backend, closeMetrics, err := newMetricsBackend(context.Background(), cfg.Metrics)
	if err != nil {
		slog.Error("failed to start metrics backend", "error", err)
		os.Exit(1)
	}

	service := core.NewService(serviceConfig(cfg), backend)
	server := web.NewServer(service, cfg)

	go service.StartJanitor(ctx, cfg.Ingest.JanitorInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for ingestions to complete", "active", status.Active)
			if err := service.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("ingestions did not complete in time", "error", err)
			} else {
				slog.Info("all ingestions completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
	}

	if err := closeMetrics(); err != nil {
		slog.Warn("final metrics flush failed", "error", err)
	}
	slog.Info("server stopped")
}

// serviceConfig maps the environment configuration onto the service.
func serviceConfig(cfg *config.Config) core.ServiceConfig {
	opts := core.DefaultOptions()
	opts.Header = core.HeaderOptions{
		SearchRows:     cfg.Ingest.HeaderSearchRows,
		MinColumns:     cfg.Ingest.MinHeaderColumns,
		FallbackPrefix: cfg.Ingest.FallbackPrefix,
	}
	opts.TypeThreshold = cfg.Ingest.TypeThreshold
	opts.KeepEmptyRows = cfg.Ingest.KeepEmptyRows
	opts.BlankLines = core.BlankLinesSkip
	if cfg.Ingest.GreedyBlankLines {
		opts.BlankLines = core.BlankLinesGreedy
	}

	return core.ServiceConfig{
		Options:       opts,
		MaxFileSize:   cfg.Ingest.MaxFileSize,
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
		MaxWait:       cfg.Ingest.MaxWaitTime,
		RetainFor:     cfg.Ingest.RetainFor,
		MaxRetained:   cfg.Ingest.MaxRetained,
	}
}

// newMetricsBackend returns the Datadog backend when enabled, otherwise a
// no-op. The returned close func flushes whatever is still buffered.
func newMetricsBackend(ctx context.Context, cfg config.MetricsConfig) (metrics.Backend, func() error, error) {
	if !cfg.DatadogEnabled {
		return metrics.Nop{}, func() error { return nil }, nil
	}

	backend, err := datadog.NewBackend(ctx, datadog.Options{
		JobName:    cfg.JobName,
		Tags:       cfg.Tags,
		FlushEvery: cfg.FlushInterval,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("datadog metrics enabled", "job", cfg.JobName, "flush_every", cfg.FlushInterval)
	return backend, backend.Close, nil
}

func loadSchemaFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := core.RegisterSchemasYAML(f)
	if err != nil {
		return err
	}
	slog.Info("loaded schema file", "path", path, "schemas", n)
	return nil
}
