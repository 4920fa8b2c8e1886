package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/handler"
	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/JonMunkholm/geoimport/internal/observability"
	"github.com/JonMunkholm/geoimport/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

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
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	shutdownTracing, err := observability.Setup(ctx, observability.TracingConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
		Version:     version,
		SampleRatio: cfg.Tracing.SampleRatio,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	b, err := build(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer b.close()

	registry := core.NewRegistry(handler.Fallback())
	priorities, err := loadPriorities(cfg.Handlers.PriorityFile)
	if err != nil {
		slog.Error("failed to load handler priorities", "error", err)
		os.Exit(1)
	}
	handler.Register(registry, handler.Deps{
		Assets:    core.NewAssetStore(b.repo, b.locker),
		Repo:      b.repo,
		Resources: b.resources,
		Runner:    b.runner,
		Files:     b.files,
		Registry:  registry,
	}, cfg.Handlers.InlineStyleSubtypes)
	if unknown := registry.ApplyPriorities(priorities); len(unknown) > 0 {
		slog.Warn("priority file names unknown handlers", "ids", unknown)
	}

	for _, d := range registry.Descriptors() {
		slog.Debug("handler registered", "id", d.ID, "type", d.Type, "actions", d.Actions)
	}
	slog.Info("handlers registered", "count", registry.Count())

	limiter := core.NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	orchestrator := core.NewOrchestrator(registry, limiter, core.WithImportStore(b.imports))

	server := web.NewServer(web.Deps{
		Orchestrator: orchestrator,
		Registry:     registry,
		Files:        b.files,
		Catalog:      b.catalog,
	}, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := orchestrator.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := orchestrator.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr(), "version", version)
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// loadPriorities reads the optional priority override file.
func loadPriorities(path string) (map[string]int, error) {
	if path == "" {
		return nil, nil
	}
	priorities, err := config.LoadHandlerPriorities(path)
	if err != nil {
		return nil, err
	}
	slog.Info("handler priorities loaded", "file", path, "entries", len(priorities))
	return priorities, nil
}
