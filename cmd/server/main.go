// Package main is the entrypoint for the DebateLens API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mavalente92/debatelens/internal/ai/openrouter"
	"github.com/mavalente92/debatelens/internal/analysis"
	"github.com/mavalente92/debatelens/internal/api"
	"github.com/mavalente92/debatelens/internal/api/handler"
	mw "github.com/mavalente92/debatelens/internal/api/middleware"
	"github.com/mavalente92/debatelens/internal/cache"
	"github.com/mavalente92/debatelens/internal/cleanup"
	"github.com/mavalente92/debatelens/internal/config"
	"github.com/mavalente92/debatelens/internal/pipeline"
	"github.com/mavalente92/debatelens/internal/store"
	"github.com/mavalente92/debatelens/internal/transcribe"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"model", cfg.OpenRouter.DefaultModel,
		"whisper_model", cfg.Whisper.Model)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureDirs(cfg.Files.UploadDir, cfg.Files.TempDir); err != nil {
		return err
	}

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Build the processing pipeline
	pgStore := store.NewPostgresStore(pool)
	client := openrouter.NewClient(cfg.OpenRouter)
	orchestrator := analysis.NewOrchestrator(client,
		cfg.OpenRouter.DefaultModel, cfg.OpenRouter.FallbackModel, logger)
	transcriber := transcribe.NewService(cfg.Whisper.Python, cfg.Whisper.Model,
		cfg.Files.TempDir, logger)
	runner := pipeline.NewRunner(pgStore, redisCache, orchestrator, transcriber,
		cfg.Whisper.DefaultLanguage, logger)

	// 6. Background cleanup of expired analyses and temp artifacts
	sweeper := cleanup.NewSweeper(pgStore, cfg.Files.TempDir,
		cfg.Cleanup.Interval, cfg.Cleanup.MaxAge, logger)
	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweeper.Run(sweeperCtx)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin),

		HealthHandler: handler.NewHealthHandler(pgStore, redisCache, version),

		TextAnalysisHandler:   handler.NewTextAnalysisHandler(runner),
		URLAnalysisHandler:    handler.NewURLAnalysisHandler(runner),
		UploadAnalysisHandler: handler.NewUploadAnalysisHandler(runner, cfg.Files.UploadDir, cfg.Files.MaxUploadBytes),

		GetAnalysisHandler:    handler.NewGetAnalysisHandler(pgStore),
		AnalysisStatusHandler: handler.NewAnalysisStatusHandler(pgStore, redisCache),
		GetTranscriptHandler:  handler.NewGetTranscriptHandler(pgStore),
		ListAnalysesHandler:   handler.NewListAnalysesHandler(pgStore),
		DeleteAnalysisHandler: handler.NewDeleteAnalysisHandler(pgStore, redisCache),
		RegenerateHandler:     handler.NewRegenerateHandler(runner),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Stop the sweeper and let in-flight analyses reach a terminal status.
	stopSweeper()
	slog.Info("waiting for in-flight analyses")
	runner.Wait()

	slog.Info("server stopped gracefully")
	return nil
}

func ensureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
