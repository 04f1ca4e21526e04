// Package main is the entrypoint for the imageforge API server.
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

	"github.com/joho/godotenv"
	"github.com/nordhagen/imageforge/internal/api"
	"github.com/nordhagen/imageforge/internal/api/handler"
	"github.com/nordhagen/imageforge/internal/config"
	"github.com/nordhagen/imageforge/internal/generation"
	"github.com/nordhagen/imageforge/internal/openai"
	"github.com/nordhagen/imageforge/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — .env first for local development, then fail fast on
	// anything invalid. A missing provider credential is deliberately not
	// fatal: the server still serves /health and rejects /generate.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"images_dir", cfg.Storage.ImagesDir,
		"api_key_configured", cfg.OpenAI.Configured(),
	)
	if !cfg.OpenAI.Configured() {
		slog.Warn("no OpenAI credential configured; /generate will fail until one is provided")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Create the job store
	fileStore, err := store.NewFileStore(cfg.Storage.ImagesDir)
	if err != nil {
		return fmt.Errorf("create job store: %w", err)
	}

	// 3. Create the upstream client and orchestrator
	client := openai.NewHTTPClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Timeout)
	svc := generation.NewService(client, fileStore)

	// 4. Build router with dependencies
	deps := api.Dependencies{
		HealthHandler:      handler.NewHealthHandler(cfg.OpenAI.Configured()),
		GenerateHandler:    handler.NewGenerateHandler(svc, cfg.OpenAI.Configured()),
		GetImageHandler:    handler.NewGetImageHandler(fileStore),
		DeleteImageHandler: handler.NewDeleteImageHandler(fileStore),
	}
	router := api.NewRouter(deps)

	// 5. Start HTTP server. WriteTimeout is generous because a generation
	// request is synchronous and bounded only by upstream latency times the
	// number of sequential calls.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
