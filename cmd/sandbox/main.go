// Package main is the entrypoint for the pilotwatch sandbox gateway, a local
// stand-in for the Amazon Pilot API used for demos and end-to-end tests.
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

	"github.com/kiranshivaraju/pilotwatch/internal/config"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/handler"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("sandbox failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Build the handler over a seeded in-memory store
	h, cleanup, err := buildHandler(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Sandbox.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("sandbox listening", "addr", addr)
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

	slog.Info("sandbox stopped gracefully")
	return nil
}

// buildHandler seeds the demo account and picks the rate-limit counter:
// Redis when REDIS_URL is set, process memory otherwise.
func buildHandler(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	ms := store.NewMemoryStore(store.MemoryOptions{})
	demo, err := sandbox.SeedDemo(ctx, ms)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("demo account seeded", "email", demo.Email, "analysis_id", demo.AnalysisID)

	opts := sandbox.Options{}
	cleanup := func() {}

	if cfg.Redis.URL == "" {
		opts.Counter = store.NewMemoryCounter()
		return sandbox.NewHandler(ms, opts), cleanup, nil
	}

	counter, err := store.NewRedisCounter(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("create redis counter: %w", err)
	}
	if err := counter.Ping(ctx); err != nil {
		counter.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	opts.Counter = counter
	opts.Health = map[string]handler.Pinger{"cache": counter}
	cleanup = func() {
		if err := counter.Close(); err != nil {
			slog.Warn("closing redis counter", "error", err)
		}
	}
	return sandbox.NewHandler(ms, opts), cleanup, nil
}
