// Package main is the entrypoint for the SessionLens API server.
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

	"github.com/kiranshivaraju/sessionlens/internal/ai"
	"github.com/kiranshivaraju/sessionlens/internal/api"
	"github.com/kiranshivaraju/sessionlens/internal/api/handler"
	mw "github.com/kiranshivaraju/sessionlens/internal/api/middleware"
	"github.com/kiranshivaraju/sessionlens/internal/api/response"
	"github.com/kiranshivaraju/sessionlens/internal/cache"
	"github.com/kiranshivaraju/sessionlens/internal/clustering"
	"github.com/kiranshivaraju/sessionlens/internal/config"
	"github.com/kiranshivaraju/sessionlens/internal/pipeline"
	"github.com/kiranshivaraju/sessionlens/internal/segments"
	"github.com/kiranshivaraju/sessionlens/internal/store"
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
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	// 5. Create label provider
	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create label provider: %w", err)
	}
	slog.Info("label provider initialized", "provider", provider.Name())

	// 6. Create store and segment fetcher
	pgStore := store.NewPostgresStore(pool)
	fetcher := segments.NewHTTPClient(
		cfg.SegmentStore.BaseURL,
		cfg.SegmentStore.APIKey,
		cfg.SegmentStore.OrgID,
		cfg.SegmentStore.Timeout,
	)

	// 7. Assemble the clustering pipeline
	engine := clustering.NewEngine(clustering.Params{
		Epsilon:        cfg.Pipeline.Epsilon,
		MinClusterSize: cfg.Pipeline.MinClusterSize,
		ReduceDim:      cfg.Pipeline.ReduceDim,
		ReduceSeed:     cfg.Pipeline.ReduceSeed,
	})
	runner := pipeline.NewRunner(
		fetcher,
		engine,
		pipeline.NewMatcher(cfg.Pipeline.MatchThreshold),
		pipeline.NewLabeler(provider, cfg.AI.InferenceTimeout, cfg.Pipeline.LabelSampleSize),
		pipeline.NewMaterializer(pgStore),
		pipeline.NewLinker(pgStore),
		pgStore,
		redisCache,
		cfg.Pipeline.Lookback,
		cfg.Pipeline.FetchLimit,
	)

	// 8. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, 60),

		HealthHandler: healthHandler(pgStore, redisCache),

		TriggerRunHandler: handler.NewTriggerRunHandler(runner),
		GetRunHandler:     handler.NewGetRunHandler(pgStore, redisCache),

		ListIssuesHandler:        handler.NewListIssuesHandler(pgStore, redisCache),
		GetIssueHandler:          handler.NewGetIssueHandler(pgStore),
		ListIssueSegmentsHandler: handler.NewListIssueSegmentsHandler(pgStore),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
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

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
