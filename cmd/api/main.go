package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/PratikDhanave/event-dedup-service/internal/cache"
	"github.com/PratikDhanave/event-dedup-service/internal/config"
	"github.com/PratikDhanave/event-dedup-service/internal/dedup"
	"github.com/PratikDhanave/event-dedup-service/internal/history"
	"github.com/PratikDhanave/event-dedup-service/internal/httpserver"
	"github.com/PratikDhanave/event-dedup-service/internal/logger"
	"github.com/PratikDhanave/event-dedup-service/internal/store"
)

// main boots the service: config → cache → DB → history → dedup engine → HTTP server.
func main() {
	// Load runtime config from environment (and .env when present).
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatalw("service stopped", "error", err)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fingerprint cache: per process, or shared through Redis across replicas.
	var fpCache cache.Cache
	switch cfg.CacheBackend {
	case config.CacheRedis:
		rc, err := cache.DialRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			return err
		}
		fpCache = rc
	default:
		fpCache = cache.NewMemoryCache(cache.DefaultCleanupInterval)
	}

	// Durable storage is optional when history comes from a remote service.
	var db *store.PostgresStore
	if cfg.DBURL != "" {
		var err error
		db, err = store.NewPostgresStore(cfg.DBURL)
		if err != nil {
			return err
		}
		defer db.Close()

		// Ensure required tables/indexes exist so `docker compose up --build` is enough.
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	var historian dedup.Historian
	switch cfg.HistoryBackend {
	case config.HistoryPostgres:
		historian = history.NewLookup(db, cfg.HistoryMaxPages)
	case config.HistoryHTTP:
		searcher := history.NewHTTPSearcher(history.HTTPConfig{
			BaseURL:  cfg.HistoryURL,
			APIKey:   cfg.HistoryAPIKey,
			Timeout:  cfg.HistoryTimeout,
			RetryMax: cfg.HistoryRetryMax,
		}, log.With("component", "history"))
		historian = history.NewLookup(searcher, cfg.HistoryMaxPages)
	}

	engine := dedup.NewEngine(fpCache, historian, dedup.Options{
		Policy:   cfg.Policy,
		Lookback: cfg.Lookback,
		CacheTTL: cfg.CacheTTL,
	}, log.With("component", "dedup"))

	deps := httpserver.Deps{Engine: engine, Cache: fpCache, Log: log}
	if db != nil {
		deps.Store = db
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpserver.NewRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server started", "addr", cfg.HTTPAddr, "dedup_mode", engine.Policy().String(),
			"cache", cfg.CacheBackend, "history", cfg.HistoryBackend)
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

	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
