package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/seo-engine/backend/analyzer"
	"github.com/seo-engine/backend/api"
	"github.com/seo-engine/backend/cache"
	"github.com/seo-engine/backend/config"
	"github.com/seo-engine/backend/diagnostics"
	"github.com/seo-engine/backend/logging"
	"github.com/seo-engine/backend/middleware"
	"github.com/seo-engine/backend/search"
	"github.com/seo-engine/backend/stats"
	"github.com/seo-engine/backend/store"
)

const (
	memoryCacheSize   = 1000
	statsRetainMonths = 12
	shutdownTimeout   = 15 * time.Second
)

func serveAction(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(serviceName, cfg.Env)
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	usage, err := stats.NewStorage(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open statistics storage: %w", err)
	}
	defer func() {
		if err := usage.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("failed to flush statistics")
		}
	}()
	usage.Cleanup(statsRetainMonths)

	featureCache, cacheBackend, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()

	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	pages := analyzer.New(analyzer.Options{
		Timeout: cfg.Analysis.FetchTimeout,
		Cache:   featureCache,
		Stats:   usage,
		Logger:  logger.With().Str("component", "analyzer").Logger(),
	})
	searcher := search.NewGoogleClient(cfg.Search.APIKey, cfg.Search.EngineID, cfg.Analysis.FetchTimeout,
		logger.With().Str("component", "search").Logger())
	if !searcher.Configured() {
		logger.Warn().Msg("search credentials missing, competitor discovery disabled")
	}

	service := diagnostics.NewService(pages, searcher, db, db, diagnostics.Config{
		MaxCompetitors:  cfg.Analysis.MaxCompetitors,
		Concurrency:     cfg.Analysis.CompetitorConcurrency,
		AnalysisTimeout: cfg.Analysis.Timeout,
	}, logger.With().Str("component", "diagnostics").Logger())

	server := api.NewServer(api.Deps{
		Extractor:        pages,
		Diagnostics:      service,
		Repository:       db,
		Requests:         logging.NewStatistics(),
		Usage:            usage,
		Limiter:          middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		Logger:           logger,
		DevMode:          cfg.Env == "development",
		SearchConfigured: searcher.Configured(),
		CacheBackend:     cacheBackend,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", httpServer.Addr).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openCache prefers Redis when configured and falls back to the in-process cache
func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache, string, func()) {
	if cfg.Redis.URL != "" {
		r, err := cache.NewRedis(ctx, cfg.Redis.URL, cfg.Cache.TTL, logger)
		if err == nil {
			logger.Info().Msg("feature cache: redis")
			return r, "redis", func() { r.Close() }
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory feature cache")
	}
	m := cache.NewMemory(cfg.Cache.TTL, memoryCacheSize)
	return m, "memory", m.Close
}

func extractAction(c *cli.Context) error {
	format := c.String("format")
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unsupported format %q", format)
	}

	pages := analyzer.New(analyzer.Options{Timeout: c.Duration("timeout")})
	features := pages.ExtractPageFeatures(c.Context, c.String("url"))
	if features == nil {
		return fmt.Errorf("could not fetch or parse %s", c.String("url"))
	}

	var (
		out []byte
		err error
	)
	if format == "yaml" {
		out, err = yaml.Marshal(features)
	} else {
		out, err = json.MarshalIndent(features, "", "  ")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(out))
	return err
}

func migrateAction(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(serviceName, cfg.Env)

	db, err := store.Open(c.Context, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(c.Context); err != nil {
		return err
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("schema migrated")
	return nil
}

func usageAction(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	usage, err := stats.NewStorage(cfg.DataDir, zerolog.Nop())
	if err != nil {
		return err
	}
	defer usage.Shutdown()

	if retain := c.Int("retain"); retain > 0 {
		usage.Cleanup(retain)
	}

	months := make(map[string]stats.MonthlyStats)
	for _, month := range usage.GetAllMonths() {
		if m, ok := usage.GetMonthlyStats(month); ok {
			months[month] = m
		}
	}
	out, err := yaml.Marshal(months)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(c.App.Writer, string(out))
	return err
}
