package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/astroflora/driver-ai-router/internal/classifier"
	"github.com/astroflora/driver-ai-router/internal/config"
	"github.com/astroflora/driver-ai-router/internal/fallback"
	"github.com/astroflora/driver-ai-router/internal/handler"
	"github.com/astroflora/driver-ai-router/internal/infra/health"
	"github.com/astroflora/driver-ai-router/internal/infra/observability"
	"github.com/astroflora/driver-ai-router/internal/infra/resilience"
	"github.com/astroflora/driver-ai-router/internal/infra/transport"
	"github.com/astroflora/driver-ai-router/internal/normalize"
	"github.com/astroflora/driver-ai-router/internal/routing"
	"github.com/astroflora/driver-ai-router/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()
	if cfg.ConfigFile != "" {
		if err := config.LoadFile(cfg, cfg.ConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "loading config file: %v\n", err)
			os.Exit(1)
		}
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Strings("backends", cfg.BackendURLs),
		zap.Duration("chat_timeout", cfg.ChatTimeout),
		zap.Duration("analyze_timeout", cfg.AnalyzeTimeout),
		zap.Duration("health_timeout", cfg.HealthTimeout),
		zap.Int("max_candidates", cfg.MaxCandidates),
		zap.Bool("legacy_query", cfg.LegacyQueryEndpoints),
		zap.Duration("health_cache_ttl", cfg.HealthCacheTTL),
		zap.String("config_file", cfg.ConfigFile),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "driver-ai-router")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Health cache ---
	healthCache := health.NewCache(cfg.HealthCacheTTL)
	defer healthCache.Close()

	// --- Pipeline ---
	shaper := routing.NewShaper(routing.Config{
		BackendURLs:   cfg.BackendURLs,
		MaxCandidates: cfg.MaxCandidates,
		LegacyQuery:   cfg.LegacyQueryEndpoints,
		HistoryWindow: cfg.HistoryWindow,
	})

	// Deadlines are per attempt, so the client itself has none.
	httpClient := &http.Client{}

	dispatcher := transport.New(
		httpClient,
		healthCache,
		transport.Timeouts{
			Chat:    cfg.ChatTimeout,
			Analyze: cfg.AnalyzeTimeout,
			Health:  cfg.HealthTimeout,
		},
		metrics,
		logger,
	)

	prober := health.NewProber(
		httpClient,
		shaper.HealthEndpoints(),
		healthCache,
		resilience.Config{
			MaxRetries:     cfg.ProbeRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		},
		cfg.HealthTimeout,
		metrics,
		logger,
	)

	routerSvc := service.NewRouter(
		classifier.New(),
		shaper,
		dispatcher,
		normalize.New(),
		fallback.New(),
		prober,
		metrics,
		logger,
	)

	// --- Warm-up probe ---
	warmCtx, warmCancel := context.WithTimeout(context.Background(), cfg.HealthTimeout*2)
	initial := prober.Probe(warmCtx)
	warmCancel()
	logger.Info("initial backend probe", zap.String("status", initial.Status))

	// --- Router ---
	router := handler.NewRouter(routerSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.AnalyzeTimeout*time.Duration(cfg.MaxCandidates) + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
