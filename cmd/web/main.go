package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"commercial-analytics/internal/config"
	"commercial-analytics/internal/customers"
	"commercial-analytics/internal/fields"
	"commercial-analytics/internal/goals"
	"commercial-analytics/internal/middleware"
	"commercial-analytics/internal/observability"
	"commercial-analytics/internal/period"
	"commercial-analytics/internal/server"
	"commercial-analytics/internal/services"
	"commercial-analytics/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	cacheMaxAge    = "public, max-age=300"
	sweepInterval  = time.Minute
	serviceVersion = "1.0.0"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// newAnalytics builds the analysis service from cfg, reading the optional
// mapping and goals files.
func newAnalytics(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*services.Analytics, error) {
	opts := services.Options{
		Recency: customers.Thresholds{
			ActiveDays: cfg.Analysis.ActiveDays,
			AtRiskDays: cfg.Analysis.AtRiskDays,
		},
		ABCThresholds:    cfg.Analysis.ABCThresholds,
		ItemThresholds:   cfg.Analysis.ItemThresholds,
		UnspecifiedLabel: cfg.Analysis.UnspecifiedLabel,
		CriticalSharePct: cfg.Analysis.CriticalSharePct,
		Calendar:         period.Calendar{Weekdays: cfg.Analysis.Weekdays()},
		CacheDir:         cfg.Data.CacheDir,
		Logger:           logger,
		Metrics:          metrics,
	}

	if cfg.Data.MappingFile != "" {
		mapping, err := fields.LoadMapping(cfg.Data.MappingFile)
		if err != nil {
			return nil, err
		}
		opts.Mapping = mapping
		logger.Info("column mapping loaded", "file", cfg.Data.MappingFile, "fields", len(mapping))
	}

	if cfg.Data.GoalsFile != "" {
		repo, err := goals.LoadFile(cfg.Data.GoalsFile)
		if err != nil {
			return nil, err
		}
		opts.Goals = repo
		logger.Info("goals loaded", "file", cfg.Data.GoalsFile, "periods", len(repo.Periods()))
	}

	return services.NewAnalytics(opts), nil
}

func newHandler(cfg *config.Config, analytics *services.Analytics, logger *slog.Logger, metrics *observability.Metrics, limiter *middleware.RateLimiter) http.Handler {
	srv := server.NewServer(analytics, logger, metrics, &server.TemplateHandlers{
		Dashboard: handleDashboard,
	})

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.Metrics(metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", serviceVersion,
		"addr", cfg.Address(),
		"data_file", cfg.Data.File,
	)

	metrics := observability.NewMetrics()
	analytics, err := newAnalytics(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to configure analytics", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Data.LoadTimeout)
	defer cancel()

	start := time.Now()
	if err := analytics.LoadFromFile(ctx, cfg.Data.File); err != nil {
		logger.Error("failed to load dataset", "file", cfg.Data.File, "error", err)
		os.Exit(1)
	}
	logger.Info("dataset loaded", "duration", time.Since(start))

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go rateLimiter.Run(sweepCtx, sweepInterval)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, logger, metrics, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping rate limiter sweeper")
		stopSweep()
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
