package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/covid-data-explorer/internal/api/http"
	"github.com/i474232898/covid-data-explorer/internal/config"
	"github.com/i474232898/covid-data-explorer/internal/dashboard"
	"github.com/i474232898/covid-data-explorer/internal/epidata/sources"
	"github.com/i474232898/covid-data-explorer/internal/forecast"
	"github.com/i474232898/covid-data-explorer/internal/observability"
	"github.com/i474232898/covid-data-explorer/internal/scheduler"
	"github.com/i474232898/covid-data-explorer/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Shared HTTP client for the dataset download. The export is large, so
	// the timeout stays unset unless configured.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}

	source := sources.NewOWIDSource(httpClient, cfg.DataSourceURL, cfg.FetchMaxRetries, logg)

	// Cached dataset in front of the source.
	memStore := store.NewMemoryStore(source, cfg.CacheTTL,
		store.WithMetrics(metrics),
		store.WithLogger(logg),
	)

	forecaster := forecast.NewARIMAForecaster(cfg.ForecastSeasonalPeriod, logg)

	// Explore pipeline orchestrating filter, summary, chart, export and forecast.
	defaults := dashboard.DefaultControls(cfg.DefaultCountries)
	defaults.Metric = cfg.DefaultMetric
	service := dashboard.NewService(memStore, forecaster, defaults, metrics, logg)

	// Scheduler that periodically refreshes the cached dataset.
	sched := scheduler.New(memStore, cfg.RefreshInterval, cfg.FetchTimeout, logg)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "covid-data-explorer",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// first requests wait for the full dataset download
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterOps(app, memStore, promhttp.Handler())
	httpapi.RegisterRoutes(app, service)

	// Warm the cache without blocking startup.
	go func() {
		if _, err := memStore.Load(context.Background()); err != nil {
			logg.Warn("initial dataset load failed; retrying on first request", "error", err)
		}
	}()

	go func() {
		logg.Info("http server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logg.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Error("error during shutdown", "error", err)
	}
}
