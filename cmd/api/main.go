// Package main is the entry point for the home-climate advisory API server.
//
// It loads configuration, connects to PostgreSQL and the cache, builds the
// weather chain and the advisor, mounts the HTTP handlers on the core chassis
// and serves until SIGINT or SIGTERM. With -migrate it applies the schema and
// exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"homeclimate/internal/api/handlers"
	"homeclimate/internal/app"
	"homeclimate/internal/config"
	"homeclimate/internal/core"
	"homeclimate/internal/db"
	"homeclimate/internal/ingest"
	"homeclimate/internal/metrics"
	"homeclimate/internal/rates"
	"homeclimate/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	migrate := flag.Bool("migrate", false, "apply the database schema and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("homeclimate API starting",
		"environment", cfg.Environment,
		"build", cfg.Build,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	if *migrate {
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
		logger.Info("schema applied")
		return nil
	}

	store, closeCache, err := app.OpenCache(ctx, cfg.Cache, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("opening cache: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.New(reg)

	provider := app.NewWeatherProvider(cfg.Weather, store, prom, logger)
	adv, err := app.NewAdvisor(cfg, pool, provider, app.Options{Metrics: prom}, logger)
	if err != nil {
		closeCache()
		pool.Close()
		return err
	}

	readings := db.NewReadingRepository(pool)
	srv, err := buildServer(cfg, logger, serverDeps{
		Advisor:  adv,
		Devices:  db.NewDeviceRepository(pool),
		Readings: ingest.SinkFunc(readings.Insert),
		Metrics:  prom,
		Probes: []core.HealthProbe{
			core.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
			core.ProbeFunc{ProbeName: "cache", Fn: store.Ping},
		},
	})
	if err != nil {
		closeCache()
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Closers = append(srv.Closers, closeCache, pool.Close)

	return runHTTPServer(ctx, srv, cfg, logger)
}

// serverDeps are the collaborators mounted on the HTTP server.
type serverDeps struct {
	Advisor  *service.Advisor
	Devices  handlers.DeviceWriter
	Readings ingest.ReadingSink
	Metrics  *metrics.Prometheus
	Probes   []core.HealthProbe
}

// buildServer creates the core server and mounts every handler.
func buildServer(cfg *config.Config, logger *slog.Logger, deps serverDeps) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	if deps.Metrics != nil {
		srv.Metrics = deps.Metrics
		srv.MetricsHandler = deps.Metrics.Handler()
	}
	srv.HealthProbes = deps.Probes

	a := deps.Advisor
	ratesHandler := handlers.NewRatesHandler(rates.NewStaticResolver(), a.Settings.Location, a.Settings.DefaultPlan, logger)
	estimatesHandler := handlers.NewEstimatesHandler(handlers.EstimatesConfig{
		Humidity:            a.Humidity,
		Mold:                a.Mold,
		Engine:              a.Engine,
		MoldIntervalMinutes: a.Settings.MoldIntervalMinutes,
		Location:            a.Settings.Location,
	}, srv.Validator, logger)
	deviceHandler := handlers.NewDeviceHandler(a, deps.Devices, deps.Readings, srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { r.Route("/rates", ratesHandler.RegisterRoutes) },
		estimatesHandler.RegisterRoutes,
		func(r chi.Router) { r.Route("/devices", deviceHandler.RegisterRoutes) },
	)

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer serves until ctx is cancelled or the listener fails, then
// shuts down gracefully.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
