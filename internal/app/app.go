// Package app wires the advisory components from configuration. The binaries
// under cmd/ share it so that the HTTP server, the MQTT ingester and the
// sweeper evaluate devices identically.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"homeclimate/internal/advisor"
	"homeclimate/internal/cache"
	"homeclimate/internal/config"
	"homeclimate/internal/db"
	"homeclimate/internal/humidity"
	"homeclimate/internal/rates"
	"homeclimate/internal/service"
	"homeclimate/internal/types"
	"homeclimate/internal/weather"
)

// NewLogger creates a JSON slog.Logger for the given level name.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// OpenDatabase creates the pgx pool described by cfg.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout+5*time.Second)
	defer cancel()
	return db.NewPool(ctx, cfg.URL.Unmask(), db.PoolOptions{
		MaxConns:          int32(cfg.MaxConns),
		MinConns:          int32(cfg.MinConns),
		MaxConnLifetime:   cfg.MaxConnLifetime,
		HealthCheckPeriod: cfg.HealthCheckPeriod,
	})
}

// OpenCache returns a Redis store when a URL is configured and an in-process
// store otherwise. The returned close function is never nil.
func OpenCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.Store, func(), error) {
	if !cfg.RedisURL.IsSet() {
		logger.Info("using in-process cache")
		return cache.NewMemoryStore(), func() {}, nil
	}
	store, err := cache.NewRedisStore(ctx, cfg.RedisURL.Unmask(), cfg.KeyPrefix)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis cache", "host", cfg.RedisURL.Host(), "prefix", cfg.KeyPrefix)
	return store, func() { _ = store.Close() }, nil
}

// NewWeatherProvider builds the outdoor weather chain: OpenWeather with a mock
// fallback, behind the cache. Without an API key the mock is used directly.
func NewWeatherProvider(cfg config.WeatherConfig, store cache.Store, recorder weather.CacheRecorder, logger *slog.Logger) weather.Provider {
	mock := weather.NewMockProvider()

	var source weather.Provider = mock
	if !cfg.UseMock() {
		base := weather.NewBaseClient(
			&http.Client{Timeout: cfg.Timeout},
			"openweather",
			weather.DefaultRetryPolicy(),
			config.NewBuildInfo().UserAgent(),
		)
		source = &weather.FallbackProvider{
			Primary:   weather.NewOpenWeatherClient(base, cfg.BaseURL, cfg.APIKey.Unmask()),
			Secondary: mock,
			Logger:    logger,
		}
	} else {
		logger.Warn("weather running in mock mode")
	}

	return &weather.CachedProvider{
		Next:     source,
		Store:    store,
		TTL:      cfg.CacheTTL,
		Logger:   logger,
		Recorder: recorder,
	}
}

// Options carries the optional collaborators of the advisor.
type Options struct {
	Alerts    service.AlertPublisher
	Publisher service.AdvicePublisher
	Metrics   service.MetricsRecorder
}

// NewAdvisor assembles a service.Advisor backed by the Postgres repositories
// on dbtx.
func NewAdvisor(cfg *config.Config, dbtx db.DBTX, provider weather.Provider, opts Options, logger *slog.Logger) (*service.Advisor, error) {
	loc, err := cfg.Advisor.Location()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a := &service.Advisor{
		Devices:  db.NewDeviceRepository(dbtx),
		Readings: db.NewReadingRepository(dbtx),
		Advice:   db.NewAdviceLogRepository(dbtx),
		Weather:  provider,
		Rates:    rates.NewStaticResolver(),
		Engine:   advisor.NewEngine(cfg.Advisor.Thresholds()),
		Mold:     cfg.Advisor.MoldEngine(),
		Humidity: humidity.NewEstimator(cfg.Advisor.MoistureBoostPct),
		Settings: service.Settings{
			Location:            loc,
			DefaultPlan:         types.ParsePlanType(cfg.Advisor.DefaultPlanType),
			DefaultHousing:      types.ParseHousingType(cfg.Advisor.DefaultHousingType),
			MoldWindow:          cfg.Advisor.MoldWindow,
			MoldIntervalMinutes: cfg.Advisor.MoldIntervalMinutes,
			SweepConcurrency:    cfg.Advisor.SweepConcurrency,
		},
		Alerts:    opts.Alerts,
		Publisher: opts.Publisher,
		Metrics:   opts.Metrics,
		Log:       logger,
	}
	return a, nil
}
