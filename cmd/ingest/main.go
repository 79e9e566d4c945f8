// Package main is the entry point for the sensor ingester.
//
// The ingester subscribes to the MQTT reading topic, stores each reading in
// PostgreSQL and, when CLICKHOUSE_ADDR is set, archives it to ClickHouse in
// batches. With MQTT_EVALUATE_ON_READING it re-runs the advisor after every
// stored reading and publishes the result back to the device topic.
//
// A small HTTP listener exposes /health and /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"homeclimate/internal/app"
	"homeclimate/internal/archive"
	"homeclimate/internal/config"
	"homeclimate/internal/db"
	"homeclimate/internal/ingest"
	"homeclimate/internal/metrics"
	"homeclimate/internal/service"
	"homeclimate/internal/types"
)

const (
	archiveBatchSize     = 500
	archiveFlushInterval = 5 * time.Second
	writeTimeout         = 5 * time.Second
	disconnectQuiesceMS  = 250
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel).With("component", "ingest")
	logger.Info("homeclimate ingester starting",
		"environment", cfg.Environment,
		"build", cfg.Build,
		"broker", cfg.MQTT.Broker,
		"topic", cfg.MQTT.ReadingTopic,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store, closeCache, err := app.OpenCache(ctx, cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer closeCache()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.New(reg)

	readings := db.NewReadingRepository(pool)
	var archiveSink *ingest.BufferedSink
	if cfg.Archive.Enabled() {
		ch, err := archive.Open(ctx, archive.Options{
			Addr:     cfg.Archive.Addr,
			Database: cfg.Archive.Database,
			Username: cfg.Archive.Username,
			Password: cfg.Archive.Password.Unmask(),
		}, logger)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer ch.Close()
		if err := ch.InitSchema(ctx); err != nil {
			return fmt.Errorf("initializing archive schema: %w", err)
		}
		archiveSink = ingest.NewBufferedSink(ch, archiveBatchSize, archiveFlushInterval, logger)
	}
	sink := buildSink(ingest.SinkFunc(readings.Insert), archiveSink, logger)

	// The advice publisher needs the connected client, so the first
	// subscription is made explicitly once the hook is bound. onConnect only
	// restores it after a reconnect.
	sub := newSubscriber(cfg.MQTT, sink, nil, prom, logger)
	var subscribed atomic.Bool
	client, err := ingest.Connect(ingest.ClientConfig{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password.Unmask(),
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
	}, logger, func(c mqtt.Client) {
		if !subscribed.Load() {
			return
		}
		if err := sub.Subscribe(c); err != nil {
			logger.Error("failed to resubscribe", "error", err)
		}
	})
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesceMS)

	if cfg.MQTT.EvaluateOnReading {
		provider := app.NewWeatherProvider(cfg.Weather, store, prom, logger)
		adv, err := app.NewAdvisor(cfg, pool, provider, app.Options{
			Publisher: ingest.NewPublisher(client, cfg.MQTT.AdviceTopicPrefix, cfg.MQTT.QoS),
			Metrics:   prom,
		}, logger)
		if err != nil {
			return err
		}
		sub.OnReading = evaluateHook(adv)
		logger.Info("evaluating advice on every reading")
	}

	if archiveSink != nil {
		go archiveSink.Run(ctx)
	}

	subscribed.Store(true)
	if err := sub.Subscribe(client); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           opsRouter(prom, pool.Ping),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops listener failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := sub.Unsubscribe(client); err != nil {
		logger.Warn("unsubscribe failed", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops listener shutdown error", "error", err)
	}
	if archiveSink != nil {
		if err := archiveSink.Flush(shutdownCtx); err != nil {
			logger.Warn("final archive flush failed", "error", err)
		}
	}

	logger.Info("ingester stopped cleanly")
	return nil
}

// buildSink returns primary alone, or primary fanned out to the archive.
func buildSink(primary ingest.ReadingSink, archiveSink ingest.ReadingSink, logger *slog.Logger) ingest.ReadingSink {
	if archiveSink == nil {
		return primary
	}
	return &ingest.FanOut{
		Primary:   primary,
		Secondary: []ingest.ReadingSink{archiveSink},
		Logger:    logger,
	}
}

// newSubscriber configures the reading subscriber. onReading may be nil.
func newSubscriber(
	cfg config.MQTTConfig,
	sink ingest.ReadingSink,
	onReading func(ctx context.Context, r types.Reading) error,
	rec ingest.Recorder,
	logger *slog.Logger,
) *ingest.Subscriber {
	return &ingest.Subscriber{
		Topic:        cfg.ReadingTopic,
		QoS:          cfg.QoS,
		Sink:         sink,
		Logger:       logger,
		Recorder:     rec,
		OnReading:    onReading,
		WriteTimeout: writeTimeout,
	}
}

// adviser is the part of service.Advisor the ingest hook needs.
type adviser interface {
	Advise(ctx context.Context, deviceID string) (*service.AdviceReport, error)
}

// evaluateHook re-evaluates the device that produced a reading. Publishing
// happens inside Advise through the configured publisher.
func evaluateHook(a adviser) func(ctx context.Context, r types.Reading) error {
	return func(ctx context.Context, r types.Reading) error {
		_, err := a.Advise(ctx, r.DeviceID)
		return err
	}
}

// opsRouter serves liveness and Prometheus metrics.
func opsRouter(prom *metrics.Prometheus, ping func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", prom.Handler())
	return r
}
