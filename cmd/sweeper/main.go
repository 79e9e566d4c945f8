// Package main is the entry point for the Sweeper Lambda function.
//
// An EventBridge schedule invokes the Sweeper periodically. Each invocation
// evaluates every registered device (or the first Limit of them), which
// persists an advice log entry per device, publishes HIGH mold risk alerts to
// SQS and emits the sweep outcome to CloudWatch.
//
// With APP_ENV=local the handler runs once against the JSON event on stdin
// (an empty stdin means the default event) instead of starting the Lambda
// runtime.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"homeclimate/internal/app"
	"homeclimate/internal/config"
	"homeclimate/internal/notify"
	"homeclimate/internal/types"
)

// SweepEvent is the scheduled payload. Limit <= 0 sweeps every device.
type SweepEvent struct {
	Limit int `json:"limit"`
}

// Sweeper evaluates devices in bulk. service.Advisor satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context, limit int) (types.SweepSummary, error)
}

// SweepRecorder receives the sweep outcome.
type SweepRecorder interface {
	RecordSweep(ctx context.Context, s types.SweepSummary)
}

// Handler holds the dependencies for the sweeper Lambda handler function.
type Handler struct {
	Sweeper Sweeper
	Metrics SweepRecorder
	Logger  *slog.Logger
}

// Handle runs one sweep. A device that fails to evaluate is counted in the
// summary; only a failure to list devices or a cancelled context is
// returned, so the Lambda retries only when nothing was swept.
func (h *Handler) Handle(ctx context.Context, event SweepEvent) (types.SweepSummary, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	started := time.Now()
	logger.InfoContext(ctx, "sweeper invoked", "limit", event.Limit)

	summary, err := h.Sweeper.Sweep(ctx, event.Limit)
	if err != nil {
		logger.ErrorContext(ctx, "sweep failed",
			"error", err,
			"evaluated_before_error", summary.Evaluated,
		)
		return summary, fmt.Errorf("sweeping devices: %w", err)
	}

	if h.Metrics != nil {
		h.Metrics.RecordSweep(ctx, summary)
	}

	logger.InfoContext(ctx, "sweep complete",
		"evaluated", summary.Evaluated,
		"failed", summary.Failed,
		"alerts", summary.Alerts,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return summary, nil
}

// decodeEvent parses a local event. Empty input yields the zero event.
func decodeEvent(payload []byte) (SweepEvent, error) {
	var ev SweepEvent
	if len(bytes.TrimSpace(payload)) == 0 {
		return ev, nil
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("decoding sweep event: %w", err)
	}
	return ev, nil
}

// awsClients builds the SQS and CloudWatch clients, pointing both at
// AWS_ENDPOINT_URL when it is set (LocalStack).
func awsClients(ctx context.Context, cfg config.AWSConfig) (*sqs.Client, *cloudwatch.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, nil, fmt.Errorf("loading AWS SDK config: %w", err)
	}

	var (
		sqsOpts []func(*sqs.Options)
		cwOpts  []func(*cloudwatch.Options)
	)
	if cfg.EndpointURL != "" {
		sqsOpts = append(sqsOpts, func(o *sqs.Options) { o.BaseEndpoint = aws.String(cfg.EndpointURL) })
		cwOpts = append(cwOpts, func(o *cloudwatch.Options) { o.BaseEndpoint = aws.String(cfg.EndpointURL) })
	}
	return sqs.NewFromConfig(awsCfg, sqsOpts...), cloudwatch.NewFromConfig(awsCfg, cwOpts...), nil
}

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

	logger := app.NewLogger(cfg.LogLevel).With("component", "sweeper")
	logger.Info("Sweeper Lambda initializing (cold start)", "build", cfg.Build)

	ctx := context.Background()

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

	sqsClient, cwClient, err := awsClients(ctx, cfg.AWS)
	if err != nil {
		return err
	}

	var opts app.Options
	if cfg.AWS.AlertQueueURL != "" {
		opts.Alerts = notify.NewSQSAlertPublisher(sqsClient, cfg.AWS.AlertQueueURL, logger)
	} else {
		logger.Warn("SQS_MOLD_ALERTS not set, mold alerts are disabled")
	}

	adv, err := app.NewAdvisor(cfg, pool, app.NewWeatherProvider(cfg.Weather, store, nil, logger), opts, logger)
	if err != nil {
		return err
	}

	handler := &Handler{
		Sweeper: adv,
		Metrics: notify.NewCloudWatchMetrics(cwClient, cfg.AWS.MetricNamespace, logger),
		Logger:  logger,
	}

	logger.Info("Sweeper Lambda initialized",
		"alert_queue", cfg.AWS.AlertQueueURL,
		"metric_namespace", cfg.AWS.MetricNamespace,
	)

	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading event from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		event, err := decodeEvent(payload)
		if err != nil {
			return err
		}
		summary, err := handler.Handle(ctx, event)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(summary)
	}

	lambda.Start(handler.Handle)
	return nil
}
