package notify

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"homeclimate/internal/types"
)

// Metric and dimension names.
const (
	MetricAdviceIssued     = "AdviceIssued"
	MetricMoldRisk         = "MoldRisk"
	MetricDevicesEvaluated = "DevicesEvaluated"
	MetricDevicesFailed    = "DevicesFailed"
	MetricAlertsSent       = "MoldAlertsSent"

	DimState = "State"
	DimLevel = "Level"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits sweep outcomes from the Lambda, where a Prometheus
// scrape is not possible.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordSweep emits one datum per state and per mold level plus the device
// totals, in a single PutMetricData call. Failures are logged, not returned.
func (m *CloudWatchMetrics) RecordSweep(ctx context.Context, s types.SweepSummary) {
	data := []cwtypes.MetricDatum{
		count(MetricDevicesEvaluated, s.Evaluated),
		count(MetricDevicesFailed, s.Failed),
		count(MetricAlertsSent, s.Alerts),
	}

	for _, state := range types.AllRecommendationStates {
		data = append(data, count(MetricAdviceIssued, s.States[state], dim(DimState, string(state))))
	}
	for _, level := range types.AllRiskLevels {
		data = append(data, count(MetricMoldRisk, s.MoldLevels[level], dim(DimLevel, string(level))))
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record sweep metrics",
			"error", err.Error(),
			"evaluated", s.Evaluated,
		)
	}
}

func count(name string, n int, dims ...cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
