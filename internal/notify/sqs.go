// Package notify publishes mold alerts to SQS and sweep metrics to
// CloudWatch.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"homeclimate/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSAlertPublisher sends mold alerts to a queue. Downstream consumers
// (email, push) are out of scope.
type SQSAlertPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewSQSAlertPublisher creates a publisher for queueURL.
func NewSQSAlertPublisher(client SQSSender, queueURL string, logger *slog.Logger) *SQSAlertPublisher {
	return &SQSAlertPublisher{client: client, queueURL: queueURL, logger: logger}
}

// PublishMoldAlert sends alert as a JSON message with device_id and level
// attributes for subscription filtering.
func (p *SQSAlertPublisher) PublishMoldAlert(ctx context.Context, alert types.MoldAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal mold alert: %w", err)
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"device_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(alert.DeviceID),
			},
			"level": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(alert.Level)),
			},
		},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue, "failed to send mold alert", err)
	}

	p.logger.InfoContext(ctx, "mold alert sent",
		"alert_id", alert.AlertID,
		"device_id", alert.DeviceID,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}
