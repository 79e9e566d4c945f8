package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// publishClient is the subset of mqtt.Client used by Publisher.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends advice to {prefix}/{device_id}/recommendation as a retained
// message, so a device that reconnects sees the latest advice at once.
type Publisher struct {
	client publishClient
	prefix string
	qos    byte
}

// NewPublisher creates a Publisher on c.
func NewPublisher(c publishClient, prefix string, qos byte) *Publisher {
	return &Publisher{client: c, prefix: prefix, qos: qos}
}

// AdviceTopic returns the topic advice for deviceID is published on.
func (p *Publisher) AdviceTopic(deviceID string) string {
	return p.prefix + "/" + deviceID + "/recommendation"
}

// PublishAdvice JSON-encodes advice and publishes it. The wait is bounded by
// ctx's deadline, or 10s without one.
func (p *Publisher) PublishAdvice(ctx context.Context, deviceID string, advice any) error {
	body, err := json.Marshal(advice)
	if err != nil {
		return fmt.Errorf("encoding advice: %w", err)
	}

	timeout := defaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	return waitToken(p.client.Publish(p.AdviceTopic(deviceID), p.qos, true, body), timeout, "publishing advice")
}
