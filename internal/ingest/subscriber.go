package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"homeclimate/internal/types"
)

// Ingest outcomes reported to the Recorder.
const (
	OutcomeStored  = "stored"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Recorder receives one observation per message.
type Recorder interface {
	RecordIngest(outcome string)
}

// subscribeClient is the subset of mqtt.Client used by Subscriber.
type subscribeClient interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Subscriber consumes reading messages and writes them to a sink.
type Subscriber struct {
	Topic    string
	QoS      byte
	Sink     ReadingSink
	Logger   *slog.Logger
	Recorder Recorder

	// OnReading, when set, runs after a reading is stored. Errors are logged.
	OnReading func(ctx context.Context, r types.Reading) error

	// WriteTimeout bounds the sink write and the OnReading hook.
	WriteTimeout time.Duration

	now func() time.Time
}

// Subscribe registers the message handler on c.
func (s *Subscriber) Subscribe(c subscribeClient) error {
	if err := waitToken(c.Subscribe(s.Topic, s.QoS, s.handle), defaultTimeout, "subscribing to "+s.Topic); err != nil {
		return err
	}
	s.Logger.Info("subscribed to sensor topic", "topic", s.Topic, "qos", s.QoS)
	return nil
}

// Unsubscribe removes the subscription.
func (s *Subscriber) Unsubscribe(c subscribeClient) error {
	return waitToken(c.Unsubscribe(s.Topic), defaultTimeout, "unsubscribing from "+s.Topic)
}

func (s *Subscriber) handle(_ mqtt.Client, msg mqtt.Message) {
	s.process(msg.Topic(), msg.Payload())
}

func (s *Subscriber) process(topic string, payload []byte) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}

	reading, err := ParseReading(topic, payload, now())
	if err != nil {
		s.Logger.Warn("rejected sensor message", "topic", topic, "error", err)
		s.record(OutcomeInvalid)
		return
	}

	timeout := s.WriteTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Sink.WriteReading(ctx, reading); err != nil {
		s.Logger.Error("failed to store reading", "device_id", reading.DeviceID, "error", err)
		s.record(OutcomeFailed)
		return
	}
	s.record(OutcomeStored)

	if s.OnReading != nil {
		if err := s.OnReading(ctx, reading); err != nil {
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundDevice {
				s.Logger.Debug("reading from unregistered device", "device_id", reading.DeviceID)
				return
			}
			s.Logger.Warn("post-reading evaluation failed", "device_id", reading.DeviceID, "error", err)
		}
	}
}

func (s *Subscriber) record(outcome string) {
	if s.Recorder != nil {
		s.Recorder.RecordIngest(outcome)
	}
}
