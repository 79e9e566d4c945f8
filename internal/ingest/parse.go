// Package ingest receives sensor readings over MQTT, persists them, and
// publishes advice back to devices.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"homeclimate/internal/types"
)

// maxClockSkew is how far in the future a device timestamp may be.
const maxClockSkew = 5 * time.Minute

var validate = validator.New()

type readingPayload struct {
	TS          json.RawMessage `json:"ts"`
	TempC       *float64        `json:"temp_c" validate:"omitempty,gte=-50,lte=80"`
	HumidityRH  *float64        `json:"humidity_rh" validate:"omitempty,gte=0,lte=100"`
	PressureHPa *float64        `json:"pressure_hpa" validate:"omitempty,gte=300,lte=1100"`
}

// DeviceIDFromTopic extracts the device id from a topic shaped
// <prefix>/{device_id}/<suffix>.
func DeviceIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || !types.ValidDeviceID(parts[1]) {
		return "", types.NewAppError(types.ErrCodeValidationInvalidDevice,
			fmt.Sprintf("topic %q does not carry a valid device id", topic), nil)
	}
	return parts[1], nil
}

// ParseReading decodes a sensor payload published on topic. See
// DecodeReading for the payload format.
func ParseReading(topic string, payload []byte, now time.Time) (types.Reading, error) {
	deviceID, err := DeviceIDFromTopic(topic)
	if err != nil {
		return types.Reading{}, err
	}
	return DecodeReading(deviceID, payload, now)
}

// DecodeReading decodes the JSON payload {ts?, temp_c?, humidity_rh?,
// pressure_hpa?} for deviceID. ts is RFC3339 or Unix seconds (milliseconds
// are accepted) and defaults to now. At least one of temperature or humidity
// must be present.
func DecodeReading(deviceID string, payload []byte, now time.Time) (types.Reading, error) {
	if !types.ValidDeviceID(deviceID) {
		return types.Reading{}, types.NewAppError(types.ErrCodeValidationInvalidDevice, "invalid device id", nil)
	}

	var p readingPayload
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return types.Reading{}, types.NewAppError(types.ErrCodeValidationInvalidBody, "malformed reading payload", err)
	}
	if p.TempC == nil && p.HumidityRH == nil {
		return types.Reading{}, types.NewAppError(types.ErrCodeValidationMissingField,
			"reading needs temp_c or humidity_rh", nil)
	}
	if err := validate.Struct(p); err != nil {
		return types.Reading{}, types.NewAppError(types.ErrCodeValidationOutOfRange, "reading value out of range", err)
	}

	ts, err := parseTimestamp(p.TS, now)
	if err != nil {
		return types.Reading{}, err
	}

	return types.Reading{
		Timestamp:   ts,
		DeviceID:    deviceID,
		TempC:       p.TempC,
		HumidityRH:  p.HumidityRH,
		PressureHPa: p.PressureHPa,
	}, nil
}

func parseTimestamp(raw json.RawMessage, now time.Time) (time.Time, error) {
	now = now.UTC()
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return now, nil
	}

	var ts time.Time
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, invalidTime(err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, invalidTime(err)
		}
		ts = t.UTC()
	default:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil || n <= 0 {
			return time.Time{}, invalidTime(err)
		}
		if n > 1e12 {
			n /= 1000
		}
		sec, frac := math.Modf(n)
		ts = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}

	if ts.After(now.Add(maxClockSkew)) {
		return time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidTime,
			fmt.Sprintf("reading timestamp %s is in the future", ts.Format(time.RFC3339)), nil)
	}
	return ts, nil
}

func invalidTime(err error) error {
	return types.NewAppError(types.ErrCodeValidationInvalidTime, "invalid reading timestamp", err)
}
