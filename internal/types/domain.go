package types

import (
	"math"
	"regexp"
	"time"
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidDeviceID reports whether id is usable as a device identifier and MQTT
// topic segment.
func ValidDeviceID(id string) bool {
	return deviceIDPattern.MatchString(id)
}

// Reading is a point-in-time indoor observation from a sensor gateway.
// Nil fields were not reported by the device.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	DeviceID    string    `json:"device_id"`
	TempC       *float64  `json:"temp_c"`
	HumidityRH  *float64  `json:"humidity_rh"`
	PressureHPa *float64  `json:"pressure_hpa"`
}

// ComfortBand is the acceptable indoor temperature range for a household.
// The night band applies between 22:00 and 07:00 local time when both night
// values are present.
type ComfortBand struct {
	MinC      float64  `json:"min_c" validate:"gte=-10,lte=40"`
	MaxC      float64  `json:"max_c" validate:"gte=-10,lte=40,gtefield=MinC"`
	NightMinC *float64 `json:"night_min_c,omitempty" validate:"omitempty,gte=-10,lte=40"`
	NightMaxC *float64 `json:"night_max_c,omitempty" validate:"omitempty,gte=-10,lte=40"`
}

// HasNightBand reports whether both night values are configured.
func (b ComfortBand) HasNightBand() bool {
	return b.NightMinC != nil && b.NightMaxC != nil
}

// ForecastEntry is one step of the outdoor forecast. Pop is the probability
// of precipitation in [0,1].
type ForecastEntry struct {
	Time        time.Time `json:"time"`
	TempC       float64   `json:"temp_c"`
	HumidityRH  float64   `json:"humidity_rh"`
	Pop         float64   `json:"pop" validate:"gte=0,lte=1"`
	Description string    `json:"description,omitempty"`
}

// OutdoorConditions is the resolved outdoor weather used by the advisor.
// Forecast may be empty.
type OutdoorConditions struct {
	TempC      *float64        `json:"temp_c"`
	HumidityRH *float64        `json:"humidity_rh"`
	Forecast   []ForecastEntry `json:"forecast"`
	Source     string          `json:"source"`
	Mock       bool            `json:"mock"`
	FetchedAt  time.Time       `json:"fetched_at"`
}

// DeviceProfile holds per-household settings used to evaluate a device.
type DeviceProfile struct {
	DeviceID    string      `json:"device_id"`
	Name        string      `json:"name"`
	Comfort     ComfortBand `json:"comfort"`
	PlanType    PlanType    `json:"plan_type"`
	HousingType HousingType `json:"housing_type"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	ACCOP       float64     `json:"ac_cop"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AdviceLog is the persisted summary of one advice evaluation.
type AdviceLog struct {
	ID               string              `json:"id"`
	DeviceID         string              `json:"device_id"`
	CreatedAt        time.Time           `json:"created_at"`
	State            RecommendationState `json:"state"`
	Confidence       Confidence          `json:"confidence"`
	Reasons          []string            `json:"reasons"`
	MoldRisk         RiskLevel           `json:"mold_risk"`
	MoldScore        int                 `json:"mold_score"`
	PriceCentsPerKWh float64             `json:"price_cents_per_kwh"`
	PeriodLabel      string              `json:"period_label"`
	IndoorTempC      float64             `json:"indoor_temp_c"`
	OutdoorTempC     float64             `json:"outdoor_temp_c"`
	SavingsDollars   float64             `json:"savings_dollars"`
}

// Float64 returns a pointer to v. It keeps optional numeric literals short.
func Float64(v float64) *float64 {
	return &v
}

// IsFinite reports whether p is non-nil and holds a finite number.
func IsFinite(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}

// SweepSummary counts the outcome of evaluating every device once.
type SweepSummary struct {
	Evaluated  int                         `json:"evaluated"`
	Failed     int                         `json:"failed"`
	States     map[RecommendationState]int `json:"states"`
	MoldLevels map[RiskLevel]int           `json:"mold_levels"`
	Alerts     int                         `json:"alerts"`
}

// MoldAlert is published when a device's mold risk is HIGH.
type MoldAlert struct {
	AlertID     string    `json:"alert_id"`
	DeviceID    string    `json:"device_id"`
	Level       RiskLevel `json:"level"`
	Score       int       `json:"score"`
	Explanation string    `json:"explanation"`
	HumidityRH  *float64  `json:"humidity_rh,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
