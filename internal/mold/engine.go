// Package mold scores mold risk from a window of indoor humidity readings.
package mold

import (
	"fmt"
	"math"

	"homeclimate/internal/types"
)

// Stats are the exposure counters accumulated over the window. Minute counts
// are multiples of the sampling interval.
type Stats struct {
	MinutesOver60        int      `json:"minutes_over_60"`
	MinutesOver70        int      `json:"minutes_over_70"`
	Minutes60To70        int      `json:"minutes_60_70"`
	MaxConsecutiveOver70 int      `json:"max_consecutive_over_70"`
	CurrentHumidity      *float64 `json:"current_humidity"`
	ReadingCount         int      `json:"reading_count"`
}

// Result is the risk assessment for one window.
type Result struct {
	Level       types.RiskLevel `json:"risk_level"`
	Score       int             `json:"risk_score"`
	Explanation string          `json:"explanation"`
	Stats       Stats           `json:"stats"`
}

// Engine holds the thresholds. Bands use strict inequalities: RH equal to
// ElevatedRH is safe and RH equal to HighRH is elevated.
type Engine struct {
	ElevatedRH float64 // band lower bound, default 60
	HighRH     float64 // band lower bound, default 70

	HighTotalMinutes       int // minutes above HighRH that trigger HIGH
	HighConsecutiveMinutes int // uninterrupted minutes above HighRH that trigger HIGH
	MediumMinutes          int // minutes above ElevatedRH that trigger MEDIUM
}

// DefaultEngine returns the standard thresholds.
func DefaultEngine() Engine {
	return Engine{
		ElevatedRH:             60,
		HighRH:                 70,
		HighTotalMinutes:       180,
		HighConsecutiveMinutes: 90,
		MediumMinutes:          60,
	}
}

// Compute scans readings, which must be in ascending time order, each
// representing intervalMinutes of exposure. Readings without humidity are
// skipped. An interval below 1 is treated as 1.
func (e Engine) Compute(readings []types.Reading, intervalMinutes int) Result {
	if intervalMinutes <= 0 {
		intervalMinutes = 1
	}

	var (
		stats       Stats
		consecutive int
		last        float64
	)
	for _, r := range readings {
		if !types.IsFinite(r.HumidityRH) {
			continue
		}
		rh := *r.HumidityRH
		stats.ReadingCount++
		last = rh

		switch {
		case rh > e.HighRH:
			stats.MinutesOver70 += intervalMinutes
			stats.MinutesOver60 += intervalMinutes
			consecutive += intervalMinutes
			if consecutive > stats.MaxConsecutiveOver70 {
				stats.MaxConsecutiveOver70 = consecutive
			}
		case rh > e.ElevatedRH:
			stats.MinutesOver60 += intervalMinutes
			stats.Minutes60To70 += intervalMinutes
			consecutive = 0
		default:
			consecutive = 0
		}
	}

	if stats.ReadingCount == 0 {
		return Result{
			Level:       types.RiskUnknown,
			Score:       0,
			Explanation: "No humidity readings are available for this window, so mold risk cannot be assessed.",
			Stats:       stats,
		}
	}
	stats.CurrentHumidity = &last

	level, score := e.classify(stats)
	return Result{
		Level:       level,
		Score:       score,
		Explanation: e.explain(level, stats),
		Stats:       stats,
	}
}

func (e Engine) classify(s Stats) (types.RiskLevel, int) {
	switch {
	case s.MinutesOver70 > e.HighTotalMinutes || s.MaxConsecutiveOver70 > e.HighConsecutiveMinutes:
		return types.RiskHigh, min(100, 60+roundInt(float64(s.MinutesOver70)/360*40))
	case s.MinutesOver60 > e.MediumMinutes:
		return types.RiskMedium, min(59, 25+roundInt(float64(s.MinutesOver60)/240*35))
	default:
		return types.RiskLow, min(24, roundInt(float64(s.MinutesOver60)/60*24))
	}
}

func (e Engine) explain(level types.RiskLevel, s Stats) string {
	hoursOver70 := float64(s.MinutesOver70) / 60
	hoursOver60 := float64(s.MinutesOver60) / 60
	current := *s.CurrentHumidity

	switch level {
	case types.RiskHigh:
		return fmt.Sprintf(
			"Humidity was above %.0f%% for %.1f hours (longest stretch %d minutes). Current humidity is %.0f%%. Sustained levels this high let mold establish; ventilate or dehumidify.",
			e.HighRH, hoursOver70, s.MaxConsecutiveOver70, current)
	case types.RiskMedium:
		return fmt.Sprintf(
			"Humidity was above %.0f%% for %.1f hours, including %.1f hours above %.0f%%. Current humidity is %.0f%%. Keep an eye on damp areas.",
			e.ElevatedRH, hoursOver60, hoursOver70, e.HighRH, current)
	default:
		return fmt.Sprintf(
			"Humidity was above %.0f%% for only %d minutes across %d readings. Current humidity is %.0f%%.",
			e.ElevatedRH, s.MinutesOver60, s.ReadingCount, current)
	}
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
