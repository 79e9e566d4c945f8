// Package rates resolves electricity prices from the fixed Ontario time-of-use,
// ultra-low-overnight and tiered timetables.
//
// Resolution uses the wall-clock hour of the timestamp in its own location, so
// callers pass times already converted to the household's time zone.
package rates

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"homeclimate/internal/types"
)

// Period is one contiguous pricing window of a day, covering [StartHour, EndHour).
type Period struct {
	StartHour        int     `json:"start_hour"`
	EndHour          int     `json:"end_hour"`
	PriceCentsPerKWh float64 `json:"price_cents_per_kwh"`
	Label            string  `json:"label"`
}

// Contains reports whether hour falls inside the period.
func (p Period) Contains(hour int) bool {
	return hour >= p.StartHour && hour < p.EndHour
}

// TierTable is the seasonal tiered-plan price list.
type TierTable struct {
	Tier1CentsPerKWh float64 `json:"tier1_price_cents_per_kwh"`
	Tier1Label       string  `json:"tier1_label"`
	Tier2CentsPerKWh float64 `json:"tier2_price_cents_per_kwh"`
	Tier2Label       string  `json:"tier2_label"`
	ThresholdKWh     int     `json:"monthly_threshold_kwh"`
}

// Rate is the resolved price at a point in time. The tier fields are only set
// for the TIERED plan.
type Rate struct {
	PriceCentsPerKWh float64        `json:"price_cents_per_kwh"`
	PeriodLabel      string         `json:"period_label"`
	PlanType         types.PlanType `json:"plan_type"`
	Season           types.Season   `json:"season"`
	DayType          types.DayType  `json:"day_type"`
	Tier2CentsPerKWh *float64       `json:"tier2_price_cents_per_kwh,omitempty"`
	TierThresholdKWh *int           `json:"tier_threshold_kwh,omitempty"`
}

// Schedule is the full timetable for a plan in one season.
type Schedule struct {
	PlanType types.PlanType `json:"plan_type"`
	Season   types.Season   `json:"season"`
	Weekday  []Period       `json:"weekday,omitempty"`
	Weekend  []Period       `json:"weekend,omitempty"`
	Tiers    *TierTable     `json:"tiers,omitempty"`
}

// Resolver defines the rate lookup contract. Implementations never fail:
// unknown plans resolve as TOU.
type Resolver interface {
	// Current returns the price in effect at t for the given plan.
	Current(plan types.PlanType, t time.Time) Rate

	// FullSchedule returns the season's complete table for display.
	FullSchedule(plan types.PlanType, t time.Time) Schedule
}

// staticResolver is backed by the compiled-in tables.
type staticResolver struct{}

// NewStaticResolver returns the Resolver backed by the published tables.
func NewStaticResolver() Resolver {
	return staticResolver{}
}

// SeasonFor applies the calendar rule: May through October is summer.
func SeasonFor(t time.Time) types.Season {
	if m := t.Month(); m >= time.May && m <= time.October {
		return types.SeasonSummer
	}
	return types.SeasonWinter
}

// DayTypeFor classifies Saturday and Sunday as weekend.
func DayTypeFor(t time.Time) types.DayType {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return types.DayTypeWeekend
	}
	return types.DayTypeWeekday
}

func normalizePlan(plan types.PlanType) types.PlanType {
	if plan.IsValid() {
		return plan
	}
	return types.PlanTOU
}

// Current returns the rate for plan at t.
func (staticResolver) Current(plan types.PlanType, t time.Time) Rate {
	plan = normalizePlan(plan)
	season := SeasonFor(t)
	dayType := DayTypeFor(t)

	if plan == types.PlanTiered {
		tiers := tierTables[season]
		tier2 := tiers.Tier2CentsPerKWh
		threshold := tiers.ThresholdKWh
		return Rate{
			PriceCentsPerKWh: tiers.Tier1CentsPerKWh,
			PeriodLabel:      tiers.Tier1Label,
			PlanType:         plan,
			Season:           season,
			DayType:          dayType,
			Tier2CentsPerKWh: &tier2,
			TierThresholdKWh: &threshold,
		}
	}

	periods := timeOfUseTables[plan][season][dayType]
	p := lookup(periods, t.Hour())
	return Rate{
		PriceCentsPerKWh: p.PriceCentsPerKWh,
		PeriodLabel:      p.Label,
		PlanType:         plan,
		Season:           season,
		DayType:          dayType,
	}
}

// lookup scans for the period containing hour, falling back to the first
// period when nothing matches.
func lookup(periods []Period, hour int) Period {
	for _, p := range periods {
		if p.Contains(hour) {
			return p
		}
	}
	return periods[0]
}

// FullSchedule returns copies of the season's tables so callers cannot
// mutate the package data.
func (staticResolver) FullSchedule(plan types.PlanType, t time.Time) Schedule {
	plan = normalizePlan(plan)
	season := SeasonFor(t)
	s := Schedule{PlanType: plan, Season: season}

	if plan == types.PlanTiered {
		tiers := tierTables[season]
		s.Tiers = &tiers
		return s
	}

	days := timeOfUseTables[plan][season]
	s.Weekday = append([]Period(nil), days[types.DayTypeWeekday]...)
	s.Weekend = append([]Period(nil), days[types.DayTypeWeekend]...)
	return s
}

// ErrScheduleCoverage is returned by Validate for schedules that do not
// partition the day.
var ErrScheduleCoverage = errors.New("schedule does not partition [0,24)")

// Validate checks that periods cover [0,24) exactly once, with no gaps or
// overlaps and no empty periods.
func Validate(periods []Period) error {
	if len(periods) == 0 {
		return fmt.Errorf("%w: no periods", ErrScheduleCoverage)
	}
	sorted := append([]Period(nil), periods...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartHour < sorted[j].StartHour })

	next := 0
	for _, p := range sorted {
		if p.StartHour < 0 || p.EndHour > 24 || p.EndHour <= p.StartHour {
			return fmt.Errorf("%w: bad period [%d,%d)", ErrScheduleCoverage, p.StartHour, p.EndHour)
		}
		if p.StartHour != next {
			return fmt.Errorf("%w: expected period starting at %d, got %d", ErrScheduleCoverage, next, p.StartHour)
		}
		next = p.EndHour
	}
	if next != 24 {
		return fmt.Errorf("%w: day ends at %d", ErrScheduleCoverage, next)
	}
	return nil
}
