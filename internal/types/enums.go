package types

import "strings"

// PlanType identifies an electricity pricing plan.
type PlanType string

const (
	PlanTOU    PlanType = "TOU"    // Time-of-Use
	PlanULO    PlanType = "ULO"    // Ultra-Low Overnight
	PlanTiered PlanType = "TIERED" // flat rate up to a monthly threshold
)

// IsValid reports whether p is one of the known plans.
func (p PlanType) IsValid() bool {
	switch p {
	case PlanTOU, PlanULO, PlanTiered:
		return true
	}
	return false
}

// ParsePlanType normalizes s and falls back to PlanTOU for unknown input.
func ParsePlanType(s string) PlanType {
	p := PlanType(strings.ToUpper(strings.TrimSpace(s)))
	if p.IsValid() {
		return p
	}
	return PlanTOU
}

// Season selects the seasonal rate table.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSummer Season = "summer"
)

// DayType selects the weekday or weekend rate table.
type DayType string

const (
	DayTypeWeekday DayType = "weekday"
	DayTypeWeekend DayType = "weekend"
)

// RecommendationState is the single action suggested to the household.
type RecommendationState string

const (
	StateOpenWindow RecommendationState = "OPEN_WINDOW"
	StateUseAC      RecommendationState = "USE_AC"
	StateUseHeat    RecommendationState = "USE_HEAT"
	StateDoNothing  RecommendationState = "DO_NOTHING"
)

// AllRecommendationStates lists every terminal state, in display order.
var AllRecommendationStates = []RecommendationState{
	StateOpenWindow, StateUseAC, StateUseHeat, StateDoNothing,
}

// Confidence grades recommendations and estimates. ConfidenceNone is only
// produced by estimators that could not run at all.
type Confidence string

const (
	ConfidenceNone   Confidence = "NONE"
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// RiskLevel is the mold risk classification. RiskUnknown means no humidity
// data was available and must be rendered differently from RiskLow.
type RiskLevel string

const (
	RiskUnknown RiskLevel = "UNKNOWN"
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
)

// AllRiskLevels lists every risk level, in severity order.
var AllRiskLevels = []RiskLevel{RiskUnknown, RiskLow, RiskMedium, RiskHigh}

// ParseRiskLevel normalizes s and falls back to RiskUnknown.
func ParseRiskLevel(s string) RiskLevel {
	switch l := RiskLevel(strings.ToUpper(strings.TrimSpace(s))); l {
	case RiskLow, RiskMedium, RiskHigh:
		return l
	}
	return RiskUnknown
}

// HVACMode is the equipment the cost model assumes would run.
type HVACMode string

const (
	ModeAC   HVACMode = "AC"
	ModeHeat HVACMode = "HEAT"
	ModeNone HVACMode = "NONE"
)

// HousingType selects a housing profile for the cost model.
type HousingType string

const (
	HousingDorm      HousingType = "dorm"
	HousingApartment HousingType = "apartment"
	HousingHouse     HousingType = "house"
	HousingBasement  HousingType = "basement"
	HousingOther     HousingType = "other"
)

// IsValid reports whether h is one of the known housing profiles.
func (h HousingType) IsValid() bool {
	switch h {
	case HousingDorm, HousingApartment, HousingHouse, HousingBasement, HousingOther:
		return true
	}
	return false
}

// ParseHousingType normalizes s and falls back to HousingOther.
func ParseHousingType(s string) HousingType {
	h := HousingType(strings.ToLower(strings.TrimSpace(s)))
	if h.IsValid() {
		return h
	}
	return HousingOther
}

// ComfortPeriod reports which comfort band was applied.
type ComfortPeriod string

const (
	PeriodDay   ComfortPeriod = "day"
	PeriodNight ComfortPeriod = "night"
)
