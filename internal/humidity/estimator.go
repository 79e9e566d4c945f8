// Package humidity estimates indoor relative humidity for devices without a
// humidity sensor.
//
// The estimate assumes indoor air is outdoor air that has been exchanged and
// brought to indoor temperature: its absolute moisture is kept while its
// saturation vapor pressure changes. A constant boost stands in for indoor
// moisture sources. The result is a lower bound, not a measurement.
package humidity

import (
	"math"

	"homeclimate/internal/types"
)

// DefaultMoistureBoostPct is added to the pure air-exchange estimate.
const DefaultMoistureBoostPct = 8.0

// MethodVaporPressureExchange identifies the estimation method in results.
const MethodVaporPressureExchange = "vapor_pressure_exchange"

// Magnus coefficients over water, hPa and °C.
const (
	magnusA = 6.112
	magnusB = 17.67
	magnusC = 243.5
)

// Confidence cutoffs on |indoor - outdoor| in °C.
const (
	highConfidenceMaxDeltaC   = 5.0
	mediumConfidenceMaxDeltaC = 15.0
)

// Estimate is the result of one estimation.
type Estimate struct {
	HumidityRH *float64         `json:"humidity_rh"`
	Confidence types.Confidence `json:"confidence"`
	Method     string           `json:"method"`
}

// Estimator computes humidity estimates. The zero value adds no boost; use
// NewEstimator or Default for the standard configuration.
type Estimator struct {
	MoistureBoostPct float64
}

// NewEstimator returns an Estimator with the given moisture boost.
func NewEstimator(boostPct float64) Estimator {
	return Estimator{MoistureBoostPct: boostPct}
}

// Default returns an Estimator using DefaultMoistureBoostPct.
func Default() Estimator {
	return NewEstimator(DefaultMoistureBoostPct)
}

// SaturationVaporPressure returns e_sat(T) in hPa.
func SaturationVaporPressure(tempC float64) float64 {
	return magnusA * math.Exp(magnusB*tempC/(tempC+magnusC))
}

// Estimate derives indoor RH from indoor temperature and outdoor temperature
// and humidity. Any nil or non-finite input yields a nil humidity with
// ConfidenceNone.
func (e Estimator) Estimate(indoorC, outdoorC, outdoorRH *float64) Estimate {
	if !types.IsFinite(indoorC) || !types.IsFinite(outdoorC) || !types.IsFinite(outdoorRH) {
		return Estimate{Confidence: types.ConfidenceNone, Method: MethodVaporPressureExchange}
	}

	tin, tout, rhOut := *indoorC, *outdoorC, *outdoorRH

	actual := rhOut / 100 * SaturationVaporPressure(tout)
	rh := actual/SaturationVaporPressure(tin)*100 + e.MoistureBoostPct
	rh = roundTo(clamp(rh, 0, 100), 1)

	return Estimate{
		HumidityRH: &rh,
		Confidence: confidenceFor(math.Abs(tin - tout)),
		Method:     MethodVaporPressureExchange,
	}
}

func confidenceFor(deltaC float64) types.Confidence {
	switch {
	case deltaC < highConfidenceMaxDeltaC:
		return types.ConfidenceHigh
	case deltaC < mediumConfidenceMaxDeltaC:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

// DewPointC returns the dew point for air at tempC and rh percent, rounded to
// one decimal. It returns nil for non-finite input or rh outside (0,100].
func DewPointC(tempC, rh *float64) *float64 {
	if !types.IsFinite(tempC) || !types.IsFinite(rh) || *rh <= 0 || *rh > 100 {
		return nil
	}
	t := *tempC
	gamma := math.Log(*rh/100) + magnusB*t/(magnusC+t)
	dp := roundTo(magnusC*gamma/(magnusB-gamma), 1)
	return &dp
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
