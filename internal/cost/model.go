// Package cost estimates the electricity cost of moving a room one or more
// degrees toward a target temperature, and the savings of ventilating
// instead.
//
// The thermal model is a lumped heuristic: energy per degree scales with room
// volume and a furnishing factor. It is not a heat-transfer simulation.
package cost

import (
	"math"

	"homeclimate/internal/types"
)

const (
	// DefaultACCOP is used when the caller supplies no positive COP.
	DefaultACCOP = 2.5

	// HeatCOP models resistive or furnace-equivalent heating.
	HeatCOP = 1.0

	// kWhPerM3PerDegC is the energy to warm 1 m³ of air by 1°C, before the
	// furnishing factor.
	kWhPerM3PerDegC = 0.000335
)

// HousingProfile holds the room parameters for one housing type.
type HousingProfile struct {
	Type             types.HousingType `json:"housing_type"`
	VolumeM3         float64           `json:"volume_m3"`
	FurnishingFactor float64           `json:"furnishing_factor"`
}

// KWhPerDegC returns the energy needed to shift the room by one degree.
func (p HousingProfile) KWhPerDegC() float64 {
	return p.FurnishingFactor * kWhPerM3PerDegC * p.VolumeM3
}

var housingProfiles = map[types.HousingType]HousingProfile{
	types.HousingDorm:      {Type: types.HousingDorm, VolumeM3: 30, FurnishingFactor: 5},
	types.HousingApartment: {Type: types.HousingApartment, VolumeM3: 45, FurnishingFactor: 6},
	types.HousingHouse:     {Type: types.HousingHouse, VolumeM3: 80, FurnishingFactor: 7},
	types.HousingBasement:  {Type: types.HousingBasement, VolumeM3: 40, FurnishingFactor: 7},
	types.HousingOther:     {Type: types.HousingOther, VolumeM3: 50, FurnishingFactor: 6},
}

// ProfileFor returns the profile for h, falling back to HousingOther.
func ProfileFor(h types.HousingType) HousingProfile {
	if p, ok := housingProfiles[h]; ok {
		return p
	}
	return housingProfiles[types.HousingOther]
}

// Profiles returns every housing profile in a fresh slice, ordered as the
// HousingType constants.
func Profiles() []HousingProfile {
	order := []types.HousingType{
		types.HousingDorm, types.HousingApartment, types.HousingHouse, types.HousingBasement, types.HousingOther,
	}
	out := make([]HousingProfile, 0, len(order))
	for _, h := range order {
		out = append(out, housingProfiles[h])
	}
	return out
}

// Input is the cost model request.
type Input struct {
	TinC             float64           `json:"tin_c" validate:"gte=-50,lte=60"`
	TargetC          float64           `json:"target_c" validate:"gte=-10,lte=40"`
	PriceCentsPerKWh float64           `json:"price_cents_per_kwh" validate:"gte=0"`
	HousingType      types.HousingType `json:"housing_type"`
	ACCOP            float64           `json:"ac_cop,omitempty" validate:"omitempty,gte=0"`
}

// Assumptions documents the constants behind an Estimate.
type Assumptions struct {
	HousingType      types.HousingType `json:"housing_type"`
	VolumeM3         float64           `json:"volume_m3"`
	FurnishingFactor float64           `json:"furnishing_factor"`
	KWhPerDegC       float64           `json:"kwh_per_deg_c"`
	ACCOP            float64           `json:"ac_cop"`
	HeatCOP          float64           `json:"heat_cop"`
	PriceCentsPerKWh float64           `json:"price_cents_per_kwh"`
}

// Estimate is the cost comparison for reaching the target. Dollar amounts are
// rounded to 4 decimals, energy to 3 and DeltaT to 2.
type Estimate struct {
	CostHeat    float64        `json:"cost_heat"`
	CostAC      float64        `json:"cost_ac"`
	CostWindow  float64        `json:"cost_window"`
	HVACCost    float64        `json:"hvac_cost"`
	Savings     float64        `json:"savings"`
	DeltaT      float64        `json:"delta_t"`
	KWhRoom     float64        `json:"kwh_room"`
	Mode        types.HVACMode `json:"mode"`
	Assumptions Assumptions    `json:"assumptions"`
}

// EstimateCost computes the HVAC cost of moving Tin to Target and the savings of
// ventilating instead. Ventilation is free.
func EstimateCost(in Input) Estimate {
	profile := ProfileFor(in.HousingType)
	cop := in.ACCOP
	if cop <= 0 || math.IsNaN(cop) || math.IsInf(cop, 0) {
		cop = DefaultACCOP
	}

	perDeg := profile.KWhPerDegC()
	deltaT := math.Abs(in.TargetC - in.TinC)
	kWhRoom := perDeg * deltaT

	costHeat := kWhRoom / HeatCOP * in.PriceCentsPerKWh / 100
	costAC := kWhRoom / cop * in.PriceCentsPerKWh / 100

	mode := types.ModeNone
	hvac := 0.0
	switch {
	case in.TinC > in.TargetC:
		mode, hvac = types.ModeAC, costAC
	case in.TinC < in.TargetC:
		mode, hvac = types.ModeHeat, costHeat
	}
	const window = 0.0

	return Estimate{
		CostHeat:   round(costHeat, 4),
		CostAC:     round(costAC, 4),
		CostWindow: window,
		HVACCost:   round(hvac, 4),
		Savings:    round(hvac-window, 4),
		DeltaT:     round(deltaT, 2),
		KWhRoom:    round(kWhRoom, 3),
		Mode:       mode,
		Assumptions: Assumptions{
			HousingType:      profile.Type,
			VolumeM3:         profile.VolumeM3,
			FurnishingFactor: profile.FurnishingFactor,
			KWhPerDegC:       round(perDeg, 5),
			ACCOP:            cop,
			HeatCOP:          HeatCOP,
			PriceCentsPerKWh: in.PriceCentsPerKWh,
		},
	}
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
