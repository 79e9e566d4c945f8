package advisor

import (
	"math"
	"strings"
	"time"

	"homeclimate/internal/types"
)

// Request carries everything the engine needs for one decision. Nil numeric
// fields are unknown; Normalize substitutes defaults where a value is
// required.
type Request struct {
	IndoorTempC      *float64              `json:"indoor_temp_c"`
	IndoorRH         *float64              `json:"indoor_rh"`
	OutdoorTempC     *float64              `json:"outdoor_temp_c"`
	OutdoorRH        *float64              `json:"outdoor_rh"`
	Comfort          types.ComfortBand     `json:"comfort"`
	PriceCentsPerKWh *float64              `json:"price_cents_per_kwh"`
	PeriodLabel      string                `json:"period_label"`
	Forecast         []types.ForecastEntry `json:"forecast" validate:"omitempty,dive"`
	MoldRisk         types.RiskLevel       `json:"mold_risk"`

	// Now selects the comfort band and anchors forecast tips. Its location is
	// the household's local time.
	Now time.Time `json:"now"`
}

// Conditions are the sanitized inputs plus every derived fact the rules
// consult. Rules read Conditions only.
type Conditions struct {
	IndoorTempC      float64
	OutdoorTempC     float64
	IndoorRH         *float64
	OutdoorRH        *float64
	PriceCentsPerKWh float64
	PeriodLabel      string
	MoldRisk         types.RiskLevel

	Period   types.ComfortPeriod
	MinC     float64
	MaxC     float64
	TargetC  float64
	Forecast []types.ForecastEntry
	Now      time.Time

	Comfortable           bool
	TooHot                bool
	TooCold               bool
	OutdoorCloserToTarget bool
	OutdoorDrier          *bool // nil when either humidity is unknown
	IndoorHumid           bool
	RainComing            bool
	Expensive             bool
	Cheap                 bool

	// OutdoorHelpsCooling and OutdoorHelpsHeating say whether opening a window
	// moves the room toward comfort: outdoor air is on the right side of
	// indoor and is either closer to target or no more than the overshoot
	// margin past the far edge of the band.
	OutdoorHelpsCooling bool
	OutdoorHelpsHeating bool
}

// Normalize sanitizes req and derives the facts used by the rules. It never
// fails.
func (e *Engine) Normalize(req Request) Conditions {
	th := e.Thresholds

	c := Conditions{
		IndoorTempC:      orDefault(req.IndoorTempC, th.DefaultIndoorC),
		OutdoorTempC:     orDefault(req.OutdoorTempC, th.DefaultOutdoorC),
		IndoorRH:         finiteOrNil(req.IndoorRH),
		OutdoorRH:        finiteOrNil(req.OutdoorRH),
		PriceCentsPerKWh: th.DefaultPriceCents,
		PeriodLabel:      req.PeriodLabel,
		MoldRisk:         req.MoldRisk,
		Forecast:         req.Forecast,
		Now:              req.Now,
	}
	if types.IsFinite(req.PriceCentsPerKWh) && *req.PriceCentsPerKWh >= 0 {
		c.PriceCentsPerKWh = *req.PriceCentsPerKWh
	}
	if c.MoldRisk == "" {
		c.MoldRisk = types.RiskUnknown
	}

	c.Period, c.MinC, c.MaxC = th.selectBand(req.Comfort, req.Now)
	c.TargetC = (c.MinC + c.MaxC) / 2

	tin, tout := c.IndoorTempC, c.OutdoorTempC
	c.Comfortable = c.MinC <= tin && tin <= c.MaxC
	c.TooHot = tin > c.MaxC
	c.TooCold = tin < c.MinC
	c.OutdoorCloserToTarget = math.Abs(tout-c.TargetC) < math.Abs(tin-c.TargetC)
	if c.IndoorRH != nil && c.OutdoorRH != nil {
		drier := *c.OutdoorRH < *c.IndoorRH
		c.OutdoorDrier = &drier
	}
	c.IndoorHumid = c.IndoorRH != nil && *c.IndoorRH > th.HumidVentilationRH
	c.RainComing = th.rainComing(req.Forecast)
	c.Expensive = c.PriceCentsPerKWh >= th.ExpensiveCents
	c.Cheap = c.PriceCentsPerKWh <= th.CheapCents

	c.OutdoorHelpsCooling = tout < tin && (c.OutdoorCloserToTarget || tout >= c.MinC-th.MaxOvershootC)
	c.OutdoorHelpsHeating = tout > tin && (c.OutdoorCloserToTarget || tout <= c.MaxC+th.MaxOvershootC)

	return c
}

// selectBand returns the night band between NightStartHour and NightEndHour
// local time when both night values are set, else the day band.
func (th Thresholds) selectBand(b types.ComfortBand, now time.Time) (types.ComfortPeriod, float64, float64) {
	hour := now.Hour()
	night := hour >= th.NightStartHour || hour < th.NightEndHour
	if night && b.HasNightBand() {
		return types.PeriodNight, *b.NightMinC, *b.NightMaxC
	}
	return types.PeriodDay, b.MinC, b.MaxC
}

func (th Thresholds) rainComing(forecast []types.ForecastEntry) bool {
	for _, f := range forecast {
		if f.Pop > th.RainPop || strings.Contains(strings.ToLower(f.Description), "rain") {
			return true
		}
	}
	return false
}

func orDefault(p *float64, def float64) float64 {
	if types.IsFinite(p) {
		return *p
	}
	return def
}

func finiteOrNil(p *float64) *float64 {
	if !types.IsFinite(p) {
		return nil
	}
	v := *p
	return &v
}
