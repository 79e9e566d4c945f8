// Package advisor decides the single action a household should take: open a
// window, run AC, run heat, or do nothing.
//
// The decision is a fixed, ordered rule table (see Rules) evaluated over
// sanitized inputs. The engine holds no state and performs no I/O; identical
// requests always produce identical recommendations.
package advisor

import (
	"homeclimate/internal/types"
)

// Thresholds are the heuristic constants of the engine.
type Thresholds struct {
	DefaultIndoorC    float64
	DefaultOutdoorC   float64
	DefaultPriceCents float64

	ExpensiveCents float64 // price at or above is expensive
	CheapCents     float64 // price at or below is cheap

	HumidVentilationRH float64 // indoor RH above this is worth ventilating
	RainPop            float64 // forecast pop above this counts as rain

	// MaxOvershootC is how far past the far edge of the comfort band outdoor
	// air may be and still count as helping.
	MaxOvershootC float64

	NightStartHour int
	NightEndHour   int

	TipRainLookahead int // forecast entries scanned for rain tips
	TipMildLookahead int // forecast entries scanned for mild-window tips
	MildMaxRH        float64
	MildMinC         float64
	MildMaxC         float64
}

// DefaultThresholds returns the standard constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DefaultIndoorC:     21,
		DefaultOutdoorC:    10,
		DefaultPriceCents:  10,
		ExpensiveCents:     15,
		CheapCents:         5,
		HumidVentilationRH: 60,
		RainPop:            0.4,
		MaxOvershootC:      6,
		NightStartHour:     22,
		NightEndHour:       7,
		TipRainLookahead:   3,
		TipMildLookahead:   4,
		MildMaxRH:          55,
		MildMinC:           5,
		MildMaxC:           28,
	}
}

// Recommendation is the engine output. Reasons are ordered and always
// non-empty.
type Recommendation struct {
	State         types.RecommendationState `json:"state"`
	Confidence    types.Confidence          `json:"confidence"`
	Reasons       []string                  `json:"reasons"`
	ProactiveTip  *string                   `json:"proactive_tip"`
	HumidityTip   *string                   `json:"humidity_tip"`
	ComfortPeriod types.ComfortPeriod       `json:"comfort_period"`
	ComfortMinC   float64                   `json:"comfort_min_c"`
	ComfortMaxC   float64                   `json:"comfort_max_c"`
	TargetC       float64                   `json:"target_c"`
	Rule          string                    `json:"rule"`
}

// Engine evaluates the decision table.
type Engine struct {
	Thresholds Thresholds
	rules      []Rule
}

// NewEngine returns an Engine using th.
func NewEngine(th Thresholds) *Engine {
	return &Engine{Thresholds: th, rules: Rules()}
}

// Recommend returns the recommendation for req.
func (e *Engine) Recommend(req Request) Recommendation {
	c := e.Normalize(req)

	rule, out := e.decide(c)
	return Recommendation{
		State:         out.State,
		Confidence:    out.Confidence,
		Reasons:       out.Reasons,
		ProactiveTip:  e.proactiveTip(c),
		HumidityTip:   out.HumidityTip,
		ComfortPeriod: c.Period,
		ComfortMinC:   c.MinC,
		ComfortMaxC:   c.MaxC,
		TargetC:       c.TargetC,
		Rule:          rule,
	}
}

func (e *Engine) decide(c Conditions) (string, Outcome) {
	rules := e.rules
	if rules == nil {
		rules = decisionTable
	}
	for _, r := range rules {
		if r.When(c) {
			return r.Name, r.Then(c)
		}
	}
	// The table ends with an unconditional rule.
	last := decisionTable[len(decisionTable)-1]
	return last.Name, last.Then(c)
}
