package advisor

import (
	"fmt"
	"strconv"

	"homeclimate/internal/types"
)

// Outcome is what a matching rule decides.
type Outcome struct {
	State       types.RecommendationState
	Confidence  types.Confidence
	Reasons     []string
	HumidityTip *string
}

// Rule is one row of the decision table. Rules are evaluated in order and the
// first whose When returns true decides.
type Rule struct {
	Name string
	When func(Conditions) bool
	Then func(Conditions) Outcome
}

// Rule names, in priority order.
const (
	RuleComfortableHumid = "comfortable_humid_ventilate"
	RuleComfortableHold  = "comfortable_hold"
	RuleMoldVentilate    = "mold_ventilate"
	RuleHotVentilate     = "hot_ventilate"
	RuleHotCool          = "hot_use_ac"
	RuleColdVentilate    = "cold_ventilate"
	RuleColdHeat         = "cold_use_heat"
	RuleMonitor          = "monitor"
)

var decisionTable = []Rule{
	{
		Name: RuleComfortableHumid,
		When: func(c Conditions) bool {
			return c.Comfortable && c.MoldRisk != types.RiskHigh &&
				c.IndoorHumid && isTrue(c.OutdoorDrier) && !c.RainComing
		},
		Then: func(c Conditions) Outcome {
			return Outcome{
				State:      types.StateOpenWindow,
				Confidence: types.ConfidenceMedium,
				Reasons: []string{
					comfortReason(c),
					fmt.Sprintf("Indoor humidity is high at %s while outdoor air is drier at %s.", pct(c.IndoorRH), pct(c.OutdoorRH)),
					"Ventilating briefly will lower humidity without changing the temperature much.",
				},
			}
		},
	},
	{
		Name: RuleComfortableHold,
		When: func(c Conditions) bool {
			return c.Comfortable && c.MoldRisk != types.RiskHigh
		},
		Then: func(c Conditions) Outcome {
			reasons := []string{comfortReason(c), "No action is needed right now."}
			if c.MoldRisk == types.RiskMedium {
				reasons = append(reasons, "Mold risk is MEDIUM from recent humidity; ventilate when outdoor air is drier.")
			}
			return Outcome{State: types.StateDoNothing, Confidence: types.ConfidenceHigh, Reasons: reasons}
		},
	},
	{
		Name: RuleMoldVentilate,
		When: func(c Conditions) bool {
			return c.MoldRisk == types.RiskHigh && !isFalse(c.OutdoorDrier) && !c.RainComing
		},
		Then: func(c Conditions) Outcome {
			reasons := []string{
				"Mold risk is HIGH after sustained humidity in the last 24 hours.",
				fmt.Sprintf("Indoor humidity is %s; outdoor humidity is %s.", pct(c.IndoorRH), pct(c.OutdoorRH)),
				"Ventilating takes priority over temperature comfort until humidity drops.",
			}
			if !c.Comfortable {
				reasons = append(reasons, fmt.Sprintf("Indoor temperature is %.1f°C, outside your %.1f-%.1f°C range.", c.IndoorTempC, c.MinC, c.MaxC))
			}
			return Outcome{State: types.StateOpenWindow, Confidence: types.ConfidenceHigh, Reasons: reasons}
		},
	},
	{
		Name: RuleHotVentilate,
		When: func(c Conditions) bool {
			return c.TooHot && c.OutdoorHelpsCooling && !c.RainComing
		},
		Then: func(c Conditions) Outcome {
			conf := types.ConfidenceHigh
			if isFalse(c.OutdoorDrier) {
				conf = types.ConfidenceMedium
			}
			reasons := []string{
				fmt.Sprintf("Indoor temperature is %.1f°C, above your maximum of %.1f°C.", c.IndoorTempC, c.MaxC),
				fmt.Sprintf("Outdoor air is cooler at %.1f°C and no rain is expected.", c.OutdoorTempC),
				humidityComparison(c),
				priceReason(c, "Running AC"),
			}
			return Outcome{State: types.StateOpenWindow, Confidence: conf, Reasons: reasons}
		},
	},
	{
		Name: RuleHotCool,
		When: func(c Conditions) bool { return c.TooHot },
		Then: func(c Conditions) Outcome {
			reasons := []string{
				fmt.Sprintf("Indoor temperature is %.1f°C, above your maximum of %.1f°C.", c.IndoorTempC, c.MaxC),
				blockedVentilationReason(c),
				priceReason(c, "Cooling"),
			}
			out := Outcome{State: types.StateUseAC, Confidence: types.ConfidenceHigh, Reasons: reasons}
			if c.IndoorHumid {
				tip := fmt.Sprintf("Indoor humidity is %s. AC removes moisture poorly above 60%%; ventilate first when outdoor air is drier.", pct(c.IndoorRH))
				out.HumidityTip = &tip
			}
			return out
		},
	},
	{
		Name: RuleColdVentilate,
		When: func(c Conditions) bool {
			return c.TooCold && c.OutdoorHelpsHeating && !c.RainComing
		},
		Then: func(c Conditions) Outcome {
			return Outcome{
				State:      types.StateOpenWindow,
				Confidence: types.ConfidenceMedium,
				Reasons: []string{
					fmt.Sprintf("Indoor temperature is %.1f°C, below your minimum of %.1f°C.", c.IndoorTempC, c.MinC),
					fmt.Sprintf("Outdoor air is warmer at %.1f°C and no rain is expected.", c.OutdoorTempC),
					priceReason(c, "Heating"),
				},
			}
		},
	},
	{
		Name: RuleColdHeat,
		When: func(c Conditions) bool { return c.TooCold },
		Then: func(c Conditions) Outcome {
			return Outcome{
				State:      types.StateUseHeat,
				Confidence: types.ConfidenceHigh,
				Reasons: []string{
					fmt.Sprintf("Indoor temperature is %.1f°C, below your minimum of %.1f°C.", c.IndoorTempC, c.MinC),
					blockedVentilationReason(c),
					priceReason(c, "Heating"),
				},
			}
		},
	},
	{
		Name: RuleMonitor,
		When: func(Conditions) bool { return true },
		Then: func(c Conditions) Outcome {
			return Outcome{
				State:      types.StateDoNothing,
				Confidence: types.ConfidenceLow,
				Reasons: []string{
					fmt.Sprintf("Conditions are mixed (indoor %.1f°C, outdoor %.1f°C, mold risk %s).", c.IndoorTempC, c.OutdoorTempC, c.MoldRisk),
					"Monitor conditions and check again later.",
				},
			}
		},
	},
}

// Rules returns the decision table in priority order. The slice is a copy.
func Rules() []Rule {
	return append([]Rule(nil), decisionTable...)
}

func comfortReason(c Conditions) string {
	return fmt.Sprintf("Indoor temperature is %.1f°C, within your %s range of %.1f-%.1f°C.", c.IndoorTempC, c.Period, c.MinC, c.MaxC)
}

func humidityComparison(c Conditions) string {
	switch {
	case c.OutdoorDrier == nil:
		return "Humidity comparison is unavailable."
	case *c.OutdoorDrier:
		return fmt.Sprintf("Outdoor air is drier (%s vs %s indoors).", pct(c.OutdoorRH), pct(c.IndoorRH))
	default:
		return fmt.Sprintf("Outdoor air is more humid (%s vs %s indoors), so the room may feel muggy.", pct(c.OutdoorRH), pct(c.IndoorRH))
	}
}

func blockedVentilationReason(c Conditions) string {
	if c.RainComing {
		return fmt.Sprintf("Rain is expected, so opening windows is not advised (outdoor %.1f°C).", c.OutdoorTempC)
	}
	return fmt.Sprintf("Outdoor air at %.1f°C will not bring the room toward %.1f°C.", c.OutdoorTempC, c.TargetC)
}

func priceReason(c Conditions, action string) string {
	price := strconv.FormatFloat(c.PriceCentsPerKWh, 'f', -1, 64)
	label := c.PeriodLabel
	if label == "" {
		label = "current rate"
	}
	switch {
	case c.Expensive:
		return fmt.Sprintf("Electricity is expensive now (%s, %s¢/kWh). %s costs more than usual.", label, price, action)
	case c.Cheap:
		return fmt.Sprintf("Electricity is cheap now (%s, %s¢/kWh). %s is inexpensive.", label, price, action)
	default:
		return fmt.Sprintf("Electricity is %s¢/kWh (%s).", price, label)
	}
}

func pct(p *float64) string {
	if p == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.0f%%", *p)
}

func isTrue(b *bool) bool  { return b != nil && *b }
func isFalse(b *bool) bool { return b != nil && !*b }
