package advisor

import (
	"fmt"
	"math"
	"time"
)

// proactiveTip looks ahead in the forecast. Rain within the rain lookahead
// wins over a dry, mild window within the mild lookahead.
func (e *Engine) proactiveTip(c Conditions) *string {
	th := e.Thresholds

	for i, f := range c.Forecast {
		if i >= th.TipRainLookahead {
			break
		}
		if f.Pop > th.RainPop {
			until := f.Time.Sub(c.Now)
			var tip string
			switch hours := math.Round(until.Hours()); {
			case until < time.Hour:
				tip = fmt.Sprintf("Rain is likely within the hour (%.0f%% chance). Ventilate now before it arrives.", f.Pop*100)
			case hours == 1:
				tip = fmt.Sprintf("Rain is likely in about 1 hour (%.0f%% chance). Ventilate now before it arrives.", f.Pop*100)
			default:
				tip = fmt.Sprintf("Rain is likely in about %.0f hours (%.0f%% chance). Ventilate now before it arrives.", hours, f.Pop*100)
			}
			return &tip
		}
	}

	for i, f := range c.Forecast {
		if i >= th.TipMildLookahead {
			break
		}
		if f.HumidityRH < th.MildMaxRH && f.TempC > th.MildMinC && f.TempC < th.MildMaxC {
			at := f.Time
			if loc := c.Now.Location(); loc != nil {
				at = at.In(loc)
			}
			tip := fmt.Sprintf("Good ventilation window coming at %s: dry and mild (%.1f°C, %.0f%% humidity).", at.Format("15:04"), f.TempC, f.HumidityRH)
			return &tip
		}
	}
	return nil
}
