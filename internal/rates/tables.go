package rates

import "homeclimate/internal/types"

// Published Ontario Regulated Price Plan rates, cents/kWh.
const (
	touOffPeak = 9.8
	touMidPeak = 15.7
	touOnPeak  = 20.3

	uloOvernight     = 3.9
	uloWeekendOffPkg = 9.8
	uloMidPeak       = 15.7
	uloOnPeak        = 39.1

	tier1Price = 12.0
	tier2Price = 14.2

	winterTierThresholdKWh = 1000
	summerTierThresholdKWh = 600
)

// Period labels as printed on the bill.
const (
	LabelOffPeak        = "Off-Peak"
	LabelMidPeak        = "Mid-Peak"
	LabelOnPeak         = "On-Peak"
	LabelUltraLow       = "Ultra-Low Overnight"
	LabelWeekendOffPeak = "Weekend Off-Peak"
	LabelTier1          = "Tier 1"
	LabelTier2          = "Tier 2"
)

// Day schedules. Each one partitions [0,24); overnight periods that wrap
// midnight are split at 0.
var (
	touWinterWeekday = []Period{
		{StartHour: 0, EndHour: 7, PriceCentsPerKWh: touOffPeak, Label: LabelOffPeak},
		{StartHour: 7, EndHour: 11, PriceCentsPerKWh: touOnPeak, Label: LabelOnPeak},
		{StartHour: 11, EndHour: 17, PriceCentsPerKWh: touMidPeak, Label: LabelMidPeak},
		{StartHour: 17, EndHour: 19, PriceCentsPerKWh: touOnPeak, Label: LabelOnPeak},
		{StartHour: 19, EndHour: 24, PriceCentsPerKWh: touOffPeak, Label: LabelOffPeak},
	}
	touSummerWeekday = []Period{
		{StartHour: 0, EndHour: 7, PriceCentsPerKWh: touOffPeak, Label: LabelOffPeak},
		{StartHour: 7, EndHour: 11, PriceCentsPerKWh: touMidPeak, Label: LabelMidPeak},
		{StartHour: 11, EndHour: 17, PriceCentsPerKWh: touOnPeak, Label: LabelOnPeak},
		{StartHour: 17, EndHour: 19, PriceCentsPerKWh: touMidPeak, Label: LabelMidPeak},
		{StartHour: 19, EndHour: 24, PriceCentsPerKWh: touOffPeak, Label: LabelOffPeak},
	}
	touWeekend = []Period{
		{StartHour: 0, EndHour: 24, PriceCentsPerKWh: touOffPeak, Label: LabelOffPeak},
	}

	uloWeekday = []Period{
		{StartHour: 0, EndHour: 7, PriceCentsPerKWh: uloOvernight, Label: LabelUltraLow},
		{StartHour: 7, EndHour: 16, PriceCentsPerKWh: uloMidPeak, Label: LabelMidPeak},
		{StartHour: 16, EndHour: 21, PriceCentsPerKWh: uloOnPeak, Label: LabelOnPeak},
		{StartHour: 21, EndHour: 23, PriceCentsPerKWh: uloMidPeak, Label: LabelMidPeak},
		{StartHour: 23, EndHour: 24, PriceCentsPerKWh: uloOvernight, Label: LabelUltraLow},
	}
	uloWeekend = []Period{
		{StartHour: 0, EndHour: 7, PriceCentsPerKWh: uloOvernight, Label: LabelUltraLow},
		{StartHour: 7, EndHour: 23, PriceCentsPerKWh: uloWeekendOffPkg, Label: LabelWeekendOffPeak},
		{StartHour: 23, EndHour: 24, PriceCentsPerKWh: uloOvernight, Label: LabelUltraLow},
	}
)

// timeOfUseTables indexes the day schedules by plan, season and day type.
// ULO is the same in both seasons.
var timeOfUseTables = map[types.PlanType]map[types.Season]map[types.DayType][]Period{
	types.PlanTOU: {
		types.SeasonWinter: {types.DayTypeWeekday: touWinterWeekday, types.DayTypeWeekend: touWeekend},
		types.SeasonSummer: {types.DayTypeWeekday: touSummerWeekday, types.DayTypeWeekend: touWeekend},
	},
	types.PlanULO: {
		types.SeasonWinter: {types.DayTypeWeekday: uloWeekday, types.DayTypeWeekend: uloWeekend},
		types.SeasonSummer: {types.DayTypeWeekday: uloWeekday, types.DayTypeWeekend: uloWeekend},
	},
}

var tierTables = map[types.Season]TierTable{
	types.SeasonWinter: {
		Tier1CentsPerKWh: tier1Price, Tier1Label: LabelTier1,
		Tier2CentsPerKWh: tier2Price, Tier2Label: LabelTier2,
		ThresholdKWh: winterTierThresholdKWh,
	},
	types.SeasonSummer: {
		Tier1CentsPerKWh: tier1Price, Tier1Label: LabelTier1,
		Tier2CentsPerKWh: tier2Price, Tier2Label: LabelTier2,
		ThresholdKWh: summerTierThresholdKWh,
	},
}

func init() {
	for plan, seasons := range timeOfUseTables {
		for season, days := range seasons {
			for day, periods := range days {
				if err := Validate(periods); err != nil {
					panic("rates: invalid " + string(plan) + "/" + string(season) + "/" + string(day) + " table: " + err.Error())
				}
			}
		}
	}
}
