package notify

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rmax-ai/restock/pkg/engine/forecast"
)

// restockBuffer is the number of days of usage added on top of the target
// stock when suggesting a purchase quantity.
var restockBuffer = map[forecast.Difficulty]float64{
	forecast.DifficultyEasy:   3,
	forecast.DifficultyMedium: 7,
	forecast.DifficultyHard:   14,
}

const defaultRestockBuffer = 7

// targetFactor is the share of the minimum quantity a purchase should reach.
const targetFactor = 1.5

// SuggestedQuantity returns how much to buy so that stock reaches 150% of the
// minimum plus enough for the restock window. A nil or zero rate contributes
// nothing, and so does a rate with an unrecognised period. The result is
// rounded to one decimal and never below 1.
func SuggestedQuantity(current, minimum float64, rate *float64, period forecast.Period, d forecast.Difficulty) float64 {
	buffer, ok := restockBuffer[d]
	if !ok {
		buffer = defaultRestockBuffer
	}

	var daily float64
	if rate != nil && *rate != 0 {
		switch period.Normalize() {
		case forecast.PeriodDaily:
			daily = *rate
		case forecast.PeriodWeekly:
			daily = *rate / 7
		case forecast.PeriodMonthly:
			daily = *rate / 30
		}
	}

	suggested := (minimum*targetFactor - current) + daily*buffer
	rounded := decimal.NewFromFloat(suggested).Round(1).InexactFloat64()
	return math.Max(1, rounded)
}
