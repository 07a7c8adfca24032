package forecast

import (
	"math"
	"time"
)

// farFutureDays stands in for "never" when no consumption is observed.
const farFutureDays = 365

// maxHorizonDays keeps finite horizons inside the range of time.Duration.
const maxHorizonDays = 100_000

var difficultyBuffer = map[Difficulty]int{
	DifficultyEasy:   2,
	DifficultyMedium: 5,
	DifficultyHard:   10,
}

var periodDays = map[Period]float64{
	PeriodDaily:   1,
	PeriodWeekly:  7,
	PeriodMonthly: 30,
}

// DailyUsage converts a rate expressed per period into a per-day rate.
// Unknown periods are treated as daily.
func DailyUsage(rate float64, period Period) float64 {
	divisor, ok := periodDays[period.Normalize()]
	if !ok {
		divisor = 1
	}
	return rate / divisor
}

// BufferDays is the safety margin, in days, kept before projected depletion.
func BufferDays(d Difficulty) int {
	if b, ok := difficultyBuffer[d]; ok {
		return b
	}
	return difficultyBuffer[DifficultyEasy]
}

// DaysRemaining returns the days until depletion: 0 when already empty and
// +Inf when nothing is being consumed.
func DaysRemaining(currentQuantity, dailyUsage float64) float64 {
	if currentQuantity <= 0 {
		return 0
	}
	if dailyUsage <= 0 {
		return math.Inf(1)
	}
	return currentQuantity / dailyUsage
}

// PurchaseBy returns when the item should be bought so it arrives before
// the buffer is consumed.
func PurchaseBy(currentQuantity, dailyUsage float64, d Difficulty, now time.Time) time.Time {
	days := DaysRemaining(currentQuantity, dailyUsage)
	if math.IsInf(days, 1) {
		return now.Add(farFutureDays * 24 * time.Hour)
	}
	in := math.Min(math.Max(0, days-float64(BufferDays(d))), maxHorizonDays)
	return now.Add(time.Duration(in * float64(24*time.Hour)))
}

// UrgencyFor classifies the purchase urgency. An empty item is always
// critical.
func UrgencyFor(currentQuantity, dailyUsage float64, d Difficulty) Urgency {
	if currentQuantity <= 0 {
		return UrgencyCritical
	}

	days := DaysRemaining(currentQuantity, dailyUsage)
	buffer := float64(BufferDays(d))

	switch {
	case days <= buffer:
		return UrgencyCritical
	case days <= buffer*2:
		return UrgencyAttention
	default:
		return UrgencyOK
	}
}
