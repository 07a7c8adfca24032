package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyUsage(t *testing.T) {
	tests := []struct {
		rate   float64
		period Period
		want   float64
	}{
		{3, PeriodDaily, 3},
		{14, PeriodWeekly, 2},
		{30, PeriodMonthly, 1},
		{14, " Weekly ", 2},
		{5, "fortnightly", 5},
		{5, "", 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, DailyUsage(tt.rate, tt.period), 1e-9, "%v %q", tt.rate, tt.period)
	}
}

func TestBufferDays(t *testing.T) {
	assert.Equal(t, 2, BufferDays(DifficultyEasy))
	assert.Equal(t, 5, BufferDays(DifficultyMedium))
	assert.Equal(t, 10, BufferDays(DifficultyHard))
	assert.Equal(t, 2, BufferDays(999))
	assert.Equal(t, 2, BufferDays(-1))
}

func TestDaysRemaining(t *testing.T) {
	assert.Equal(t, 0.0, DaysRemaining(0, 1))
	assert.Equal(t, 0.0, DaysRemaining(-2, 0))
	assert.True(t, math.IsInf(DaysRemaining(4, 0), 1))
	assert.True(t, math.IsInf(DaysRemaining(4, -1), 1))
	assert.Equal(t, 4.0, DaysRemaining(8, 2))
}

func TestPurchaseBy(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, PurchaseBy(10, 1, DifficultyEasy, now).Equal(now.Add(8*24*time.Hour)))
	assert.True(t, PurchaseBy(10, 1, DifficultyHard, now).Equal(now))
	assert.True(t, PurchaseBy(10, 0, DifficultyHard, now).Equal(now.Add(365*24*time.Hour)))
	assert.True(t, PurchaseBy(0, 1, DifficultyEasy, now).Equal(now))
	assert.True(t, PurchaseBy(3, 2, DifficultyEasy, now).Equal(now))
}

func TestPurchaseBy_LongHorizonStaysInFuture(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		q, u float64
	}{
		{"tiny fitted rate", 20, 0.0001},
		{"monthly rate with large stock", 10000, DailyUsage(1, PeriodMonthly)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			by := PurchaseBy(tt.q, tt.u, DifficultyEasy, now)
			assert.False(t, by.Before(now), "purchase by %v is before %v", by, now)
			assert.True(t, by.After(now.Add(farFutureDays*24*time.Hour)))
		})
	}
}

func TestUrgencyFor(t *testing.T) {
	tests := []struct {
		name string
		q, u float64
		d    Difficulty
		want Urgency
	}{
		{"empty", 0, 0, DifficultyEasy, UrgencyCritical},
		{"negative", -1, 1, DifficultyEasy, UrgencyCritical},
		{"within buffer", 2, 1, DifficultyEasy, UrgencyCritical},
		{"within double buffer", 4, 1, DifficultyEasy, UrgencyAttention},
		{"plenty", 5, 1, DifficultyEasy, UrgencyOK},
		{"no usage", 5, 0, DifficultyHard, UrgencyOK},
		{"hard item", 15, 1, DifficultyHard, UrgencyAttention},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UrgencyFor(tt.q, tt.u, tt.d))
		})
	}
}

func TestUrgency_Rank(t *testing.T) {
	assert.Less(t, UrgencyCritical.Rank(), UrgencyAttention.Rank())
	assert.Less(t, UrgencyAttention.Rank(), UrgencyOK.Rank())
}
