package forecast

import (
	"strings"
	"time"
)

// MinDataPoints is the minimum number of valid observations needed before a
// regression is attempted.
const MinDataPoints = 5

// saturationPoints is the observation count at which the data-volume factor
// of the confidence score reaches 1.
const saturationPoints = 30

// Difficulty describes how hard an item is to acquire. Only the three named
// values are meaningful; anything else is treated as Easy.
type Difficulty int

const (
	DifficultyEasy   Difficulty = 0
	DifficultyMedium Difficulty = 5
	DifficultyHard   Difficulty = 10
)

// Period is the unit a user-declared usage rate is expressed in.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Normalize lower-cases and trims the period.
func (p Period) Normalize() Period {
	return Period(strings.ToLower(strings.TrimSpace(string(p))))
}

// Urgency is the purchase urgency tier.
type Urgency string

const (
	UrgencyOK        Urgency = "ok"
	UrgencyAttention Urgency = "attention"
	UrgencyCritical  Urgency = "critical"
)

// Rank orders urgencies from most to least pressing.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyAttention:
		return 1
	default:
		return 2
	}
}

// Source names where the daily usage figure of a prediction came from.
type Source string

const (
	SourceRegression Source = "regression"
	SourceDeclared   Source = "declared"
	SourceNone       Source = "none"
)

// Item is the item metadata a forecast needs.
type Item struct {
	CurrentQuantity float64
	MinimumQuantity float64
	Difficulty      Difficulty
	UsageRate       *float64
	UsagePeriod     Period
}

// Prediction is the forecast returned to callers.
type Prediction struct {
	DaysRemaining     float64   `json:"days_remaining"`
	BufferDays        int       `json:"buffer_days"`
	PurchaseBy        time.Time `json:"purchase_by"`
	Urgency           Urgency   `json:"urgency"`
	Confidence        float64   `json:"confidence"`
	NeedsTracking     bool      `json:"needs_tracking"`
	DailyUsage        float64   `json:"daily_usage"`
	Source            Source    `json:"source"`
	AverageDailyUsage *float64  `json:"average_daily_usage,omitempty"`
}

// Point is a single regression sample: quantity observed a number of whole
// days after the earliest valid observation.
type Point struct {
	Day      float64
	Quantity float64
}

// Fit is the result of fitting a model to a set of points.
type Fit struct {
	Slope     float64
	Intercept float64
	R2        float64
}

// Model defines the interface for consumption models.
type Model interface {
	Fit(points []Point) (Fit, error)
}

// Capability selects whether a statistical model backs the predictor.
type Capability string

const (
	CapabilityRegression Capability = "regression"
	CapabilityNone       Capability = "none"
)
