package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rmax-ai/restock/pkg/engine/forecast"
	"github.com/rmax-ai/restock/pkg/engine/history"
)

var (
	// ErrItemNotFound is returned when no item has the requested ID.
	ErrItemNotFound = errors.New("item not found")
	// ErrItemExists is returned when creating an item whose ID is taken.
	ErrItemExists = errors.New("item already exists")
	// ErrInvalidItem wraps every validation failure.
	ErrInvalidItem = errors.New("invalid item")
)

// DefaultUnit is used when an item is created without a unit.
const DefaultUnit = "un"

// Item is a tracked household supply.
type Item struct {
	ID                    string              `json:"id"`
	Name                  string              `json:"name"`
	Category              string              `json:"category,omitempty"`
	Unit                  string              `json:"unit"`
	Notes                 string              `json:"notes,omitempty"`
	Barcode               string              `json:"barcode,omitempty"`
	CurrentQuantity       float64             `json:"current_quantity"`
	MinimumQuantity       float64             `json:"minimum_quantity"`
	AcquisitionDifficulty forecast.Difficulty `json:"acquisition_difficulty"`
	UsageRate             *float64            `json:"usage_rate,omitempty"`
	UsagePeriod           forecast.Period     `json:"usage_period"`
	QuantityHistory       string              `json:"quantity_history,omitempty"`
	NotificationEnabled   bool                `json:"notification_enabled"`
	PhoneNumber           string              `json:"phone_number,omitempty"`
	LastAlertAt           *time.Time          `json:"last_alert_at,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// History decodes the item's quantity history.
func (i Item) History() history.History {
	return history.Parse(i.QuantityHistory)
}

// ForecastInput returns the fields the predictor needs.
func (i Item) ForecastInput() forecast.Item {
	return forecast.Item{
		CurrentQuantity: i.CurrentQuantity,
		MinimumQuantity: i.MinimumQuantity,
		Difficulty:      i.AcquisitionDifficulty,
		UsageRate:       i.UsageRate,
		UsagePeriod:     i.UsagePeriod,
	}
}

// IsLowStock reports whether the item is below its minimum.
func (i Item) IsLowStock() bool {
	return i.CurrentQuantity < i.MinimumQuantity
}

// IsCritical reports whether the item has run out.
func (i Item) IsCritical() bool {
	return i.CurrentQuantity <= 0
}

// Validate checks the item's fields.
func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if !finite(i.CurrentQuantity) {
		return fmt.Errorf("%w: current_quantity must be a finite number", ErrInvalidItem)
	}
	if !finite(i.MinimumQuantity) || i.MinimumQuantity < 0 {
		return fmt.Errorf("%w: minimum_quantity must be a non-negative number", ErrInvalidItem)
	}
	if i.UsageRate != nil && (!finite(*i.UsageRate) || *i.UsageRate < 0) {
		return fmt.Errorf("%w: usage_rate must be a non-negative number", ErrInvalidItem)
	}
	switch i.UsagePeriod.Normalize() {
	case forecast.PeriodDaily, forecast.PeriodWeekly, forecast.PeriodMonthly:
	default:
		return fmt.Errorf("%w: unknown usage_period %q", ErrInvalidItem, i.UsagePeriod)
	}
	return nil
}

func (i *Item) applyDefaults() {
	i.Name = strings.TrimSpace(i.Name)
	if i.Unit == "" {
		i.Unit = DefaultUnit
	}
	if i.UsagePeriod == "" {
		i.UsagePeriod = forecast.PeriodDaily
	}
	i.UsagePeriod = i.UsagePeriod.Normalize()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ItemPatch is a partial update. Nil fields are left untouched.
type ItemPatch struct {
	Name                  *string              `json:"name,omitempty"`
	Category              *string              `json:"category,omitempty"`
	Unit                  *string              `json:"unit,omitempty"`
	Notes                 *string              `json:"notes,omitempty"`
	Barcode               *string              `json:"barcode,omitempty"`
	CurrentQuantity       *float64             `json:"current_quantity,omitempty"`
	MinimumQuantity       *float64             `json:"minimum_quantity,omitempty"`
	AcquisitionDifficulty *forecast.Difficulty `json:"acquisition_difficulty,omitempty"`
	UsageRate             *float64             `json:"usage_rate,omitempty"`
	UsagePeriod           *forecast.Period     `json:"usage_period,omitempty"`
	NotificationEnabled   *bool                `json:"notification_enabled,omitempty"`
	PhoneNumber           *string              `json:"phone_number,omitempty"`
}

func (p ItemPatch) apply(i *Item) {
	if p.Name != nil {
		i.Name = *p.Name
	}
	if p.Category != nil {
		i.Category = *p.Category
	}
	if p.Unit != nil {
		i.Unit = *p.Unit
	}
	if p.Notes != nil {
		i.Notes = *p.Notes
	}
	if p.Barcode != nil {
		i.Barcode = *p.Barcode
	}
	if p.CurrentQuantity != nil {
		i.CurrentQuantity = *p.CurrentQuantity
	}
	if p.MinimumQuantity != nil {
		i.MinimumQuantity = *p.MinimumQuantity
	}
	if p.AcquisitionDifficulty != nil {
		i.AcquisitionDifficulty = *p.AcquisitionDifficulty
	}
	if p.UsageRate != nil {
		rate := *p.UsageRate
		i.UsageRate = &rate
	}
	if p.UsagePeriod != nil {
		i.UsagePeriod = *p.UsagePeriod
	}
	if p.NotificationEnabled != nil {
		i.NotificationEnabled = *p.NotificationEnabled
	}
	if p.PhoneNumber != nil {
		i.PhoneNumber = *p.PhoneNumber
	}
	i.applyDefaults()
}
