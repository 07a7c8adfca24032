package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmax-ai/restock/pkg/engine/forecast"
	"github.com/rmax-ai/restock/pkg/engine/history"
	"github.com/rmax-ai/restock/pkg/logger"
	"github.com/rmax-ai/restock/pkg/notify"
)

// Inventory is the item service: CRUD, quantity tracking and every view
// derived from forecasts.
type Inventory struct {
	store      ItemStore
	predictor  *forecast.Predictor
	dispatcher *Dispatcher
	log        *logger.Logger
	now        func() time.Time
	checkDays  int
	shortcut   string
}

// NewInventory creates an inventory backed by store.
func NewInventory(store ItemStore, predictor *forecast.Predictor) *Inventory {
	if predictor == nil {
		predictor = forecast.NewPredictor(forecast.CapabilityRegression)
	}
	return &Inventory{
		store:     store,
		predictor: predictor,
		log:       logger.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
		checkDays: history.DefaultCheckThresholdDays,
		shortcut:  notify.DefaultShortcut,
	}
}

// SetDispatcher enables low-stock alerts.
func (inv *Inventory) SetDispatcher(d *Dispatcher) {
	inv.dispatcher = d
}

// SetLogger sets the service logger.
func (inv *Inventory) SetLogger(l *logger.Logger) {
	if l != nil {
		inv.log = l
	}
}

// SetClock overrides the time source.
func (inv *Inventory) SetClock(now func() time.Time) {
	inv.now = now
}

// SetCheckThreshold sets after how many days without an observation an
// item needs a quantity check.
func (inv *Inventory) SetCheckThreshold(days int) {
	if days > 0 {
		inv.checkDays = days
	}
}

// SetShortcut sets the Apple Shortcut named in notification links.
func (inv *Inventory) SetShortcut(name string) {
	if name != "" {
		inv.shortcut = name
	}
}

// CreateItem validates and stores a new item. An empty ID is replaced by a
// fresh UUID.
func (inv *Inventory) CreateItem(ctx context.Context, item Item) (Item, error) {
	item.applyDefaults()
	if err := item.Validate(); err != nil {
		return Item{}, err
	}

	now := inv.now()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	item.LastAlertAt = nil
	if item.QuantityHistory != "" {
		item.QuantityHistory = history.Parse(item.QuantityHistory).String()
	}

	if err := inv.store.Create(ctx, item); err != nil {
		return Item{}, fmt.Errorf("failed to create item: %w", err)
	}
	RestockItemQuantity.WithLabelValues(item.ID).Set(item.CurrentQuantity)
	inv.log.Infow("item_created", "item_id", item.ID, "name", item.Name)
	return item, nil
}

// GetItem returns one item.
func (inv *Inventory) GetItem(ctx context.Context, id string) (Item, error) {
	item, err := inv.store.Get(ctx, id)
	if err != nil {
		return Item{}, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

// ListItems returns every item.
func (inv *Inventory) ListItems(ctx context.Context) ([]Item, error) {
	items, err := inv.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// DeleteItem removes an item.
func (inv *Inventory) DeleteItem(ctx context.Context, id string) error {
	if err := inv.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	RestockItemQuantity.DeleteLabelValues(id)
	RestockDaysRemaining.DeleteLabelValues(id)
	inv.log.Infow("item_deleted", "item_id", id)
	return nil
}

// UpdateItem applies a partial update. A quantity change is appended to the
// item's history in the same write, and an item that drops below its
// minimum triggers a low-stock alert once the write has committed.
func (inv *Inventory) UpdateItem(ctx context.Context, id string, patch ItemPatch) (Item, error) {
	now := inv.now()

	var (
		alert    bool
		previous *time.Time
	)
	updated, err := inv.store.Update(ctx, id, func(it *Item) error {
		before := cloneItem(*it)
		patch.apply(it)
		if err := it.Validate(); err != nil {
			return err
		}

		if it.CurrentQuantity != before.CurrentQuantity {
			it.QuantityHistory = history.Append(before.QuantityHistory, before.CurrentQuantity, it.CurrentQuantity, now)
		}
		it.UpdatedAt = now

		previous = before.LastAlertAt
		alert = inv.dispatcher != nil && inv.dispatcher.claim(before, it, now)
		return nil
	})
	if err != nil {
		return Item{}, fmt.Errorf("failed to update item %s: %w", id, err)
	}

	RestockItemQuantity.WithLabelValues(updated.ID).Set(updated.CurrentQuantity)
	inv.log.Debugw("item_updated", "item_id", updated.ID, "quantity", updated.CurrentQuantity)

	if alert {
		if err := inv.dispatcher.deliver(ctx, updated, previous); err != nil {
			return inv.GetItem(ctx, id)
		}
	}
	return updated, nil
}

// RecordQuantity is shorthand for an update that only sets the quantity.
func (inv *Inventory) RecordQuantity(ctx context.Context, id string, quantity float64) (Item, error) {
	return inv.UpdateItem(ctx, id, ItemPatch{CurrentQuantity: &quantity})
}

// ItemPrediction is a forecast labelled with its item.
type ItemPrediction struct {
	ItemID   string `json:"item_id"`
	ItemName string `json:"item_name"`
	forecast.Prediction
}

// Forecast predicts when an item must be bought.
func (inv *Inventory) Forecast(ctx context.Context, id string) (ItemPrediction, error) {
	item, err := inv.GetItem(ctx, id)
	if err != nil {
		return ItemPrediction{}, err
	}
	return inv.forecast(item), nil
}

func (inv *Inventory) forecast(item Item) ItemPrediction {
	pred := inv.predictor.Forecast(item.History(), item.ForecastInput(), inv.now())
	RestockForecastTotal.WithLabelValues(string(pred.Source)).Inc()
	RestockDaysRemaining.WithLabelValues(item.ID).Set(pred.DaysRemaining)
	return ItemPrediction{ItemID: item.ID, ItemName: item.Name, Prediction: pred}
}

// ShoppingEntry is one line of the shopping list.
type ShoppingEntry struct {
	ID                    string              `json:"id"`
	Name                  string              `json:"name"`
	CurrentQuantity       float64             `json:"current_quantity"`
	MinimumQuantity       float64             `json:"minimum_quantity"`
	Unit                  string              `json:"unit"`
	Needed                float64             `json:"needed"`
	Suggested             float64             `json:"suggested"`
	Urgency               forecast.Urgency    `json:"urgency"`
	AcquisitionDifficulty forecast.Difficulty `json:"acquisition_difficulty"`
	PurchaseBy            *time.Time          `json:"purchase_by"`
	DaysRemaining         *float64            `json:"days_remaining"`
}

// ShoppingList returns every item below its minimum, most urgent first and
// then by purchase date.
func (inv *Inventory) ShoppingList(ctx context.Context) ([]ShoppingEntry, error) {
	items, err := inv.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	now := inv.now()
	list := make([]ShoppingEntry, 0)
	for _, item := range items {
		if !item.IsLowStock() {
			continue
		}

		pred := inv.predictor.Forecast(item.History(), item.ForecastInput(), now)
		daily := pred.DailyUsage

		entry := ShoppingEntry{
			ID:                    item.ID,
			Name:                  item.Name,
			CurrentQuantity:       item.CurrentQuantity,
			MinimumQuantity:       item.MinimumQuantity,
			Unit:                  item.Unit,
			Needed:                item.MinimumQuantity - item.CurrentQuantity,
			Suggested:             notify.SuggestedQuantity(item.CurrentQuantity, item.MinimumQuantity, item.UsageRate, item.UsagePeriod, item.AcquisitionDifficulty),
			Urgency:               forecast.UrgencyAttention,
			AcquisitionDifficulty: item.AcquisitionDifficulty,
		}
		if item.IsCritical() {
			entry.Urgency = forecast.UrgencyCritical
		}
		if daily > 0 {
			by := forecast.PurchaseBy(item.CurrentQuantity, daily, item.AcquisitionDifficulty, now)
			entry.PurchaseBy = &by
		}
		if days := forecast.DaysRemaining(item.CurrentQuantity, daily); !math.IsInf(days, 1) {
			rounded := decimal.NewFromFloat(days).Round(1).InexactFloat64()
			entry.DaysRemaining = &rounded
		}
		list = append(list, entry)
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Urgency.Rank() != b.Urgency.Rank() {
			return a.Urgency.Rank() < b.Urgency.Rank()
		}
		switch {
		case a.PurchaseBy != nil && b.PurchaseBy != nil && !a.PurchaseBy.Equal(*b.PurchaseBy):
			return a.PurchaseBy.Before(*b.PurchaseBy)
		case a.PurchaseBy != nil && b.PurchaseBy == nil:
			return true
		case a.PurchaseBy == nil && b.PurchaseBy != nil:
			return false
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return list, nil
}

// Alert flags an item that needs the user's attention.
type Alert struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	NeedsQuantityCheck bool    `json:"needs_quantity_check"`
	IsLowStock         bool    `json:"is_low_stock"`
	IsCritical         bool    `json:"is_critical"`
	CurrentQuantity    float64 `json:"current_quantity"`
	Unit               string  `json:"unit"`
}

// Alerts returns items that are low on stock or have not been checked
// recently.
func (inv *Inventory) Alerts(ctx context.Context) ([]Alert, error) {
	items, err := inv.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	now := inv.now()
	alerts := make([]Alert, 0)
	for _, item := range items {
		needsCheck := item.History().NeedsCheckReminder(now, inv.checkDays)
		if !needsCheck && !item.IsLowStock() {
			continue
		}
		alerts = append(alerts, Alert{
			ID:                 item.ID,
			Name:               item.Name,
			NeedsQuantityCheck: needsCheck,
			IsLowStock:         item.IsLowStock(),
			IsCritical:         item.IsCritical(),
			CurrentQuantity:    item.CurrentQuantity,
			Unit:               item.Unit,
		})
	}
	return alerts, nil
}

// Notifications builds the pending reminders: a low-stock notice for items
// below their minimum, otherwise a check reminder for stale items.
func (inv *Inventory) Notifications(ctx context.Context) ([]notify.Notification, error) {
	items, err := inv.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	now := inv.now()
	out := make([]notify.Notification, 0)
	for _, item := range items {
		h := item.History()

		var n notify.Notification
		switch {
		case item.IsLowStock():
			n = notify.LowStockNotification(inv.shortcut, item.Name, item.CurrentQuantity, item.Unit, inv.daysRemaining(item, h), now)
		case h.NeedsCheckReminder(now, inv.checkDays):
			last, _ := h.LastCheck()
			n = notify.CheckReminderNotification(inv.shortcut, item.Name, last, now)
		default:
			continue
		}
		n.ID = uuid.NewString()
		n.ItemID = item.ID
		out = append(out, n)
	}
	return out, nil
}

// DispatchPending sends the pending low-stock notifications through the
// dispatcher and returns how many alerts went out. Each claim is made in an
// atomic update so concurrent pollers never alert twice within the cooldown.
func (inv *Inventory) DispatchPending(ctx context.Context) (int, error) {
	if inv.dispatcher == nil {
		return 0, nil
	}
	pending, err := inv.Notifications(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, n := range pending {
		if n.Type != notify.TypeLowStock {
			continue
		}

		now := inv.now()
		var (
			claimed  bool
			previous *time.Time
		)
		item, err := inv.store.Update(ctx, n.ItemID, func(it *Item) error {
			previous = it.LastAlertAt
			claimed = inv.dispatcher.claimPending(it, now)
			return nil
		})
		if errors.Is(err, ErrItemNotFound) {
			continue
		}
		if err != nil {
			return sent, fmt.Errorf("failed to claim alert for %s: %w", n.ItemID, err)
		}
		if !claimed {
			continue
		}
		if err := inv.dispatcher.deliver(ctx, item, previous); err != nil {
			continue
		}
		sent++
	}
	return sent, nil
}

// daysRemaining estimates depletion for notifications. It is nil when
// neither a learned nor a declared non-zero rate is available.
func (inv *Inventory) daysRemaining(item Item, h history.History) *float64 {
	var daily float64
	if rate, ok := inv.predictor.PredictUsageRate(h); ok && rate > 0 {
		daily = rate
	} else if item.UsageRate != nil && *item.UsageRate != 0 {
		daily = forecast.DailyUsage(*item.UsageRate, item.UsagePeriod)
	} else {
		return nil
	}

	days := forecast.DaysRemaining(item.CurrentQuantity, daily)
	if math.IsInf(days, 1) {
		return nil
	}
	return &days
}

// Summary counts items per stock state.
type Summary struct {
	Total      int `json:"total"`
	LowStock   int `json:"low_stock"`
	Critical   int `json:"critical"`
	NeedsCheck int `json:"needs_check"`
}

// Summarize computes stock state counts and publishes them as metrics.
func (inv *Inventory) Summarize(ctx context.Context) (Summary, error) {
	items, err := inv.ListItems(ctx)
	if err != nil {
		return Summary{}, err
	}

	now := inv.now()
	var s Summary
	for _, item := range items {
		s.Total++
		if item.IsLowStock() {
			s.LowStock++
		}
		if item.IsCritical() {
			s.Critical++
		}
		if item.History().NeedsCheckReminder(now, inv.checkDays) {
			s.NeedsCheck++
		}
		RestockItemQuantity.WithLabelValues(item.ID).Set(item.CurrentQuantity)
	}

	RestockItems.WithLabelValues("total").Set(float64(s.Total))
	RestockItems.WithLabelValues("low_stock").Set(float64(s.LowStock))
	RestockItems.WithLabelValues("critical").Set(float64(s.Critical))
	RestockItems.WithLabelValues("needs_check").Set(float64(s.NeedsCheck))
	return s, nil
}
