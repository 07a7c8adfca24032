package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/restock/pkg/engine/forecast"
	"github.com/rmax-ai/restock/pkg/engine/history"
	"github.com/rmax-ai/restock/pkg/notify"
)

func TestCreateItem_Defaults(t *testing.T) {
	inv, _, _ := newTestInventory()
	ctx := context.Background()

	item, err := inv.CreateItem(ctx, Item{Name: "  Arroz ", CurrentQuantity: 2, MinimumQuantity: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "Arroz", item.Name)
	assert.Equal(t, DefaultUnit, item.Unit)
	assert.Equal(t, forecast.PeriodDaily, item.UsagePeriod)
	assert.Equal(t, epoch, item.CreatedAt)

	got, err := inv.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestCreateItem_Validation(t *testing.T) {
	inv, _, _ := newTestInventory()
	ctx := context.Background()

	tests := []struct {
		name string
		item Item
	}{
		{"missing name", Item{Name: " "}},
		{"negative minimum", Item{Name: "x", MinimumQuantity: -1}},
		{"negative rate", Item{Name: "x", UsageRate: f64(-1)}},
		{"unknown period", Item{Name: "x", UsagePeriod: "hourly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inv.CreateItem(ctx, tt.item)
			assert.True(t, errors.Is(err, ErrInvalidItem), "got %v", err)
		})
	}
}

func TestCreateItem_Duplicate(t *testing.T) {
	inv, _, _ := newTestInventory()
	ctx := context.Background()

	_, err := inv.CreateItem(ctx, Item{ID: "milk", Name: "Leite"})
	require.NoError(t, err)
	_, err = inv.CreateItem(ctx, Item{ID: "milk", Name: "Leite"})
	assert.True(t, errors.Is(err, ErrItemExists))
}

func TestGetItem_NotFound(t *testing.T) {
	inv, _, _ := newTestInventory()

	_, err := inv.GetItem(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrItemNotFound))

	_, err = inv.Forecast(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrItemNotFound))

	err = inv.DeleteItem(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrItemNotFound))
}

func TestUpdateItem_RecordsQuantityChanges(t *testing.T) {
	inv, _, c := newTestInventory()
	ctx := context.Background()

	item, err := inv.CreateItem(ctx, Item{ID: "soap", Name: "Sabão", CurrentQuantity: 10, MinimumQuantity: 2})
	require.NoError(t, err)

	c.Advance(time.Hour)
	item, err = inv.RecordQuantity(ctx, "soap", 8)
	require.NoError(t, err)
	assert.Equal(t, 8.0, item.CurrentQuantity)
	assert.Equal(t, epoch.Add(time.Hour), item.UpdatedAt)

	h := item.History()
	require.Len(t, h, 1)
	assert.Equal(t, 8.0, *h[0].Quantity)
	assert.Equal(t, -2.0, h[0].Delta())

	// Unchanged quantity and other fields leave the history alone.
	notes := "buy the blue one"
	item, err = inv.UpdateItem(ctx, "soap", ItemPatch{Notes: &notes, CurrentQuantity: f64(8)})
	require.NoError(t, err)
	assert.Equal(t, notes, item.Notes)
	assert.Len(t, item.History(), 1)
}

func TestUpdateItem_InvalidLeavesItemUntouched(t *testing.T) {
	inv, _, _ := newTestInventory()
	ctx := context.Background()

	_, err := inv.CreateItem(ctx, Item{ID: "soap", Name: "Sabão", CurrentQuantity: 10})
	require.NoError(t, err)

	empty := ""
	_, err = inv.UpdateItem(ctx, "soap", ItemPatch{Name: &empty, CurrentQuantity: f64(3)})
	assert.True(t, errors.Is(err, ErrInvalidItem))

	item, err := inv.GetItem(ctx, "soap")
	require.NoError(t, err)
	assert.Equal(t, 10.0, item.CurrentQuantity)
	assert.Empty(t, item.QuantityHistory)
}

func TestForecast_LearnsFromUpdates(t *testing.T) {
	inv, _, c := newTestInventory()
	ctx := context.Background()

	_, err := inv.CreateItem(ctx, Item{ID: "rice", Name: "Arroz", CurrentQuantity: 10, MinimumQuantity: 1})
	require.NoError(t, err)

	p, err := inv.Forecast(ctx, "rice")
	require.NoError(t, err)
	assert.True(t, p.NeedsTracking)
	assert.Equal(t, forecast.SourceNone, p.Source)

	for q := 9.0; q >= 5; q-- {
		c.Advance(24 * time.Hour)
		_, err := inv.RecordQuantity(ctx, "rice", q)
		require.NoError(t, err)
	}

	p, err = inv.Forecast(ctx, "rice")
	require.NoError(t, err)
	assert.Equal(t, "rice", p.ItemID)
	assert.Equal(t, "Arroz", p.ItemName)
	assert.Equal(t, forecast.SourceRegression, p.Source)
	assert.InDelta(t, 1.0, p.DailyUsage, 1e-9)
	assert.Equal(t, 5.0, p.DaysRemaining)
	assert.Equal(t, 0.17, p.Confidence)
	assert.False(t, p.NeedsTracking)
}

func TestShoppingList(t *testing.T) {
	inv, _, c := newTestInventory()
	ctx := context.Background()

	seed := []Item{
		{ID: "c", Name: "Café", CurrentQuantity: 2, MinimumQuantity: 3},
		{ID: "b", Name: "Leite", CurrentQuantity: 1, MinimumQuantity: 3, UsageRate: f64(1), UsagePeriod: forecast.PeriodDaily},
		{ID: "a", Name: "Sal", CurrentQuantity: 0, MinimumQuantity: 2},
		{ID: "d", Name: "Açúcar", CurrentQuantity: 5, MinimumQuantity: 2},
	}
	for _, it := range seed {
		_, err := inv.CreateItem(ctx, it)
		require.NoError(t, err)
		c.Advance(time.Minute)
	}

	list, err := inv.ShoppingList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, forecast.UrgencyCritical, list[0].Urgency)
	assert.Nil(t, list[0].PurchaseBy)
	require.NotNil(t, list[0].DaysRemaining)
	assert.Equal(t, 0.0, *list[0].DaysRemaining)

	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, forecast.UrgencyAttention, list[1].Urgency)
	assert.Equal(t, 2.0, list[1].Needed)
	assert.Equal(t, 6.5, list[1].Suggested)
	require.NotNil(t, list[1].PurchaseBy)
	assert.True(t, list[1].PurchaseBy.Equal(c.Now()))
	require.NotNil(t, list[1].DaysRemaining)
	assert.Equal(t, 1.0, *list[1].DaysRemaining)

	assert.Equal(t, "c", list[2].ID)
	assert.Nil(t, list[2].PurchaseBy)
	assert.Nil(t, list[2].DaysRemaining)
}

func TestAlerts(t *testing.T) {
	inv, _, c := newTestInventory()
	ctx := context.Background()

	for _, it := range []Item{
		{ID: "fresh", Name: "Fresh", CurrentQuantity: 10, MinimumQuantity: 1},
		{ID: "low", Name: "Low", CurrentQuantity: 5, MinimumQuantity: 1},
		{ID: "out", Name: "Out", CurrentQuantity: 3, MinimumQuantity: 1},
	} {
		_, err := inv.CreateItem(ctx, it)
		require.NoError(t, err)
		c.Advance(time.Second)
	}
	_, err := inv.RecordQuantity(ctx, "fresh", 9)
	require.NoError(t, err)
	_, err = inv.RecordQuantity(ctx, "low", 0.5)
	require.NoError(t, err)
	_, err = inv.RecordQuantity(ctx, "out", 0)
	require.NoError(t, err)

	alerts, err := inv.Alerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, Alert{ID: "low", Name: "Low", IsLowStock: true, CurrentQuantity: 0.5, Unit: DefaultUnit}, alerts[0])
	assert.Equal(t, Alert{ID: "out", Name: "Out", IsLowStock: true, IsCritical: true, Unit: DefaultUnit}, alerts[1])

	c.Advance(7 * 24 * time.Hour)
	alerts, err = inv.Alerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	for _, a := range alerts {
		assert.True(t, a.NeedsQuantityCheck, a.ID)
	}
}

func TestNotifications(t *testing.T) {
	inv, _, c := newTestInventory()
	ctx := context.Background()

	_, err := inv.CreateItem(ctx, Item{ID: "milk", Name: "Leite", Unit: "L", CurrentQuantity: 1, MinimumQuantity: 2, UsageRate: f64(1)})
	require.NoError(t, err)
	_, err = inv.CreateItem(ctx, Item{ID: "salt", Name: "Sal", CurrentQuantity: 5, MinimumQuantity: 1})
	require.NoError(t, err)
	_, err = inv.CreateItem(ctx, Item{ID: "rice", Name: "Arroz", CurrentQuantity: 5, MinimumQuantity: 1})
	require.NoError(t, err)
	_, err = inv.RecordQuantity(ctx, "rice", 4)
	require.NoError(t, err)
	c.Advance(time.Hour)

	out, err := inv.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)

	byItem := map[string]notify.Notification{}
	for _, n := range out {
		assert.NotEmpty(t, n.ID)
		byItem[n.ItemID] = n
	}

	milk := byItem["milk"]
	assert.Equal(t, notify.TypeLowStock, milk.Type)
	assert.Equal(t, "🔴 CRÍTICO", milk.Urgency)

	salt := byItem["salt"]
	assert.Equal(t, notify.TypeCheckReminder, salt.Type)
	assert.Equal(t, "Nunca verificamos esse item. Qual a quantidade atual?", salt.Message)

	_, ok := byItem["rice"]
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	inv, _, _ := newTestInventory()
	ctx := context.Background()

	for _, it := range []Item{
		{ID: "a", Name: "A", CurrentQuantity: 0, MinimumQuantity: 1},
		{ID: "b", Name: "B", CurrentQuantity: 1, MinimumQuantity: 2},
		{ID: "c", Name: "C", CurrentQuantity: 5, MinimumQuantity: 2, QuantityHistory: history.Append("", 6, 5, epoch)},
	} {
		_, err := inv.CreateItem(ctx, it)
		require.NoError(t, err)
	}

	s, err := inv.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, LowStock: 2, Critical: 1, NeedsCheck: 2}, s)
}

func TestDeleteItem(t *testing.T) {
	inv, _, _ := newTestInventory()
	ctx := context.Background()

	_, err := inv.CreateItem(ctx, Item{ID: "x", Name: "X"})
	require.NoError(t, err)
	require.NoError(t, inv.DeleteItem(ctx, "x"))

	items, err := inv.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}
