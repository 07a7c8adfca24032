package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/restock/pkg/notify"
)

func newAlertingInventory(t *testing.T, sender notify.Sender) (*Inventory, *clock) {
	t.Helper()
	inv, store, c := newTestInventory()
	d := NewDispatcher(store, sender, 0)
	d.backoff = 0
	d.SetLanguage("en-US")
	inv.SetDispatcher(d)

	_, err := inv.CreateItem(context.Background(), Item{
		ID:              "milk",
		Name:            "Milk",
		Unit:            "L",
		CurrentQuantity: 3,
		MinimumQuantity: 2,
		PhoneNumber:     "+5511999999999",
	})
	require.NoError(t, err)
	return inv, c
}

func TestDispatcher_SendsOnCrossing(t *testing.T) {
	sender := new(mockSender)
	expected := notify.FormatLowStockMessage(notify.LowStock{
		Name: "Milk", Current: 1, Minimum: 2, Unit: "L", Suggested: 2,
	}, "en-US")
	sender.On("Send", mock.Anything, "+5511999999999", expected).Return(nil).Once()

	inv, c := newAlertingInventory(t, sender)
	sent := testutil.ToFloat64(RestockAlertTotal.WithLabelValues(alertSent))

	item, err := inv.RecordQuantity(context.Background(), "milk", 1)
	require.NoError(t, err)
	require.NotNil(t, item.LastAlertAt)
	assert.True(t, item.LastAlertAt.Equal(c.Now()))
	assert.Equal(t, sent+1, testutil.ToFloat64(RestockAlertTotal.WithLabelValues(alertSent)))
	sender.AssertExpectations(t)
}

func TestDispatcher_Cooldown(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	inv, c := newAlertingInventory(t, sender)
	ctx := context.Background()

	_, err := inv.RecordQuantity(ctx, "milk", 1)
	require.NoError(t, err)

	c.Advance(23 * time.Hour)
	_, err = inv.RecordQuantity(ctx, "milk", 3)
	require.NoError(t, err)
	_, err = inv.RecordQuantity(ctx, "milk", 1)
	require.NoError(t, err)
	sender.AssertNumberOfCalls(t, "Send", 1)

	c.Advance(time.Hour)
	_, err = inv.RecordQuantity(ctx, "milk", 3)
	require.NoError(t, err)
	item, err := inv.RecordQuantity(ctx, "milk", 1)
	require.NoError(t, err)
	sender.AssertNumberOfCalls(t, "Send", 2)
	assert.True(t, item.LastAlertAt.Equal(c.Now()))
}

func TestDispatcher_OnlyOnDownwardCrossing(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	inv, _ := newAlertingInventory(t, sender)
	ctx := context.Background()

	_, err := inv.RecordQuantity(ctx, "milk", 2)
	require.NoError(t, err)
	_, err = inv.RecordQuantity(ctx, "milk", 5)
	require.NoError(t, err)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)

	_, err = inv.RecordQuantity(ctx, "milk", 1.5)
	require.NoError(t, err)
	_, err = inv.RecordQuantity(ctx, "milk", 0.5)
	require.NoError(t, err)
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestDispatcher_PhoneResolution(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, "+1555", mock.Anything).Return(nil).Once()

	inv, store, _ := newTestInventory()
	d := NewDispatcher(store, sender, time.Hour)
	inv.SetDispatcher(d)
	ctx := context.Background()

	_, err := inv.CreateItem(ctx, Item{ID: "salt", Name: "Sal", CurrentQuantity: 2, MinimumQuantity: 1})
	require.NoError(t, err)

	item, err := inv.RecordQuantity(ctx, "salt", 0)
	require.NoError(t, err)
	assert.Nil(t, item.LastAlertAt)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)

	d.SetDefaultPhone("+1555")
	_, err = inv.RecordQuantity(ctx, "salt", 2)
	require.NoError(t, err)
	_, err = inv.RecordQuantity(ctx, "salt", 0)
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestDispatcher_FailureReleasesClaim(t *testing.T) {
	sender := new(mockSender)
	rejected := errors.Join(notify.ErrRejected, errors.New("Out of quota"))
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(rejected)

	inv, _ := newAlertingInventory(t, sender)
	failed := testutil.ToFloat64(RestockAlertTotal.WithLabelValues(alertFailed))

	item, err := inv.RecordQuantity(context.Background(), "milk", 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, item.CurrentQuantity)
	assert.Nil(t, item.LastAlertAt)
	sender.AssertNumberOfCalls(t, "Send", 1)
	assert.Equal(t, failed+1, testutil.ToFloat64(RestockAlertTotal.WithLabelValues(alertFailed)))
}

func TestDispatcher_RetriesTransientErrors(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset")).Twice()
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	inv, _ := newAlertingInventory(t, sender)

	item, err := inv.RecordQuantity(context.Background(), "milk", 1)
	require.NoError(t, err)
	assert.NotNil(t, item.LastAlertAt)
	sender.AssertNumberOfCalls(t, "Send", 3)
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("timeout"))

	d := NewDispatcher(NewMemoryItemStore(), sender, 0)
	d.backoff = 0

	err := d.send(context.Background(), "+1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries reached")
	sender.AssertNumberOfCalls(t, "Send", MaxRetries)
}
