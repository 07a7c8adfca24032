// Package storetest holds the behaviour every engine.ItemStore must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/engine/forecast"
	"github.com/rmax-ai/restock/pkg/engine/history"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func sample(id string, created time.Time) engine.Item {
	rate := 2.5
	alert := base.Add(-time.Hour)
	return engine.Item{
		ID:                    id,
		Name:                  "Item " + id,
		Category:              "Limpeza",
		Unit:                  "L",
		Notes:                 "n",
		Barcode:               "7891234567890",
		CurrentQuantity:       3.5,
		MinimumQuantity:       1,
		AcquisitionDifficulty: forecast.DifficultyMedium,
		UsageRate:             &rate,
		UsagePeriod:           forecast.PeriodWeekly,
		QuantityHistory:       history.Append("", 4, 3.5, base),
		NotificationEnabled:   true,
		PhoneNumber:           "+5511999999999",
		LastAlertAt:           &alert,
		CreatedAt:             created,
		UpdatedAt:             created,
	}
}

// Run exercises store. newStore must return an empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) engine.ItemStore) {
	t.Run("RoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		want := sample("a", base)
		require.NoError(t, s.Create(ctx, want))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.QuantityHistory, got.QuantityHistory)
		assert.Equal(t, *want.UsageRate, *got.UsageRate)
		assert.True(t, want.LastAlertAt.Equal(*got.LastAlertAt))
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, want.AcquisitionDifficulty, got.AcquisitionDifficulty)
		assert.Equal(t, want.UsagePeriod, got.UsagePeriod)
		assert.True(t, got.NotificationEnabled)

		bare := engine.Item{ID: "b", Name: "Bare", Unit: "un", UsagePeriod: forecast.PeriodDaily, CreatedAt: base, UpdatedAt: base}
		require.NoError(t, s.Create(ctx, bare))
		got, err = s.Get(ctx, "b")
		require.NoError(t, err)
		assert.Nil(t, got.UsageRate)
		assert.Nil(t, got.LastAlertAt)
	})

	t.Run("Duplicate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, sample("a", base)))
		assert.True(t, errors.Is(s.Create(ctx, sample("a", base)), engine.ErrItemExists))
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Get(ctx, "missing")
		assert.True(t, errors.Is(err, engine.ErrItemNotFound))
		_, err = s.Update(ctx, "missing", func(*engine.Item) error { return nil })
		assert.True(t, errors.Is(err, engine.ErrItemNotFound))
		assert.True(t, errors.Is(s.Delete(ctx, "missing"), engine.ErrItemNotFound))
	})

	t.Run("ListOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, sample("late", base.Add(time.Hour))))
		require.NoError(t, s.Create(ctx, sample("b", base)))
		require.NoError(t, s.Create(ctx, sample("a", base)))

		items, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "a", items[0].ID)
		assert.Equal(t, "b", items[1].ID)
		assert.Equal(t, "late", items[2].ID)

		empty := newStore(t)
		items, err = empty.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("Update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, sample("a", base)))

		updated, err := s.Update(ctx, "a", func(it *engine.Item) error {
			it.CurrentQuantity = 1
			it.LastAlertAt = nil
			it.UsageRate = nil
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1.0, updated.CurrentQuantity)

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.CurrentQuantity)
		assert.Nil(t, got.LastAlertAt)
		assert.Nil(t, got.UsageRate)

		boom := errors.New("boom")
		_, err = s.Update(ctx, "a", func(it *engine.Item) error {
			it.CurrentQuantity = 99
			return boom
		})
		assert.True(t, errors.Is(err, boom))

		got, err = s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.CurrentQuantity)
	})

	t.Run("ConcurrentUpdates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		item := sample("a", base)
		item.CurrentQuantity = 0
		require.NoError(t, s.Create(ctx, item))

		const workers = 8
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Update(ctx, "a", func(it *engine.Item) error {
					it.CurrentQuantity++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, float64(workers), got.CurrentQuantity)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, sample("a", base)))
		require.NoError(t, s.Delete(ctx, "a"))

		_, err := s.Get(ctx, "a")
		assert.True(t, errors.Is(err, engine.ErrItemNotFound))
	})
}
