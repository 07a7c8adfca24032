package engine

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rmax-ai/restock/pkg/engine/forecast"
)

var epoch = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

// clock is a settable time source for tests.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, phone, message string) error {
	args := m.Called(ctx, phone, message)
	return args.Error(0)
}

func newTestInventory() (*Inventory, *MemoryItemStore, *clock) {
	store := NewMemoryItemStore()
	c := &clock{t: epoch}
	inv := NewInventory(store, forecast.NewPredictor(forecast.CapabilityRegression))
	inv.SetClock(c.Now)
	return inv, store, c
}

func f64(v float64) *float64 { return &v }
