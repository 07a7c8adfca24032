package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/restock/pkg/api"
	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/engine/forecast"
)

type noBackoff struct{}

func (noBackoff) Next(int) time.Duration { return 0 }

func newDaemon(t *testing.T, token string) *httptest.Server {
	t.Helper()
	inv := engine.NewInventory(engine.NewMemoryItemStore(), forecast.NewPredictor(forecast.CapabilityRegression))
	inv.SetClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
	s := api.NewServer(inv, "")
	s.SetAuthToken(token)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTrip(t *testing.T) {
	srv := newDaemon(t, "")
	c := NewClient(srv.URL)
	ctx := context.Background()

	status, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)

	rate := 1.0
	created, err := c.CreateItem(ctx, engine.Item{Name: "Café", Unit: "pct", CurrentQuantity: 3, MinimumQuantity: 2, UsageRate: &rate})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	item, err := c.RecordQuantity(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, item.CurrentQuantity)
	assert.Len(t, item.History(), 1)

	notes := "torrado"
	item, err = c.UpdateItem(ctx, created.ID, engine.ItemPatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "torrado", item.Notes)

	pred, err := c.Forecast(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, forecast.SourceDeclared, pred.Source)
	assert.InDelta(t, 1.0, pred.DaysRemaining, 1e-9)

	list, err := c.ShoppingList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	alerts, err := c.Alerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].IsLowStock)

	items, err := c.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	sum, err := c.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.LowStock)

	csv, err := c.Report(ctx, "history", map[string]string{"item_id": created.ID})
	require.NoError(t, err)
	assert.Contains(t, string(csv), "date,quantity,change")

	require.NoError(t, c.DeleteItem(ctx, created.ID))
	_, err = c.GetItem(ctx, created.ID)
	assert.True(t, IsNotFound(err))
}

func TestClient_Errors(t *testing.T) {
	srv := newDaemon(t, "")
	c := NewClient(srv.URL)
	ctx := context.Background()

	_, err := c.CreateItem(ctx, engine.Item{Name: ""})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, errors.Is(err, engine.ErrInvalidItem))

	_, err = c.CreateItem(ctx, engine.Item{ID: "x", Name: "X"})
	require.NoError(t, err)
	_, err = c.CreateItem(ctx, engine.Item{ID: "x", Name: "X"})
	assert.True(t, errors.Is(err, engine.ErrItemExists))
}

func TestClient_Token(t *testing.T) {
	srv := newDaemon(t, "s3cret")
	c := NewClient(srv.URL)

	_, err := c.ListItems(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	c.SetToken("s3cret")
	_, err = c.ListItems(context.Background())
	assert.NoError(t, err)
}

func TestClient_RetriesReads(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.SetBackoff(noBackoff{})
	status, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryWrites(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.SetBackoff(noBackoff{})
	_, err := c.RecordQuantity(context.Background(), "a", 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), apiErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.SetBackoff(noBackoff{})
	_, err := c.Alerts(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(MaxRetries+1), atomic.LoadInt32(&calls))
}
