package main

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/engine/forecast"
)

type fakeAPI struct {
	err error
}

func (f fakeAPI) Summarize(context.Context) (engine.Summary, error) {
	return engine.Summary{Total: 3, LowStock: 1, Critical: 1, NeedsCheck: 1}, f.err
}

func (f fakeAPI) ShoppingList(context.Context) ([]engine.ShoppingEntry, error) {
	by := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	return []engine.ShoppingEntry{
		{ID: "salt", Name: "Salt", Unit: "kg", Suggested: 1.5, Urgency: forecast.UrgencyCritical, PurchaseBy: &by},
	}, nil
}

func (f fakeAPI) Alerts(context.Context) ([]engine.Alert, error) {
	return []engine.Alert{
		{ID: "salt", Name: "Salt", IsLowStock: true, IsCritical: true},
		{ID: "soap", Name: "Soap", NeedsQuantityCheck: true},
	}, nil
}

func TestModel_DataAndView(t *testing.T) {
	m := initialModel(fakeAPI{})
	assert.Contains(t, m.View(), "Initializing")

	msg := fetchData(m.api)()
	updated, _ := m.Update(msg)
	m = updated.(model)

	require.True(t, m.ready)
	require.NoError(t, m.err)
	view := m.View()
	assert.Contains(t, view, "Salt")
	assert.Contains(t, view, "2024-06-03")
	assert.Contains(t, view, "count Soap")
	assert.Contains(t, view, "Online")
}

func TestModel_FetchError(t *testing.T) {
	m := initialModel(fakeAPI{err: errors.New("connection refused")})
	updated, _ := m.Update(fetchData(m.api)())
	m = updated.(model)

	assert.Error(t, m.err)
	assert.Contains(t, m.View(), "Offline: connection refused")
}

func TestModel_Quit(t *testing.T) {
	m := initialModel(fakeAPI{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRenderShopping_Empty(t *testing.T) {
	assert.Contains(t, renderShopping(nil), "Nothing to buy.")
}
