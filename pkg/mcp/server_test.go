package mcp

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/restock/pkg/api"
	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/engine/forecast"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	inv := engine.NewInventory(engine.NewMemoryItemStore(), forecast.NewPredictor(forecast.CapabilityRegression))
	inv.SetClock(func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) })

	rate := 1.0
	ctx := context.Background()
	_, err := inv.CreateItem(ctx, engine.Item{ID: "beans", Name: "Feijão", Unit: "kg", CurrentQuantity: 0, MinimumQuantity: 1})
	require.NoError(t, err)
	_, err = inv.CreateItem(ctx, engine.Item{ID: "rice", Name: "Arroz", Unit: "kg", CurrentQuantity: 4, MinimumQuantity: 1, UsageRate: &rate})
	require.NoError(t, err)

	ts := httptest.NewServer(api.NewServer(inv, "").Handler())
	t.Cleanup(ts.Close)
	return NewServer(ts.URL)
}

func readText(t *testing.T, result []mcp.ResourceContents) string {
	t.Helper()
	require.Len(t, result, 1)
	content, ok := result[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", content.MIMEType)
	return content.Text
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestMCPServer_ReadShoppingList(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleReadShoppingList(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: shoppingListURI},
	})
	require.NoError(t, err)

	var list []engine.ShoppingEntry
	require.NoError(t, json.Unmarshal([]byte(readText(t, result)), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "beans", list[0].ID)
	assert.Equal(t, forecast.UrgencyCritical, list[0].Urgency)
}

func TestMCPServer_ReadAlerts(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleReadAlerts(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: alertsURI},
	})
	require.NoError(t, err)

	var alerts []engine.Alert
	require.NoError(t, json.Unmarshal([]byte(readText(t, result)), &alerts))
	assert.Len(t, alerts, 2)
}

func TestMCPServer_ReadItems(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleReadItems(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: itemsURI},
	})
	require.NoError(t, err)
	assert.Contains(t, readText(t, result), "Arroz")
}

func TestMCPServer_GetPrediction(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleGetPrediction(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "get_prediction",
			Arguments: map[string]interface{}{"item_id": "rice"},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := toolText(t, result)
	assert.Contains(t, text, "Item: Arroz")
	assert.Contains(t, text, "Days remaining: 4.0")
	assert.Contains(t, text, "(declared)")

	result, err = s.handleGetPrediction(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "get_prediction",
			Arguments: map[string]interface{}{"item_id": "nope"},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), `no item with id "nope"`)
}

func TestMCPServer_RecordQuantity(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleRecordQuantity(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "record_quantity",
			Arguments: map[string]interface{}{"item_id": "rice", "quantity": 0.5},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Recorded Arroz: 0.5 kg (below minimum of 1)", toolText(t, result))

	for name, args := range map[string]map[string]interface{}{
		"missing quantity": {"item_id": "rice"},
		"negative":         {"item_id": "rice", "quantity": -1.0},
		"missing item":     {"quantity": 1.0},
	} {
		t.Run(name, func(t *testing.T) {
			result, err := s.handleRecordQuantity(context.Background(), mcp.CallToolRequest{
				Params: mcp.CallToolParams{Name: "record_quantity", Arguments: args},
			})
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestMCPServer_Prompt(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleGetPrompt(context.Background(), mcp.GetPromptRequest{
		Params: mcp.GetPromptParams{Name: promptName},
	})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)

	_, err = s.handleGetPrompt(context.Background(), mcp.GetPromptRequest{
		Params: mcp.GetPromptParams{Name: "other"},
	})
	assert.Error(t, err)
}
