package api

import (
	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/engine/history"
)

// HealthResponse matches the response for GET /v1/health
type HealthResponse struct {
	Status string `json:"status"`
}

// QuantityRequest matches the POST /v1/items/{id}/quantity body schema
type QuantityRequest struct {
	Quantity *float64 `json:"quantity"`
}

// HistoryResponse matches the response for GET /v1/items/{id}/history
type HistoryResponse struct {
	ItemID       string          `json:"item_id"`
	Observations history.History `json:"observations"`
	NeedsCheck   bool            `json:"needs_check"`
}

// ItemListResponse matches the response for GET /v1/items
type ItemListResponse struct {
	Items []engine.Item `json:"items"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
