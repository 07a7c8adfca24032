package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rmax-ai/restock/pkg/engine"
)

// Status is the daemon health response.
type Status struct {
	Status string `json:"status"`
}

// ItemList is the GET /v1/items response.
type ItemList struct {
	Items []engine.Item `json:"items"`
}

// QuantityUpdate is the body of POST /v1/items/{id}/quantity.
type QuantityUpdate struct {
	Quantity float64 `json:"quantity"`
}

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("restock api: %d %s (%s)", e.StatusCode, e.Code, e.Details)
	}
	return fmt.Sprintf("restock api: %d %s", e.StatusCode, e.Code)
}

// Unwrap maps well-known responses onto the engine sentinels so callers can
// use errors.Is on either side of the wire.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound && e.Code == "item_not_found":
		return engine.ErrItemNotFound
	case e.StatusCode == http.StatusConflict:
		return engine.ErrItemExists
	case e.Code == "invalid_item":
		return engine.ErrInvalidItem
	}
	return nil
}

// IsNotFound reports whether err is a missing-item answer.
func IsNotFound(err error) bool {
	return errors.Is(err, engine.ErrItemNotFound)
}
