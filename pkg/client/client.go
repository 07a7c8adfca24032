package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/notify"
)

// DefaultEndpoint is where restock-d listens unless configured otherwise.
const DefaultEndpoint = "http://127.0.0.1:8090"

// MaxRetries bounds how often an idempotent request is retried after a
// network error or a 5xx answer.
const MaxRetries = 3

// Client is the restock SDK client.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	backoff  BackoffStrategy
}

// NewClient creates a new restock client.
// endpoint defaults to DefaultEndpoint if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff: DefaultBackoff(),
	}
}

// SetToken sends the bearer token on every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// SetBackoff replaces the retry strategy.
func (c *Client) SetBackoff(b BackoffStrategy) {
	if b != nil {
		c.backoff = b
	}
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodGet, "/v1/health", nil, &status)
	return status, err
}

// ListItems returns every item.
func (c *Client) ListItems(ctx context.Context) ([]engine.Item, error) {
	var list ItemList
	if err := c.do(ctx, http.MethodGet, "/v1/items", nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// GetItem returns one item.
func (c *Client) GetItem(ctx context.Context, id string) (engine.Item, error) {
	var item engine.Item
	err := c.do(ctx, http.MethodGet, itemPath(id, ""), nil, &item)
	return item, err
}

// CreateItem registers a new item and returns it as stored.
func (c *Client) CreateItem(ctx context.Context, item engine.Item) (engine.Item, error) {
	var created engine.Item
	err := c.do(ctx, http.MethodPost, "/v1/items", item, &created)
	return created, err
}

// UpdateItem applies a partial update.
func (c *Client) UpdateItem(ctx context.Context, id string, patch engine.ItemPatch) (engine.Item, error) {
	var item engine.Item
	err := c.do(ctx, http.MethodPatch, itemPath(id, ""), patch, &item)
	return item, err
}

// RecordQuantity reports a counted quantity.
func (c *Client) RecordQuantity(ctx context.Context, id string, quantity float64) (engine.Item, error) {
	var item engine.Item
	err := c.do(ctx, http.MethodPost, itemPath(id, "quantity"), QuantityUpdate{Quantity: quantity}, &item)
	return item, err
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, itemPath(id, ""), nil, nil)
}

// Forecast fetches the purchase prediction for an item.
func (c *Client) Forecast(ctx context.Context, id string) (engine.ItemPrediction, error) {
	var pred engine.ItemPrediction
	err := c.do(ctx, http.MethodGet, itemPath(id, "prediction"), nil, &pred)
	return pred, err
}

// ShoppingList fetches the items below their minimum.
func (c *Client) ShoppingList(ctx context.Context) ([]engine.ShoppingEntry, error) {
	var list []engine.ShoppingEntry
	err := c.do(ctx, http.MethodGet, "/v1/shopping-list", nil, &list)
	return list, err
}

// Alerts fetches items needing a check or low on stock.
func (c *Client) Alerts(ctx context.Context) ([]engine.Alert, error) {
	var alerts []engine.Alert
	err := c.do(ctx, http.MethodGet, "/v1/alerts", nil, &alerts)
	return alerts, err
}

// Notifications fetches the pending reminders.
func (c *Client) Notifications(ctx context.Context) ([]notify.Notification, error) {
	var out []notify.Notification
	err := c.do(ctx, http.MethodGet, "/v1/notifications", nil, &out)
	return out, err
}

// Summarize fetches stock state counts.
func (c *Client) Summarize(ctx context.Context) (engine.Summary, error) {
	var sum engine.Summary
	err := c.do(ctx, http.MethodGet, "/v1/summary", nil, &sum)
	return sum, err
}

// Report downloads a CSV report. Filters become query parameters.
func (c *Client) Report(ctx context.Context, reportType string, filters map[string]string) ([]byte, error) {
	q := url.Values{}
	q.Set("type", reportType)
	for k, v := range filters {
		q.Set(k, v)
	}
	var raw []byte
	err := c.do(ctx, http.MethodGet, "/v1/reports?"+q.Encode(), nil, &raw)
	return raw, err
}

func itemPath(id, sub string) string {
	p := "/v1/items/" + url.PathEscape(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

// do sends one request and decodes the answer into out. GETs are retried
// with backoff; writes are sent once. A *[]byte out receives the raw body.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff.Next(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		retry, err := c.roundTrip(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, out interface{}) (bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode >= 500, apiErr
	}

	if out == nil {
		return false, nil
	}
	if raw, ok := out.(*[]byte); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false, fmt.Errorf("failed to read response: %w", err)
		}
		*raw = data
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}
