package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTextbeltURL is the Textbelt send endpoint.
	DefaultTextbeltURL = "https://textbelt.com/text"
	// FreeTextbeltKey selects Textbelt's free tier.
	FreeTextbeltKey = "textbelt"
	// DefaultTimeout bounds a single SMS request.
	DefaultTimeout = 30 * time.Second
)

// ErrRejected is returned when the provider answered but refused the message.
var ErrRejected = errors.New("sms rejected by provider")

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// TextbeltSender sends SMS through the Textbelt HTTP API.
type TextbeltSender struct {
	url    string
	key    string
	client *http.Client
}

// NewTextbeltSender creates a sender. Empty key or URL fall back to the free
// tier and the public endpoint.
func NewTextbeltSender(key, endpoint string) *TextbeltSender {
	if key == "" {
		key = FreeTextbeltKey
	}
	if endpoint == "" {
		endpoint = DefaultTextbeltURL
	}
	return &TextbeltSender{
		url: endpoint,
		key: key,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

type textbeltResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	TextID  string `json:"textId"`
}

// Send posts the message as a form to Textbelt.
func (s *TextbeltSender) Send(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("phone", phone)
	form.Set("message", message)
	form.Set("key", s.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "restock-notifier/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	var result textbeltResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode sms response (status %d): %w", resp.StatusCode, err)
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return nil
}

// NopSender discards every message.
type NopSender struct{}

func (NopSender) Send(context.Context, string, string) error { return nil }
