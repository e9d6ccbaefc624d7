// Package notify delivers queued notifications to the WhatsApp relay.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clinicdesk/internal/domain"

	"github.com/cenkalti/backoff/v4"
)

// Sender delivers one notification. A *backoff.PermanentError means retrying
// cannot help.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

type Relay struct {
	url    string
	apiKey string
	client *http.Client
}

func NewRelay(url, apiKey string, client *http.Client) *Relay {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Relay{url: strings.TrimSpace(url), apiKey: apiKey, client: client}
}

type textPayload struct {
	APIKey  string `json:"apikey"`
	Number  string `json:"number"`
	Message string `json:"message"`
}

type imagePayload struct {
	APIKey   string `json:"apikey"`
	Number   string `json:"number"`
	ImageURL string `json:"imageUrl"`
	Caption  string `json:"caption"`
}

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay responded %d: %s", e.Code, e.Body)
}

func (r *Relay) Send(ctx context.Context, n domain.Notification) error {
	var payload any
	switch n.Kind {
	case domain.NotificationImage:
		payload = imagePayload{APIKey: r.apiKey, Number: n.Number, ImageURL: n.ImageURL, Caption: n.Caption}
	case domain.NotificationText:
		payload = textPayload{APIKey: r.apiKey, Number: n.Number, Message: n.Message}
	default:
		return backoff.Permanent(fmt.Errorf("unsupported notification kind %q", n.Kind))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshal relay payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create relay request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(statusErr)
	}
	return statusErr
}
