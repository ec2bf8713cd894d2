package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookRequest is the JSON body posted to an HTTP email API.
type WebhookRequest struct {
	MessageID string `json:"message_id"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	HTML      string `json:"html"`
	Category  string `json:"category,omitempty"`
}

// WebhookTransport delivers messages by POSTing JSON to an HTTP email API.
// The base URL is injected from config so tests can point to a local mock.
type WebhookTransport struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookTransport(baseURL string, timeout time.Duration) *WebhookTransport {
	return &WebhookTransport{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the message and treats any 2xx response as accepted.
// The X-Idempotency-Key header carries the message id across retries.
func (t *WebhookTransport) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(WebhookRequest{
		MessageID: msg.ID,
		To:        FormatAddress(msg.To, msg.DisplayName),
		Subject:   msg.Subject,
		HTML:      msg.Body,
		Category:  msg.Category,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", msg.ID)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected webhook status: %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that WebhookTransport implements Transport
var _ Transport = (*WebhookTransport)(nil)
