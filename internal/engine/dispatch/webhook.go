package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"watchtower/internal/engine/alert"
)

// WebhookChannel posts the alert as JSON to a configured URL. Rate limiting
// (429, honoring Retry-After) and server errors are retryable; any other
// non-2xx status will not self-heal and fails immediately.
type WebhookChannel struct {
	name   string
	url    string
	client *http.Client
}

func NewWebhookChannel(name, url string, requestTimeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		name: name,
		url:  url,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

func (w *WebhookChannel) Name() string {
	return w.name
}

func (w *WebhookChannel) Send(ctx context.Context, msg alert.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("WebhookChannel.Send: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("WebhookChannel.Send: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return &RetryableError{Err: fmt.Errorf("WebhookChannel.Send: %w", err)}
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("WebhookChannel.Send: rate limited by %s", w.url),
		}
	case resp.StatusCode >= 500:
		return &RetryableError{
			Err: fmt.Errorf("WebhookChannel.Send: %s returned status %d", w.url, resp.StatusCode),
		}
	default:
		return fmt.Errorf("WebhookChannel.Send: %s returned status %d", w.url, resp.StatusCode)
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
