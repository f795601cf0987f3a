package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPWebhookCaller posts the entity data as JSON to the configured URL.
// Config keys: "url" (required, placeholders allowed), "method" (default
// POST), "headers" (map of string values, placeholders allowed).
type HTTPWebhookCaller struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPWebhookCaller builds a caller with a dedicated client so a slow
// webhook endpoint cannot exhaust the default transport.
func NewHTTPWebhookCaller(timeout time.Duration) *HTTPWebhookCaller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPWebhookCaller{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

func (c *HTTPWebhookCaller) Call(ctx context.Context, config, data map[string]any) error {
	url := ConfigString(config, "url", data)
	if url == "" {
		return fmt.Errorf("webhook: url is required")
	}
	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("webhook: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, Render(s, data))
			}
		}
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: %s responded %d", url, resp.StatusCode)
	}
	return nil
}
