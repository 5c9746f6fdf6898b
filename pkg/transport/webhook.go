package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// UnknownReference is returned when a delivery cannot produce a reference;
// downstream consumers treat it as "submitted, reference pending".
const UnknownReference = "UNKNOWN"

// WebhookClient posts submission payloads to configured targets and
// extracts the reference the target hands back.
type WebhookClient struct {
	client  *http.Client
	logger  *zap.Logger
	timeout time.Duration
}

// WebhookOption configures a WebhookClient.
type WebhookOption func(*WebhookClient)

// WithWebhookHTTPClient swaps the underlying HTTP client.
func WithWebhookHTTPClient(client *http.Client) WebhookOption {
	return func(w *WebhookClient) {
		w.client = client
	}
}

// WithWebhookTimeout bounds each delivery attempt.
func WithWebhookTimeout(timeout time.Duration) WebhookOption {
	return func(w *WebhookClient) {
		w.timeout = timeout
	}
}

// WithWebhookLogger attaches a logger.
func WithWebhookLogger(logger *zap.Logger) WebhookOption {
	return func(w *WebhookClient) {
		w.logger = logger
	}
}

// NewWebhookClient returns a client with a 20 second per-attempt timeout.
func NewWebhookClient(opts ...WebhookOption) *WebhookClient {
	w := &WebhookClient{
		client:  http.DefaultClient,
		logger:  zap.NewNop(),
		timeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Send delivers the payload as JSON via the given method (POST or PUT) and
// returns the reference from the response body. Delivery failures degrade to
// UnknownReference with a nil error: a lost reference must not lose the
// submission.
func (w *WebhookClient) Send(ctx context.Context, url string, payload any, method string) (string, error) {
	if method == "" {
		method = http.MethodPost
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("transport: encode webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("transport: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("webhook delivery failed", zap.String("url", url), zap.Error(err))
		return UnknownReference, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.logger.Warn("webhook target rejected payload",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return UnknownReference, nil
	}

	var result struct {
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.Reference == "" {
		w.logger.Warn("webhook response carried no reference", zap.String("url", url))
		return UnknownReference, nil
	}

	w.logger.Info("webhook delivered",
		zap.String("url", url),
		zap.String("reference", result.Reference))
	return result.Reference, nil
}
