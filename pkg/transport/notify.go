package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formrunner/pkg/summary"
)

// Notifier sends templated email notifications.
type Notifier interface {
	Send(ctx context.Context, output summary.NotifyOutput) error
}

// NotifyClient delivers notifications over the notification service's HTTP
// API.
type NotifyClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NotifyOption configures a NotifyClient.
type NotifyOption func(*NotifyClient)

// WithNotifyHTTPClient swaps the underlying HTTP client.
func WithNotifyHTTPClient(client *http.Client) NotifyOption {
	return func(n *NotifyClient) {
		n.client = client
	}
}

// WithNotifyLogger attaches a logger.
func WithNotifyLogger(logger *zap.Logger) NotifyOption {
	return func(n *NotifyClient) {
		n.logger = logger
	}
}

// NewNotifyClient returns a client for the given notification endpoint.
func NewNotifyClient(baseURL string, opts ...NotifyOption) *NotifyClient {
	n := &NotifyClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type notifyRequest struct {
	TemplateID      string         `json:"template_id"`
	EmailAddress    string         `json:"email_address"`
	Personalisation map[string]any `json:"personalisation,omitempty"`
	EmailReplyToID  string         `json:"email_reply_to_id,omitempty"`
}

// Send posts one notification. The template's API key authenticates the
// request.
func (n *NotifyClient) Send(ctx context.Context, output summary.NotifyOutput) error {
	body, err := json.Marshal(notifyRequest{
		TemplateID:      output.TemplateID,
		EmailAddress:    output.EmailAddress,
		Personalisation: output.Personalisation,
		EmailReplyToID:  output.EmailReplyToID,
	})
	if err != nil {
		return fmt.Errorf("transport: encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v2/notifications/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+output.APIKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("transport: notification rejected with status %d", resp.StatusCode)
	}

	n.logger.Info("notification sent",
		zap.String("template", output.TemplateID),
		zap.String("output", output.Name))
	return nil
}
