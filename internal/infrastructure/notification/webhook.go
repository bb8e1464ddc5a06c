package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"go.uber.org/zap"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookChannel delivers alerts as JSON POSTs to a configured endpoint
type WebhookChannel struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookChannel creates a generic webhook alert channel
func NewWebhookChannel(url string, timeout time.Duration, logger *zap.Logger) *WebhookChannel {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookChannel{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("webhook"),
	}
}

// Name identifies the channel in logs and the alert audit trail
func (c *WebhookChannel) Name() string {
	return "webhook"
}

// Send posts the alert as its JSON representation
func (c *WebhookChannel) Send(ctx context.Context, alert catalog.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	c.logger.Debug("alert webhook delivered",
		zap.String("item_id", alert.ItemID),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}
