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

// chatPayload is the Slack-compatible incoming-webhook message body
type chatPayload struct {
	Text string `json:"text"`
}

// ChatChannel delivers alerts to a Slack-compatible chat webhook
type ChatChannel struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewChatChannel creates a chat webhook alert channel
func NewChatChannel(url string, timeout time.Duration, logger *zap.Logger) *ChatChannel {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &ChatChannel{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("chat"),
	}
}

// Name identifies the channel in logs and the alert audit trail
func (c *ChatChannel) Name() string {
	return "chat"
}

// Send posts a formatted text message to the chat webhook
func (c *ChatChannel) Send(ctx context.Context, alert catalog.Alert) error {
	body, err := json.Marshal(chatPayload{Text: chatText(alert)})
	if err != nil {
		return fmt.Errorf("failed to encode chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("chat webhook returned status %d", resp.StatusCode)
	}

	c.logger.Debug("alert chat message delivered", zap.String("item_id", alert.ItemID))
	return nil
}

// chatText renders the one-line chat message with a type emoji
func chatText(alert catalog.Alert) string {
	var emoji string
	switch alert.Type {
	case catalog.AlertPriceDrop:
		emoji = ":chart_with_downwards_trend:"
	case catalog.AlertPriceIncrease:
		emoji = ":chart_with_upwards_trend:"
	case catalog.AlertPriceThreshold:
		emoji = ":dart:"
	case catalog.AlertBackInStock:
		emoji = ":white_check_mark:"
	case catalog.AlertOutOfStock:
		emoji = ":no_entry:"
	default:
		emoji = ":bell:"
	}

	title := alert.ItemTitle
	if title == "" {
		title = alert.ItemID
	}
	return fmt.Sprintf("%s *%s*: %s", emoji, title, alert.Message)
}
