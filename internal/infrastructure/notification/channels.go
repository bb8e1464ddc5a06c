package notification

import (
	"time"

	"github.com/erp/catalog-monitor/internal/application/monitoring"
	"github.com/erp/catalog-monitor/internal/infrastructure/config"
	"go.uber.org/zap"
)

// BuildChannels constructs the enabled alert channels from configuration.
// Disabled channels are skipped; an empty slice is a valid result and means
// alerts are audited but delivered nowhere.
func BuildChannels(cfg *config.AlertsConfig, logger *zap.Logger) []monitoring.Channel {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	channels := make([]monitoring.Channel, 0, 3)

	if cfg.EmailEnabled {
		channels = append(channels, NewEmailChannel(EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			To:       cfg.EmailTo,
		}, logger))
	}
	if cfg.WebhookEnabled {
		channels = append(channels, NewWebhookChannel(cfg.WebhookURL, timeout, logger))
	}
	if cfg.ChatEnabled {
		channels = append(channels, NewChatChannel(cfg.ChatWebhookURL, timeout, logger))
	}

	return channels
}

// Ensure all channels implement the monitoring Channel interface
var (
	_ monitoring.Channel = (*EmailChannel)(nil)
	_ monitoring.Channel = (*WebhookChannel)(nil)
	_ monitoring.Channel = (*ChatChannel)(nil)
)
