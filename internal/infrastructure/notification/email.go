package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"go.uber.org/zap"
)

// EmailConfig holds SMTP delivery settings for the email channel
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// sendMailFunc matches smtp.SendMail, injectable for tests
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel delivers alerts as plain-text emails over SMTP
type EmailChannel struct {
	config   EmailConfig
	sendMail sendMailFunc
	logger   *zap.Logger
}

// NewEmailChannel creates an SMTP-backed alert channel
func NewEmailChannel(config EmailConfig, logger *zap.Logger) *EmailChannel {
	return &EmailChannel{
		config:   config,
		sendMail: smtp.SendMail,
		logger:   logger.Named("email"),
	}
}

// Name identifies the channel in logs and the alert audit trail
func (c *EmailChannel) Name() string {
	return "email"
}

// Send delivers the alert to all configured recipients in one message
func (c *EmailChannel) Send(ctx context.Context, alert catalog.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(c.config.To) == 0 {
		return fmt.Errorf("email channel has no recipients")
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	var auth smtp.Auth
	if c.config.User != "" {
		auth = smtp.PlainAuth("", c.config.User, c.config.Password, c.config.Host)
	}

	msg := buildEmailMessage(c.config.From, c.config.To, alert)
	if err := c.sendMail(addr, auth, c.config.From, c.config.To, msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	c.logger.Debug("alert email sent",
		zap.String("item_id", alert.ItemID),
		zap.Int("recipients", len(c.config.To)),
	)
	return nil
}

// buildEmailMessage renders the RFC 5322 message body for an alert
func buildEmailMessage(from string, to []string, alert catalog.Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", emailSubject(alert))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "%s\r\n\r\n", alert.Message)
	fmt.Fprintf(&b, "Item: %s\r\n", alert.ItemID)
	if alert.ItemTitle != "" {
		fmt.Fprintf(&b, "Title: %s\r\n", alert.ItemTitle)
	}
	if alert.OldPrice != nil && alert.NewPrice != nil {
		fmt.Fprintf(&b, "Price: %s -> %s\r\n", alert.OldPrice.StringFixed(2), alert.NewPrice.StringFixed(2))
	}
	if alert.OldStatus != "" || alert.NewStatus != "" {
		fmt.Fprintf(&b, "Availability: %s -> %s\r\n", alert.OldStatus, alert.NewStatus)
	}
	fmt.Fprintf(&b, "Occurred: %s\r\n", alert.OccurredAt.Format("2006-01-02 15:04:05 MST"))

	return []byte(b.String())
}

// emailSubject builds a short subject line per alert type
func emailSubject(alert catalog.Alert) string {
	switch alert.Type {
	case catalog.AlertPriceDrop:
		return fmt.Sprintf("[Price Drop] %s", alert.ItemID)
	case catalog.AlertPriceIncrease:
		return fmt.Sprintf("[Price Increase] %s", alert.ItemID)
	case catalog.AlertPriceThreshold:
		return fmt.Sprintf("[Target Price] %s", alert.ItemID)
	case catalog.AlertBackInStock:
		return fmt.Sprintf("[Back In Stock] %s", alert.ItemID)
	case catalog.AlertOutOfStock:
		return fmt.Sprintf("[Out Of Stock] %s", alert.ItemID)
	default:
		return fmt.Sprintf("[Catalog Alert] %s", alert.ItemID)
	}
}
