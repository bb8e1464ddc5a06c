package monitoring

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"github.com/erp/catalog-monitor/internal/domain/shared"
)

// Channel delivers one alert to one destination
type Channel interface {
	// Name identifies the channel in logs and the alert audit trail
	Name() string
	// Send delivers the alert. Errors are reported per channel and never
	// abort the fan-out.
	Send(ctx context.Context, alert catalog.Alert) error
}

// DispatchResult reports per-channel delivery of one alert
type DispatchResult struct {
	Delivered []string
	Failed    []string
	Skipped   bool
}

// AlertService fans alerts out to every configured channel and appends an
// audit row per dispatched alert. One channel failing never blocks the
// others, and delivery failures are not run failures.
type AlertService struct {
	channels []Channel
	alertLog catalog.AlertLogRepository
	dryRun   bool
	logger   *zap.Logger
	now      func() time.Time
}

// NewAlertService creates an alert dispatcher over the given channels.
// With dryRun set, alerts are logged and audited but never delivered.
func NewAlertService(channels []Channel, alertLog catalog.AlertLogRepository, dryRun bool, logger *zap.Logger) *AlertService {
	return &AlertService{
		channels: channels,
		alertLog: alertLog,
		dryRun:   dryRun,
		logger:   logger.Named("alerts"),
		now:      time.Now,
	}
}

// Dispatch delivers one alert to all channels
func (s *AlertService) Dispatch(ctx context.Context, alert catalog.Alert) DispatchResult {
	result := DispatchResult{}

	if s.dryRun {
		s.logger.Info("dry run, alert suppressed",
			zap.String("item_id", alert.ItemID),
			zap.String("type", string(alert.Type)),
			zap.String("message", alert.Message))
		result.Skipped = true
		return result
	}

	for _, channel := range s.channels {
		if err := channel.Send(ctx, alert); err != nil {
			result.Failed = append(result.Failed, channel.Name())
			s.logger.Error("alert delivery failed",
				zap.String("channel", channel.Name()),
				zap.String("item_id", alert.ItemID),
				zap.String("type", string(alert.Type)),
				zap.Error(err))
			continue
		}
		result.Delivered = append(result.Delivered, channel.Name())
	}

	s.appendAuditRow(ctx, alert, result)

	s.logger.Info("alert dispatched",
		zap.String("item_id", alert.ItemID),
		zap.String("type", string(alert.Type)),
		zap.Strings("delivered", result.Delivered),
		zap.Strings("failed", result.Failed))
	return result
}

// DispatchAll delivers a batch of alerts, returning how many had at least
// one successful delivery
func (s *AlertService) DispatchAll(ctx context.Context, alerts []catalog.Alert) int {
	dispatched := 0
	for _, alert := range alerts {
		result := s.Dispatch(ctx, alert)
		if result.Skipped || len(result.Delivered) > 0 {
			dispatched++
		}
	}
	return dispatched
}

func (s *AlertService) appendAuditRow(ctx context.Context, alert catalog.Alert, result DispatchResult) {
	if s.alertLog == nil {
		return
	}
	entry := &catalog.AlertLogEntry{
		BaseEntity:     shared.NewBaseEntity(),
		ItemID:         alert.ItemID,
		Type:           alert.Type,
		Message:        alert.Message,
		Channels:       strings.Join(append(append([]string{}, result.Delivered...), result.Failed...), ","),
		DeliveredCount: len(result.Delivered),
		FailedCount:    len(result.Failed),
		OccurredAt:     alert.OccurredAt,
	}
	if err := s.alertLog.Append(ctx, entry); err != nil {
		s.logger.Error("alert audit append failed",
			zap.String("item_id", alert.ItemID),
			zap.Error(err))
	}
}
