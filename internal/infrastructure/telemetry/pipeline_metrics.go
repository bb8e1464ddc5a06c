package telemetry

import (
	"context"
	"time"

	"github.com/erp/catalog-monitor/internal/infrastructure/catalogapi"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewPipelineMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// PipelineMetrics provides metrics for the catalog monitoring pipeline.
// It tracks catalog API traffic, change detection, and alert delivery.
type PipelineMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	apiRequestTotal  *Counter
	itemChangedTotal *Counter
	alertSentTotal   *Counter

	// Distributions
	apiRequestDuration *Histogram
	runDuration        *Histogram

	// Gauge metrics (point-in-time values)
	quotaUsed *Gauge
}

// PipelineMetricsConfig holds configuration for pipeline metrics.
type PipelineMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewPipelineMetrics creates a new PipelineMetrics instance.
func NewPipelineMetrics(cfg PipelineMetricsConfig) (*PipelineMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pm := &PipelineMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	pm.apiRequestTotal, err = NewCounter(
		cfg.Meter,
		"catmon_api_request_total",
		"Total number of catalog API requests by operation and outcome",
		"{requests}",
	)
	if err != nil {
		return nil, err
	}

	pm.itemChangedTotal, err = NewCounter(
		cfg.Meter,
		"catmon_item_changed_total",
		"Total number of items with detected changes",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	pm.alertSentTotal, err = NewCounter(
		cfg.Meter,
		"catmon_alert_sent_total",
		"Total number of alerts dispatched",
		"{alerts}",
	)
	if err != nil {
		return nil, err
	}

	pm.apiRequestDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "catmon_api_request_duration_seconds",
		Description: "Catalog API request duration",
		Unit:        "s",
		Boundaries:  APIDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	pm.runDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "catmon_run_duration_seconds",
		Description: "Scheduler run duration by tier",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	pm.quotaUsed, err = NewGauge(
		cfg.Meter,
		"catmon_quota_used",
		"Catalog API requests consumed from today's budget",
		"{requests}",
	)
	if err != nil {
		return nil, err
	}

	return pm, nil
}

// RecordRequest records one catalog API request attempt.
// It is called per attempt, so retries count separately.
func (pm *PipelineMetrics) RecordRequest(ctx context.Context, operation, outcome string, elapsed time.Duration) {
	pm.apiRequestTotal.Inc(ctx,
		AttrOperation.String(operation),
		AttrOutcome.String(outcome),
	)
	pm.apiRequestDuration.RecordDuration(ctx, elapsed,
		AttrOperation.String(operation),
		AttrOutcome.String(outcome),
	)
}

// RecordItemChanged records one item with a detected change.
func (pm *PipelineMetrics) RecordItemChanged(ctx context.Context) {
	pm.itemChangedTotal.Inc(ctx)
}

// RecordAlertSent records one dispatched alert.
func (pm *PipelineMetrics) RecordAlertSent(ctx context.Context, alertType string) {
	pm.alertSentTotal.Inc(ctx, AttrAlertType.String(alertType))
}

// RecordRunDuration records the wall-clock duration of one scheduler run.
func (pm *PipelineMetrics) RecordRunDuration(ctx context.Context, tier string, elapsed time.Duration) {
	pm.runDuration.RecordDuration(ctx, elapsed, AttrTier.String(tier))
}

// RecordQuotaUsed records the current position in today's request budget.
func (pm *PipelineMetrics) RecordQuotaUsed(ctx context.Context, used int64) {
	pm.quotaUsed.Record(ctx, used)
}

// Ensure PipelineMetrics implements the catalog client's RequestMetrics
var _ catalogapi.RequestMetrics = (*PipelineMetrics)(nil)
