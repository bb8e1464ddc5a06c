package catalog

import (
	"time"

	"github.com/erp/catalog-monitor/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PriorityLevel is the monitoring priority tier of a rule
type PriorityLevel string

const (
	PriorityHigh   PriorityLevel = "high"
	PriorityNormal PriorityLevel = "normal"
	PriorityLow    PriorityLevel = "low"
)

// Default check frequencies per priority tier, in minutes
const (
	FrequencyHighMinutes   = 30
	FrequencyNormalMinutes = 120
	FrequencyLowMinutes    = 1440
)

// DefaultCheckFrequencyMinutes returns the tier default check frequency
func DefaultCheckFrequencyMinutes(priority PriorityLevel) int {
	switch priority {
	case PriorityHigh:
		return FrequencyHighMinutes
	case PriorityLow:
		return FrequencyLowMinutes
	default:
		return FrequencyNormalMinutes
	}
}

// IsValidPriority reports whether the value is a known priority tier
func IsValidPriority(priority PriorityLevel) bool {
	switch priority {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// MonitoringRule decides when and how a catalog item is re-checked.
// At most one active rule exists per item; rules are created lazily on
// first ingestion and soft-deactivated, never hard-deleted.
type MonitoringRule struct {
	shared.BaseEntity
	ItemID                  string           `gorm:"type:varchar(20);not null;uniqueIndex"`
	Priority                PriorityLevel    `gorm:"type:varchar(10);not null;default:'normal'"`
	CheckFrequencyMinutes   int              `gorm:"not null"`
	MonitorPrice            bool             `gorm:"not null;default:true"`
	MonitorStock            bool             `gorm:"not null;default:true"`
	PriceChangeThresholdPct float64          `gorm:"not null;default:1"`
	TargetPriceMin          *decimal.Decimal `gorm:"type:decimal(18,4)"`
	TargetPriceMax          *decimal.Decimal `gorm:"type:decimal(18,4)"`
	AlertOnPriceDrop        bool             `gorm:"not null;default:true"`
	AlertOnPriceThreshold   bool             `gorm:"not null;default:false"`
	AlertOnBackInStock      bool             `gorm:"not null;default:true"`
	AlertOnOutOfStock       bool             `gorm:"not null;default:true"`
	IsActive                bool             `gorm:"not null;default:true"`
	NextCheckAt             time.Time        `gorm:"not null;index"`
	LastCheckedAt           *time.Time
}

// TableName returns the table name for GORM
func (MonitoringRule) TableName() string {
	return "monitoring_rules"
}

// NewMonitoringRule creates an active rule for an item with tier defaults
func NewMonitoringRule(itemID string, priority PriorityLevel) (*MonitoringRule, error) {
	if err := ValidateItemID(itemID); err != nil {
		return nil, err
	}
	if !IsValidPriority(priority) {
		return nil, shared.NewDomainError("INVALID_PRIORITY", "Priority must be high, normal, or low")
	}

	freq := DefaultCheckFrequencyMinutes(priority)
	return &MonitoringRule{
		BaseEntity:              shared.NewBaseEntity(),
		ItemID:                  itemID,
		Priority:                priority,
		CheckFrequencyMinutes:   freq,
		MonitorPrice:            true,
		MonitorStock:            true,
		PriceChangeThresholdPct: 1,
		AlertOnPriceDrop:        true,
		AlertOnBackInStock:      true,
		AlertOnOutOfStock:       true,
		IsActive:                true,
		NextCheckAt:             time.Now(),
	}, nil
}

// IsDue reports whether the rule should be checked at the given time
func (r *MonitoringRule) IsDue(now time.Time) bool {
	return r.IsActive && !r.NextCheckAt.After(now)
}

// Reschedule computes the next check time from the run that processed the
// rule. It is applied after every run, success or failure, so a rule always
// makes forward progress.
func (r *MonitoringRule) Reschedule(now time.Time) {
	r.NextCheckAt = now.Add(time.Duration(r.CheckFrequencyMinutes) * time.Minute)
	checked := now
	r.LastCheckedAt = &checked
	r.UpdatedAt = now
}

// SetPriority changes the priority tier and resets the frequency to the
// tier default
func (r *MonitoringRule) SetPriority(priority PriorityLevel) error {
	if !IsValidPriority(priority) {
		return shared.NewDomainError("INVALID_PRIORITY", "Priority must be high, normal, or low")
	}
	r.Priority = priority
	r.CheckFrequencyMinutes = DefaultCheckFrequencyMinutes(priority)
	r.UpdatedAt = time.Now()
	return nil
}

// SetTargetPriceRange sets the price band that triggers threshold alerts
func (r *MonitoringRule) SetTargetPriceRange(min, max *decimal.Decimal) error {
	if min != nil && max != nil && min.GreaterThan(*max) {
		return shared.NewDomainError("INVALID_PRICE_RANGE", "Target price min cannot exceed max")
	}
	r.TargetPriceMin = min
	r.TargetPriceMax = max
	r.AlertOnPriceThreshold = min != nil || max != nil
	r.UpdatedAt = time.Now()
	return nil
}

// Deactivate soft-deletes the rule
func (r *MonitoringRule) Deactivate() {
	r.IsActive = false
	r.UpdatedAt = time.Now()
}

// PriceInTargetRange reports whether a price falls inside the configured
// target band; an unset bound is unbounded on that side
func (r *MonitoringRule) PriceInTargetRange(price decimal.Decimal) bool {
	if r.TargetPriceMin == nil && r.TargetPriceMax == nil {
		return false
	}
	if r.TargetPriceMin != nil && price.LessThan(*r.TargetPriceMin) {
		return false
	}
	if r.TargetPriceMax != nil && price.GreaterThan(*r.TargetPriceMax) {
		return false
	}
	return true
}
