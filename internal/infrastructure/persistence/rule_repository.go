package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"github.com/erp/catalog-monitor/internal/domain/shared"
	"gorm.io/gorm"
)

// priorityOrderExpr sorts rules high priority first. Priorities are stored
// as strings, so a CASE expression maps them to a sortable rank.
const priorityOrderExpr = "CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END"

// GormMonitoringRuleRepository implements MonitoringRuleRepository using GORM
type GormMonitoringRuleRepository struct {
	db *gorm.DB
}

// NewGormMonitoringRuleRepository creates a new GormMonitoringRuleRepository
func NewGormMonitoringRuleRepository(db *gorm.DB) *GormMonitoringRuleRepository {
	return &GormMonitoringRuleRepository{db: db}
}

// FindByItemID finds the monitoring rule owning an item
func (r *GormMonitoringRuleRepository) FindByItemID(ctx context.Context, itemID string) (*catalog.MonitoringRule, error) {
	var rule catalog.MonitoringRule
	if err := r.db.WithContext(ctx).First(&rule, "item_id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// FindDue returns active rules due for a check at the given time, ordered
// high priority first then most overdue first
func (r *GormMonitoringRuleRepository) FindDue(ctx context.Context, now time.Time, priority *catalog.PriorityLevel, limit int) ([]catalog.MonitoringRule, error) {
	query := r.db.WithContext(ctx).
		Model(&catalog.MonitoringRule{}).
		Where("is_active = ? AND next_check_at <= ?", true, now)
	if priority != nil {
		query = query.Where("priority = ?", *priority)
	}
	query = query.Order(priorityOrderExpr).Order("next_check_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rules []catalog.MonitoringRule
	if err := query.Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Save creates or updates a monitoring rule
func (r *GormMonitoringRuleRepository) Save(ctx context.Context, rule *catalog.MonitoringRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// CountActive returns the number of active monitoring rules
func (r *GormMonitoringRuleRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&catalog.MonitoringRule{}).
		Where("is_active = ?", true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormMonitoringRuleRepository implements MonitoringRuleRepository
var _ catalog.MonitoringRuleRepository = (*GormMonitoringRuleRepository)(nil)
