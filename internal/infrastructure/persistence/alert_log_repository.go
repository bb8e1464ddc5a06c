package persistence

import (
	"context"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"gorm.io/gorm"
)

// GormAlertLogRepository implements AlertLogRepository using GORM
type GormAlertLogRepository struct {
	db *gorm.DB
}

// NewGormAlertLogRepository creates a new GormAlertLogRepository
func NewGormAlertLogRepository(db *gorm.DB) *GormAlertLogRepository {
	return &GormAlertLogRepository{db: db}
}

// Append writes an alert audit record
func (r *GormAlertLogRepository) Append(ctx context.Context, entry *catalog.AlertLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindRecent returns the most recently occurred alert audit records
func (r *GormAlertLogRepository) FindRecent(ctx context.Context, limit int) ([]catalog.AlertLogEntry, error) {
	var entries []catalog.AlertLogEntry
	query := r.db.WithContext(ctx).Order("occurred_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Ensure GormAlertLogRepository implements AlertLogRepository
var _ catalog.AlertLogRepository = (*GormAlertLogRepository)(nil)
