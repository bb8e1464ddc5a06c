package persistence

import (
	"context"
	"time"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"gorm.io/gorm"
)

// GormPriceHistoryRepository implements PriceHistoryRepository using GORM
type GormPriceHistoryRepository struct {
	db *gorm.DB
}

// NewGormPriceHistoryRepository creates a new GormPriceHistoryRepository
func NewGormPriceHistoryRepository(db *gorm.DB) *GormPriceHistoryRepository {
	return &GormPriceHistoryRepository{db: db}
}

// Append writes an immutable price history entry
func (r *GormPriceHistoryRepository) Append(ctx context.Context, entry *catalog.PriceHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByItemID returns recent price history entries for an item, newest first
func (r *GormPriceHistoryRepository) FindByItemID(ctx context.Context, itemID string, limit int) ([]catalog.PriceHistoryEntry, error) {
	var entries []catalog.PriceHistoryEntry
	query := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("recorded_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteBefore prunes entries recorded before the cutoff and returns the
// number of rows removed
func (r *GormPriceHistoryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recorded_at < ?", cutoff).
		Delete(&catalog.PriceHistoryEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ensure GormPriceHistoryRepository implements PriceHistoryRepository
var _ catalog.PriceHistoryRepository = (*GormPriceHistoryRepository)(nil)
