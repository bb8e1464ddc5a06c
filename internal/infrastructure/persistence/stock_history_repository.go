package persistence

import (
	"context"
	"time"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"gorm.io/gorm"
)

// GormStockHistoryRepository implements StockHistoryRepository using GORM
type GormStockHistoryRepository struct {
	db *gorm.DB
}

// NewGormStockHistoryRepository creates a new GormStockHistoryRepository
func NewGormStockHistoryRepository(db *gorm.DB) *GormStockHistoryRepository {
	return &GormStockHistoryRepository{db: db}
}

// Append writes an immutable stock history entry
func (r *GormStockHistoryRepository) Append(ctx context.Context, entry *catalog.StockHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByItemID returns recent stock history entries for an item, newest first
func (r *GormStockHistoryRepository) FindByItemID(ctx context.Context, itemID string, limit int) ([]catalog.StockHistoryEntry, error) {
	var entries []catalog.StockHistoryEntry
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
func (r *GormStockHistoryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recorded_at < ?", cutoff).
		Delete(&catalog.StockHistoryEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ensure GormStockHistoryRepository implements StockHistoryRepository
var _ catalog.StockHistoryRepository = (*GormStockHistoryRepository)(nil)
