package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"github.com/erp/catalog-monitor/internal/domain/shared"
	"gorm.io/gorm"
)

// GormItemRepository implements ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByItemID finds a catalog item by its external identifier
func (r *GormItemRepository) FindByItemID(ctx context.Context, itemID string) (*catalog.Item, error) {
	var item catalog.Item
	if err := r.db.WithContext(ctx).First(&item, "item_id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindByItemIDs finds multiple catalog items by their external identifiers
func (r *GormItemRepository) FindByItemIDs(ctx context.Context, itemIDs []string) ([]catalog.Item, error) {
	if len(itemIDs) == 0 {
		return []catalog.Item{}, nil
	}

	var items []catalog.Item
	if err := r.db.WithContext(ctx).
		Where("item_id IN ?", itemIDs).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Save creates or updates a catalog item
func (r *GormItemRepository) Save(ctx context.Context, item *catalog.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// MarkStaleBefore flags items whose last API refresh predates the cutoff
// and returns the number of items flagged
func (r *GormItemRepository) MarkStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&catalog.Item{}).
		Where("last_api_update_at < ? AND is_stale = ?", cutoff, false).
		Updates(map[string]any{
			"is_stale":   true,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Count returns the total number of catalog items
func (r *GormItemRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&catalog.Item{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormItemRepository implements ItemRepository
var _ catalog.ItemRepository = (*GormItemRepository)(nil)
