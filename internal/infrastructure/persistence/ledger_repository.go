package persistence

import (
	"context"
	"time"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRequestLedgerRepository implements RequestLedgerRepository using GORM
type GormRequestLedgerRepository struct {
	db *gorm.DB
}

// NewGormRequestLedgerRepository creates a new GormRequestLedgerRepository
func NewGormRequestLedgerRepository(db *gorm.DB) *GormRequestLedgerRepository {
	return &GormRequestLedgerRepository{db: db}
}

// Increment atomically adds one to the day's request counter, creating the
// row if missing, and returns the new count. The upsert keeps the counter
// correct under concurrent callers.
func (r *GormRequestLedgerRepository) Increment(ctx context.Context, day string) (int64, error) {
	now := time.Now()
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO request_ledger (id, created_at, updated_at, day, request_count)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT (day) DO UPDATE
		 SET request_count = request_ledger.request_count + 1, updated_at = ?
		 RETURNING request_count`,
		uuid.New(), now, now, day, now,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountForDay returns the request count recorded for a day, zero when no
// row exists yet
func (r *GormRequestLedgerRepository) CountForDay(ctx context.Context, day string) (int64, error) {
	var entry catalog.RequestLedgerEntry
	err := r.db.WithContext(ctx).First(&entry, "day = ?", day).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return entry.RequestCount, nil
}

// Ensure GormRequestLedgerRepository implements RequestLedgerRepository
var _ catalog.RequestLedgerRepository = (*GormRequestLedgerRepository)(nil)
