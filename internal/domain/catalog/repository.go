package catalog

import (
	"context"
	"time"
)

// ItemRepository persists catalog item snapshots
type ItemRepository interface {
	// FindByItemID finds an item by its external catalog identifier
	FindByItemID(ctx context.Context, itemID string) (*Item, error)
	// FindByItemIDs finds multiple items by their external identifiers
	FindByItemIDs(ctx context.Context, itemIDs []string) ([]Item, error)
	// Save creates or updates an item
	Save(ctx context.Context, item *Item) error
	// MarkStaleBefore flags items not refreshed since the cutoff; returns
	// the number of items flagged
	MarkStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// Count returns the total number of items
	Count(ctx context.Context) (int64, error)
}

// PriceHistoryRepository appends and queries price history rows
type PriceHistoryRepository interface {
	// Append writes an immutable history entry
	Append(ctx context.Context, entry *PriceHistoryEntry) error
	// FindByItemID returns recent entries for an item, newest first
	FindByItemID(ctx context.Context, itemID string, limit int) ([]PriceHistoryEntry, error)
	// DeleteBefore prunes entries recorded before the cutoff; returns the
	// number of rows removed
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StockHistoryRepository appends and queries stock history rows
type StockHistoryRepository interface {
	Append(ctx context.Context, entry *StockHistoryEntry) error
	FindByItemID(ctx context.Context, itemID string, limit int) ([]StockHistoryEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MonitoringRuleRepository persists monitoring rules
type MonitoringRuleRepository interface {
	// FindByItemID finds the rule owning an item
	FindByItemID(ctx context.Context, itemID string) (*MonitoringRule, error)
	// FindDue returns active rules with next_check_at <= now, optionally
	// filtered by priority tier, ordered high priority first then most
	// overdue first
	FindDue(ctx context.Context, now time.Time, priority *PriorityLevel, limit int) ([]MonitoringRule, error)
	// Save creates or updates a rule
	Save(ctx context.Context, rule *MonitoringRule) error
	// CountActive returns the number of active rules
	CountActive(ctx context.Context) (int64, error)
}

// RequestLedgerRepository is the persistent day-scoped request counter
// consulted by the quota governor
type RequestLedgerRepository interface {
	// Increment adds one to the given day's counter, creating the row if
	// missing, and returns the new count
	Increment(ctx context.Context, day string) (int64, error)
	// CountForDay returns the request count recorded for a day
	CountForDay(ctx context.Context, day string) (int64, error)
}

// AlertLogRepository appends alert audit records
type AlertLogRepository interface {
	Append(ctx context.Context, entry *AlertLogEntry) error
	FindRecent(ctx context.Context, limit int) ([]AlertLogEntry, error)
}
