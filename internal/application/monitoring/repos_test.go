package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"github.com/erp/catalog-monitor/internal/domain/shared"
)

// In-memory repositories backing the service tests

type memItemRepo struct {
	items map[string]*catalog.Item
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: make(map[string]*catalog.Item)}
}

func (r *memItemRepo) FindByItemID(_ context.Context, itemID string) (*catalog.Item, error) {
	item, ok := r.items[itemID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (r *memItemRepo) FindByItemIDs(_ context.Context, itemIDs []string) ([]catalog.Item, error) {
	var found []catalog.Item
	for _, id := range itemIDs {
		if item, ok := r.items[id]; ok {
			found = append(found, *item)
		}
	}
	return found, nil
}

func (r *memItemRepo) Save(_ context.Context, item *catalog.Item) error {
	copied := *item
	r.items[item.ItemID] = &copied
	return nil
}

func (r *memItemRepo) MarkStaleBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var marked int64
	for _, item := range r.items {
		if !item.IsStale && item.LastAPIUpdateAt.Before(cutoff) {
			item.MarkStale()
			marked++
		}
	}
	return marked, nil
}

func (r *memItemRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.items)), nil
}

type memPriceRepo struct {
	entries []catalog.PriceHistoryEntry
}

func (r *memPriceRepo) Append(_ context.Context, entry *catalog.PriceHistoryEntry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memPriceRepo) FindByItemID(_ context.Context, itemID string, limit int) ([]catalog.PriceHistoryEntry, error) {
	var found []catalog.PriceHistoryEntry
	for _, entry := range r.entries {
		if entry.ItemID == itemID {
			found = append(found, entry)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].RecordedAt.After(found[j].RecordedAt) })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (r *memPriceRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []catalog.PriceHistoryEntry
	var deleted int64
	for _, entry := range r.entries {
		if entry.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	r.entries = kept
	return deleted, nil
}

type memStockRepo struct {
	entries []catalog.StockHistoryEntry
}

func (r *memStockRepo) Append(_ context.Context, entry *catalog.StockHistoryEntry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memStockRepo) FindByItemID(_ context.Context, itemID string, limit int) ([]catalog.StockHistoryEntry, error) {
	var found []catalog.StockHistoryEntry
	for _, entry := range r.entries {
		if entry.ItemID == itemID {
			found = append(found, entry)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].RecordedAt.After(found[j].RecordedAt) })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (r *memStockRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []catalog.StockHistoryEntry
	var deleted int64
	for _, entry := range r.entries {
		if entry.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	r.entries = kept
	return deleted, nil
}

type memRuleRepo struct {
	rules map[string]*catalog.MonitoringRule
}

func newMemRuleRepo() *memRuleRepo {
	return &memRuleRepo{rules: make(map[string]*catalog.MonitoringRule)}
}

func (r *memRuleRepo) FindByItemID(_ context.Context, itemID string) (*catalog.MonitoringRule, error) {
	rule, ok := r.rules[itemID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *rule
	return &copied, nil
}

func (r *memRuleRepo) FindDue(_ context.Context, now time.Time, priority *catalog.PriorityLevel, limit int) ([]catalog.MonitoringRule, error) {
	var due []catalog.MonitoringRule
	for _, rule := range r.rules {
		if !rule.IsDue(now) {
			continue
		}
		if priority != nil && rule.Priority != *priority {
			continue
		}
		due = append(due, *rule)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ItemID < due[j].ItemID })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memRuleRepo) Save(_ context.Context, rule *catalog.MonitoringRule) error {
	copied := *rule
	r.rules[rule.ItemID] = &copied
	return nil
}

func (r *memRuleRepo) CountActive(_ context.Context) (int64, error) {
	var active int64
	for _, rule := range r.rules {
		if rule.IsActive {
			active++
		}
	}
	return active, nil
}

type memAlertLog struct {
	entries []catalog.AlertLogEntry
}

func (r *memAlertLog) Append(_ context.Context, entry *catalog.AlertLogEntry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAlertLog) FindRecent(_ context.Context, limit int) ([]catalog.AlertLogEntry, error) {
	entries := append([]catalog.AlertLogEntry{}, r.entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].OccurredAt.After(entries[j].OccurredAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// capturingChannel records every alert it receives
type capturingChannel struct {
	name   string
	alerts []catalog.Alert
	err    error
}

func (c *capturingChannel) Name() string { return c.name }

func (c *capturingChannel) Send(_ context.Context, alert catalog.Alert) error {
	if c.err != nil {
		return c.err
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

// Interface conformance
var (
	_ catalog.ItemRepository           = (*memItemRepo)(nil)
	_ catalog.PriceHistoryRepository   = (*memPriceRepo)(nil)
	_ catalog.StockHistoryRepository   = (*memStockRepo)(nil)
	_ catalog.MonitoringRuleRepository = (*memRuleRepo)(nil)
	_ catalog.AlertLogRepository       = (*memAlertLog)(nil)
)
