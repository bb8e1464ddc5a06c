package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"github.com/erp/catalog-monitor/internal/domain/shared"
)

// defaultMaterialityThreshold is the relative price delta below which a
// change is treated as noise and excluded from history
var defaultMaterialityThreshold = decimal.NewFromFloat(0.01)

// ChangeSet describes what one snapshot ingestion changed and which alert
// candidates it produced
type ChangeSet struct {
	Item         *catalog.Item
	ItemCreated  bool
	PriceEntry   *catalog.PriceHistoryEntry
	StockEntry   *catalog.StockHistoryEntry
	Rule         *catalog.MonitoringRule
	RuleCreated  bool
	Alerts       []catalog.Alert
}

// HasChanges reports whether any history row was produced
func (c *ChangeSet) HasChanges() bool {
	return c.PriceEntry != nil || c.StockEntry != nil
}

// ChangeService ingests normalized snapshots: it upserts the item, records
// material price changes and availability transitions, lazily creates the
// item's monitoring rule, and derives alert candidates from the rule's
// flags. All writes for one snapshot happen inside one transaction.
type ChangeService struct {
	scope           TransactionScope
	threshold       decimal.Decimal
	defaultPriority catalog.PriorityLevel
	logger          *zap.Logger
	now             func() time.Time
}

// NewChangeService creates a change service with the default materiality
// threshold and the given default rule priority
func NewChangeService(scope TransactionScope, defaultPriority catalog.PriorityLevel, logger *zap.Logger) *ChangeService {
	if !catalog.IsValidPriority(defaultPriority) {
		defaultPriority = catalog.PriorityNormal
	}
	return &ChangeService{
		scope:           scope,
		threshold:       defaultMaterialityThreshold,
		defaultPriority: defaultPriority,
		logger:          logger.Named("change"),
		now:             time.Now,
	}
}

// DetectAndRecord applies one snapshot. existing is the item's current row,
// nil when the item has never been seen; the first observation inserts the
// item and produces no history. Price history is written only when the
// relative delta exceeds the materiality threshold, stock history only on
// an availability transition.
func (s *ChangeService) DetectAndRecord(ctx context.Context, existing *catalog.Item, snapshot *catalog.ItemSnapshot) (*ChangeSet, error) {
	if snapshot == nil {
		return nil, shared.NewDomainError("MISSING_SNAPSHOT", "Snapshot is required")
	}

	changes := &ChangeSet{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var (
			previousPrice  *decimal.Decimal
			previousStatus catalog.AvailabilityStatus
		)

		if existing == nil {
			item, err := catalog.NewItem(snapshot)
			if err != nil {
				return err
			}
			changes.Item = item
			changes.ItemCreated = true
		} else {
			if existing.CurrentPrice != nil {
				price := *existing.CurrentPrice
				previousPrice = &price
			}
			previousStatus = existing.Availability
			if err := existing.ApplySnapshot(snapshot); err != nil {
				return err
			}
			changes.Item = existing
		}

		if err := repos.Items().Save(ctx, changes.Item); err != nil {
			return fmt.Errorf("save item %s: %w", snapshot.ItemID, err)
		}

		if !changes.ItemCreated && previousPrice != nil && snapshot.HasPrice() &&
			catalog.PriceChangeIsMaterial(*previousPrice, *snapshot.Price, s.threshold) {
			entry := catalog.NewPriceHistoryEntry(snapshot.ItemID, *previousPrice, *snapshot.Price, snapshot.Currency, snapshot.FetchedAt)
			if err := repos.PriceHistory().Append(ctx, entry); err != nil {
				return fmt.Errorf("append price history for %s: %w", snapshot.ItemID, err)
			}
			changes.PriceEntry = entry
		}

		if !changes.ItemCreated && previousStatus != snapshot.Availability {
			entry := catalog.NewStockHistoryEntry(snapshot.ItemID, previousStatus, snapshot.Availability, snapshot.AvailabilityMessage, snapshot.FetchedAt)
			if err := repos.StockHistory().Append(ctx, entry); err != nil {
				return fmt.Errorf("append stock history for %s: %w", snapshot.ItemID, err)
			}
			changes.StockEntry = entry
		}

		rule, err := s.ensureRule(ctx, repos, snapshot.ItemID)
		if err != nil {
			return err
		}
		changes.Rule = rule.rule
		changes.RuleCreated = rule.created

		changes.Alerts = s.deriveAlerts(changes, previousPrice, snapshot)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("snapshot ingested",
		zap.String("item_id", snapshot.ItemID),
		zap.Bool("created", changes.ItemCreated),
		zap.Bool("price_changed", changes.PriceEntry != nil),
		zap.Bool("stock_changed", changes.StockEntry != nil),
		zap.Int("alerts", len(changes.Alerts)))
	return changes, nil
}

type ensuredRule struct {
	rule    *catalog.MonitoringRule
	created bool
}

// ensureRule loads the item's rule, creating one with the default priority
// on first ingestion
func (s *ChangeService) ensureRule(ctx context.Context, repos TransactionalRepositories, itemID string) (ensuredRule, error) {
	rule, err := repos.Rules().FindByItemID(ctx, itemID)
	if err == nil {
		return ensuredRule{rule: rule}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return ensuredRule{}, fmt.Errorf("load rule for %s: %w", itemID, err)
	}

	rule, err = catalog.NewMonitoringRule(itemID, s.defaultPriority)
	if err != nil {
		return ensuredRule{}, err
	}
	if err := repos.Rules().Save(ctx, rule); err != nil {
		return ensuredRule{}, fmt.Errorf("create rule for %s: %w", itemID, err)
	}
	return ensuredRule{rule: rule, created: true}, nil
}

// deriveAlerts turns the recorded changes into alert candidates, gated by
// the owning rule's flags and per-rule threshold
func (s *ChangeService) deriveAlerts(changes *ChangeSet, previousPrice *decimal.Decimal, snapshot *catalog.ItemSnapshot) []catalog.Alert {
	rule := changes.Rule
	if rule == nil || !rule.IsActive {
		return nil
	}

	var alerts []catalog.Alert

	if rule.MonitorPrice && previousPrice != nil && snapshot.HasPrice() {
		pct := catalog.RelativePriceChange(*previousPrice, *snapshot.Price).Mul(decimal.NewFromInt(100))
		ruleThreshold := decimal.NewFromFloat(rule.PriceChangeThresholdPct)

		if rule.AlertOnPriceDrop && pct.Abs().GreaterThan(ruleThreshold) {
			alertType := catalog.AlertPriceDrop
			if pct.IsPositive() {
				alertType = catalog.AlertPriceIncrease
			}
			alerts = append(alerts, catalog.NewPriceAlert(
				snapshot.ItemID, snapshot.Title, alertType,
				*previousPrice, *snapshot.Price, pct, snapshot.FetchedAt))
		}

		// Target range alert fires on entering the range, not while in it
		if rule.AlertOnPriceThreshold && rule.PriceInTargetRange(*snapshot.Price) &&
			!rule.PriceInTargetRange(*previousPrice) {
			alerts = append(alerts, catalog.NewPriceAlert(
				snapshot.ItemID, snapshot.Title, catalog.AlertPriceThreshold,
				*previousPrice, *snapshot.Price, pct, snapshot.FetchedAt))
		}
	}

	if rule.MonitorStock && changes.StockEntry != nil {
		entry := changes.StockEntry
		if entry.BackInStock && rule.AlertOnBackInStock {
			alerts = append(alerts, catalog.NewStockAlert(
				snapshot.ItemID, snapshot.Title, catalog.AlertBackInStock,
				entry.PreviousStatus, entry.Status, snapshot.FetchedAt))
		}
		if entry.OutOfStock && rule.AlertOnOutOfStock {
			alerts = append(alerts, catalog.NewStockAlert(
				snapshot.ItemID, snapshot.Title, catalog.AlertOutOfStock,
				entry.PreviousStatus, entry.Status, snapshot.FetchedAt))
		}
	}

	return alerts
}
