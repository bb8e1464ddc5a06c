package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"github.com/erp/catalog-monitor/internal/domain/shared"
	"github.com/erp/catalog-monitor/internal/infrastructure/catalogapi"
)

// Tier selects what a scheduler run works on
type Tier string

const (
	TierHighPriority Tier = "high-priority"
	TierNormal       Tier = "normal"
	TierLowPriority  Tier = "low-priority"
	TierMaintenance  Tier = "maintenance"
	TierHealthCheck  Tier = "health-check"
	TierAll          Tier = "all"
)

// ParseTier validates a tier name from the command line
func ParseTier(name string) (Tier, error) {
	switch Tier(name) {
	case TierHighPriority, TierNormal, TierLowPriority, TierMaintenance, TierHealthCheck, TierAll:
		return Tier(name), nil
	}
	return "", shared.NewDomainError("INVALID_TIER",
		"Tier must be one of high-priority, normal, low-priority, maintenance, health-check, all")
}

// priorityFilter maps a monitoring tier onto the rule priority it selects;
// nil selects every priority
func (t Tier) priorityFilter() *catalog.PriorityLevel {
	var priority catalog.PriorityLevel
	switch t {
	case TierHighPriority:
		priority = catalog.PriorityHigh
	case TierNormal:
		priority = catalog.PriorityNormal
	case TierLowPriority:
		priority = catalog.PriorityLow
	default:
		return nil
	}
	return &priority
}

// RunSummary is the outcome of one scheduler run
type RunSummary struct {
	Tier          Tier          `json:"tier"`
	RulesSelected int           `json:"rules_selected"`
	ItemsFetched  int           `json:"items_fetched"`
	ItemsChanged  int           `json:"items_changed"`
	AlertsSent    int           `json:"alerts_sent"`
	ItemErrors    int           `json:"item_errors"`
	StaleMarked   int64         `json:"stale_marked,omitempty"`
	HistoryPruned int64         `json:"history_pruned,omitempty"`
	QuotaUsed     int64         `json:"quota_used"`
	QuotaCeiling  int64         `json:"quota_ceiling"`
	Duration      time.Duration `json:"duration"`
	Aborted       bool          `json:"aborted"`
}

// Fetcher retrieves catalog items in provider-sized batches
type Fetcher interface {
	FetchAll(ctx context.Context, itemIDs []string, resources []string, onProgress catalogapi.ProgressFunc) (*catalogapi.BatchResult, error)
}

// RunLock guards against overlapping scheduler processes
type RunLock interface {
	Acquire() error
	Release() error
}

// QuotaStatus exposes the governor's budget for summaries and health checks
type QuotaStatus interface {
	Used(ctx context.Context) (int64, error)
	Ceiling() int64
}

// BreakerStatus exposes the circuit position for health checks
type BreakerStatus interface {
	State() catalogapi.CircuitState
}

// Pinger checks database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchedulerConfig tunes one scheduler run
type SchedulerConfig struct {
	// MaxRulesPerRun caps how many due rules one run processes
	MaxRulesPerRun int
	// Resources is the resource path list requested from the API
	Resources []string
	// StaleAfter is the age past which unrefreshed items are marked stale
	StaleAfter time.Duration
	// HistoryRetention is how long price and stock history is kept
	HistoryRetention time.Duration
}

func (c *SchedulerConfig) maxRules() int {
	if c.MaxRulesPerRun <= 0 {
		return 200
	}
	return c.MaxRulesPerRun
}

func (c *SchedulerConfig) staleAfter() time.Duration {
	if c.StaleAfter <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.StaleAfter
}

func (c *SchedulerConfig) historyRetention() time.Duration {
	if c.HistoryRetention <= 0 {
		return 365 * 24 * time.Hour
	}
	return c.HistoryRetention
}

// SchedulerService drives one monitoring run end to end: select due rules,
// fetch their items in batches, ingest each snapshot, dispatch alerts, and
// reschedule every selected rule so the schedule always moves forward.
type SchedulerService struct {
	config     *SchedulerConfig
	runLock    RunLock
	ruleRepo   catalog.MonitoringRuleRepository
	itemRepo   catalog.ItemRepository
	priceRepo  catalog.PriceHistoryRepository
	stockRepo  catalog.StockHistoryRepository
	fetcher    Fetcher
	normalizer *Normalizer
	changes    *ChangeService
	alerts     *AlertService
	quota      QuotaStatus
	breaker    BreakerStatus
	pinger     Pinger
	logger     *zap.Logger
	now        func() time.Time
}

// NewSchedulerService wires a scheduler over its collaborators
func NewSchedulerService(
	config *SchedulerConfig,
	runLock RunLock,
	ruleRepo catalog.MonitoringRuleRepository,
	itemRepo catalog.ItemRepository,
	priceRepo catalog.PriceHistoryRepository,
	stockRepo catalog.StockHistoryRepository,
	fetcher Fetcher,
	normalizer *Normalizer,
	changes *ChangeService,
	alerts *AlertService,
	quota QuotaStatus,
	breaker BreakerStatus,
	pinger Pinger,
	logger *zap.Logger,
) *SchedulerService {
	return &SchedulerService{
		config:     config,
		runLock:    runLock,
		ruleRepo:   ruleRepo,
		itemRepo:   itemRepo,
		priceRepo:  priceRepo,
		stockRepo:  stockRepo,
		fetcher:    fetcher,
		normalizer: normalizer,
		changes:    changes,
		alerts:     alerts,
		quota:      quota,
		breaker:    breaker,
		pinger:     pinger,
		logger:     logger.Named("scheduler"),
		now:        time.Now,
	}
}

// Run executes one scheduler run for the given tier. The returned summary
// is valid even when err is non-nil: an aborted run reports everything
// persisted before the abort.
func (s *SchedulerService) Run(ctx context.Context, tier Tier) (*RunSummary, error) {
	if s.runLock != nil {
		if err := s.runLock.Acquire(); err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		defer func() {
			if err := s.runLock.Release(); err != nil {
				s.logger.Warn("run lock release failed", zap.Error(err))
			}
		}()
	}

	started := s.now()
	summary := &RunSummary{Tier: tier}

	var err error
	switch tier {
	case TierMaintenance:
		err = s.runMaintenance(ctx, summary)
	case TierHealthCheck:
		err = s.runHealthCheck(ctx, summary)
	default:
		err = s.runMonitoring(ctx, tier, summary)
	}

	summary.Duration = s.now().Sub(started)
	s.fillQuota(ctx, summary)

	s.logger.Info("run finished",
		zap.String("tier", string(tier)),
		zap.Int("rules_selected", summary.RulesSelected),
		zap.Int("items_fetched", summary.ItemsFetched),
		zap.Int("items_changed", summary.ItemsChanged),
		zap.Int("alerts_sent", summary.AlertsSent),
		zap.Int("item_errors", summary.ItemErrors),
		zap.Int64("quota_used", summary.QuotaUsed),
		zap.Duration("duration", summary.Duration),
		zap.Bool("aborted", summary.Aborted))
	return summary, err
}

func (s *SchedulerService) runMonitoring(ctx context.Context, tier Tier, summary *RunSummary) error {
	now := s.now()
	rules, err := s.ruleRepo.FindDue(ctx, now, tier.priorityFilter(), s.config.maxRules())
	if err != nil {
		return fmt.Errorf("select due rules: %w", err)
	}
	summary.RulesSelected = len(rules)
	if len(rules) == 0 {
		return nil
	}

	itemIDs := make([]string, 0, len(rules))
	for _, rule := range rules {
		itemIDs = append(itemIDs, rule.ItemID)
	}

	result, fetchErr := s.fetcher.FetchAll(ctx, itemIDs, s.config.Resources, func(p catalogapi.Progress) {
		s.logger.Info("fetch progress",
			zap.Int("chunks_done", p.ChunksDone),
			zap.Int("total_chunks", p.TotalChunks),
			zap.Int("retrieved", p.Retrieved),
			zap.Int("requested", p.Requested),
			zap.Float64("success_rate", p.SuccessRate))
	})
	summary.ItemsFetched = result.Retrieved()
	summary.ItemErrors = len(result.ItemErrors)
	if fetchErr != nil {
		summary.Aborted = true
	}

	byID := make(map[string]catalogapi.RawItem, len(result.Items))
	for _, raw := range result.Items {
		byID[raw.ItemID] = raw
	}

	for i := range rules {
		rule := &rules[i]
		if raw, ok := byID[rule.ItemID]; ok {
			if err := s.ingestItem(ctx, raw, summary); err != nil {
				summary.ItemErrors++
				s.logger.Error("item ingestion failed",
					zap.String("item_id", rule.ItemID),
					zap.Error(err))
			}
		}

		// Every selected rule is rescheduled, fetched or not, so a
		// persistently failing item cannot pin the schedule
		rule.Reschedule(now)
		if err := s.ruleRepo.Save(ctx, rule); err != nil {
			summary.ItemErrors++
			s.logger.Error("rule reschedule failed",
				zap.String("item_id", rule.ItemID),
				zap.Error(err))
		}
	}

	if fetchErr != nil {
		return fmt.Errorf("batch fetch aborted: %w", fetchErr)
	}
	return nil
}

func (s *SchedulerService) ingestItem(ctx context.Context, raw catalogapi.RawItem, summary *RunSummary) error {
	snapshot := s.normalizer.Normalize(raw)

	existing, err := s.itemRepo.FindByItemID(ctx, snapshot.ItemID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("load item %s: %w", snapshot.ItemID, err)
	}

	changeSet, err := s.changes.DetectAndRecord(ctx, existing, snapshot)
	if err != nil {
		return err
	}
	if changeSet.HasChanges() {
		summary.ItemsChanged++
	}
	summary.AlertsSent += s.alerts.DispatchAll(ctx, changeSet.Alerts)
	return nil
}

// runMaintenance marks unrefreshed items stale and prunes history past the
// retention window. It makes no API calls.
func (s *SchedulerService) runMaintenance(ctx context.Context, summary *RunSummary) error {
	now := s.now()

	stale, err := s.itemRepo.MarkStaleBefore(ctx, now.Add(-s.config.staleAfter()))
	if err != nil {
		return fmt.Errorf("mark stale items: %w", err)
	}
	summary.StaleMarked = stale

	cutoff := now.Add(-s.config.historyRetention())
	pricePruned, err := s.priceRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune price history: %w", err)
	}
	stockPruned, err := s.stockRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune stock history: %w", err)
	}
	summary.HistoryPruned = pricePruned + stockPruned

	s.logger.Info("maintenance complete",
		zap.Int64("stale_marked", stale),
		zap.Int64("price_pruned", pricePruned),
		zap.Int64("stock_pruned", stockPruned))
	return nil
}

// runHealthCheck verifies connectivity and reports breaker and quota
// status. It makes no API calls.
func (s *SchedulerService) runHealthCheck(ctx context.Context, summary *RunSummary) error {
	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			return fmt.Errorf("database ping: %w", err)
		}
	}

	active, err := s.ruleRepo.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("count active rules: %w", err)
	}
	items, err := s.itemRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}

	breakerState := catalogapi.CircuitClosed
	if s.breaker != nil {
		breakerState = s.breaker.State()
	}

	s.logger.Info("health check",
		zap.Int64("active_rules", active),
		zap.Int64("items", items),
		zap.String("breaker_state", breakerState.String()))
	return nil
}

func (s *SchedulerService) fillQuota(ctx context.Context, summary *RunSummary) {
	if s.quota == nil {
		return
	}
	used, err := s.quota.Used(ctx)
	if err != nil {
		s.logger.Warn("quota status unavailable", zap.Error(err))
		return
	}
	summary.QuotaUsed = used
	summary.QuotaCeiling = s.quota.Ceiling()
}
