package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"github.com/erp/catalog-monitor/internal/infrastructure/catalogapi"
)

type memLedger struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *memLedger) Increment(_ context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[day]++
	return m.counts[day], nil
}

func (m *memLedger) CountForDay(_ context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[day], nil
}

type fakeRunLock struct {
	acquired int
	released int
	err      error
}

func (l *fakeRunLock) Acquire() error {
	if l.err != nil {
		return l.err
	}
	l.acquired++
	return nil
}

func (l *fakeRunLock) Release() error {
	l.released++
	return nil
}

type fakePinger struct{ err error }

func (p *fakePinger) Ping(context.Context) error { return p.err }

type schedulerFixture struct {
	itemRepo  *memItemRepo
	priceRepo *memPriceRepo
	stockRepo *memStockRepo
	ruleRepo  *memRuleRepo
	alertLog  *memAlertLog
	channel   *capturingChannel
	runLock   *fakeRunLock
	pinger    *fakePinger
	breaker   *catalogapi.CircuitBreaker
	service   *SchedulerService
	now       time.Time
}

func newSchedulerFixture(t *testing.T, endpoint string) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		itemRepo:  newMemItemRepo(),
		priceRepo: &memPriceRepo{},
		stockRepo: &memStockRepo{},
		ruleRepo:  newMemRuleRepo(),
		alertLog:  &memAlertLog{},
		channel:   &capturingChannel{name: "webhook"},
		runLock:   &fakeRunLock{},
		pinger:    &fakePinger{},
		now:       time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	logger := zap.NewNop()
	governor, err := catalogapi.NewQuotaGovernor(&memLedger{}, 1000, time.Millisecond, logger)
	require.NoError(t, err)
	f.breaker = catalogapi.NewCircuitBreaker(5, time.Minute, logger)
	client, err := catalogapi.NewClient(&catalogapi.ClientConfig{
		Endpoint:            endpoint,
		AccessKey:           "AKTEST12345",
		SecretKey:           "secret-key-material",
		PartnerTag:          "partner-42",
		Marketplace:         "marketplace.example.com",
		TimeoutSeconds:      5,
		ThrottleRetryBaseMs: 1,
	}, governor, f.breaker, nil, nil, logger)
	require.NoError(t, err)

	scope := NewNoOpTransactionScope(f.itemRepo, f.priceRepo, f.stockRepo, f.ruleRepo)
	changes := NewChangeService(scope, catalog.PriorityNormal, logger)
	alerts := NewAlertService([]Channel{f.channel}, f.alertLog, false, logger)

	f.service = NewSchedulerService(
		&SchedulerConfig{MaxRulesPerRun: 100},
		f.runLock,
		f.ruleRepo, f.itemRepo, f.priceRepo, f.stockRepo,
		catalogapi.NewBatchFetcher(client, logger),
		NewNormalizer("catalog-api"),
		changes, alerts,
		governor, f.breaker, f.pinger,
		logger,
	)
	f.service.now = func() time.Time { return f.now }
	return f
}

// seedRules creates n due normal-priority rules with sequential item IDs
func (f *schedulerFixture) seedRules(t *testing.T, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("B00TEST%03d", i)
		rule, err := catalog.NewMonitoringRule(ids[i], catalog.PriorityNormal)
		require.NoError(t, err)
		rule.NextCheckAt = f.now.Add(-time.Hour)
		require.NoError(t, f.ruleRepo.Save(context.Background(), rule))
	}
	return ids
}

// priceItemsHandler answers GetItems with priced in-stock items
func priceItemsHandler(t *testing.T, price float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ItemIDs []string `json:"itemIds"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		items := make([]map[string]any, 0, len(req.ItemIDs))
		for _, id := range req.ItemIDs {
			items = append(items, map[string]any{
				"itemId": id,
				"itemInfo": map[string]any{
					"title": map[string]any{"displayValue": "Item " + id},
				},
				"offers": map[string]any{
					"listings": []map[string]any{{
						"price":        map[string]any{"amount": price, "currency": "USD"},
						"availability": map[string]any{"message": "In Stock"},
					}},
				},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"itemsResult": map[string]any{"items": items},
		})
	}
}

func TestSchedulerService_FullRun(t *testing.T) {
	server := httptest.NewServer(priceItemsHandler(t, 99.99))
	defer server.Close()

	f := newSchedulerFixture(t, server.URL)
	f.seedRules(t, 25)

	summary, err := f.service.Run(context.Background(), TierNormal)
	require.NoError(t, err)

	assert.Equal(t, 25, summary.RulesSelected)
	assert.Equal(t, 25, summary.ItemsFetched)
	assert.Equal(t, 0, summary.ItemErrors)
	assert.False(t, summary.Aborted)
	assert.Equal(t, int64(3), summary.QuotaUsed) // 25 items in 3 chunks

	items, err := f.itemRepo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(25), items)

	assert.Equal(t, 1, f.runLock.acquired)
	assert.Equal(t, 1, f.runLock.released)
}

// A processed rule is rescheduled a full tier interval ahead, whether or
// not its fetch succeeded
func TestSchedulerService_ReschedulesAllSelectedRules(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		priceItemsHandler(t, 99.99)(w, r)
	}))
	defer server.Close()

	f := newSchedulerFixture(t, server.URL)
	ids := f.seedRules(t, 25)

	summary, err := f.service.Run(context.Background(), TierNormal)
	require.NoError(t, err)
	assert.Equal(t, 15, summary.ItemsFetched)

	wantNext := f.now.Add(time.Duration(catalog.FrequencyNormalMinutes) * time.Minute)
	for _, id := range ids {
		rule, err := f.ruleRepo.FindByItemID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, wantNext, rule.NextCheckAt, "rule %s", id)
		require.NotNil(t, rule.LastCheckedAt)
		assert.Equal(t, f.now, *rule.LastCheckedAt)
	}
}

func TestSchedulerService_FatalAbortsButKeepsWork(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 2 {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"errors": [{"code": "AccessDenied", "message": "credentials rejected"}]}`)
			return
		}
		priceItemsHandler(t, 99.99)(w, r)
	}))
	defer server.Close()

	f := newSchedulerFixture(t, server.URL)
	ids := f.seedRules(t, 25)

	summary, err := f.service.Run(context.Background(), TierNormal)

	var fatal *catalogapi.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.True(t, summary.Aborted)
	assert.Equal(t, int32(2), requests.Load())

	// Chunk 1 was persisted before the abort
	assert.Equal(t, 10, summary.ItemsFetched)
	items, countErr := f.itemRepo.Count(context.Background())
	require.NoError(t, countErr)
	assert.Equal(t, int64(10), items)

	// The schedule still moved forward for every selected rule
	for _, id := range ids {
		rule, findErr := f.ruleRepo.FindByItemID(context.Background(), id)
		require.NoError(t, findErr)
		assert.True(t, rule.NextCheckAt.After(f.now), "rule %s", id)
	}
}

func TestSchedulerService_TierFiltersPriority(t *testing.T) {
	server := httptest.NewServer(priceItemsHandler(t, 99.99))
	defer server.Close()

	f := newSchedulerFixture(t, server.URL)
	f.seedRules(t, 5)

	highRule, err := catalog.NewMonitoringRule("B00HIGHPR1", catalog.PriorityHigh)
	require.NoError(t, err)
	highRule.NextCheckAt = f.now.Add(-time.Hour)
	require.NoError(t, f.ruleRepo.Save(context.Background(), highRule))

	summary, err := f.service.Run(context.Background(), TierHighPriority)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RulesSelected)
	assert.Equal(t, 1, summary.ItemsFetched)
}

func TestSchedulerService_AlertsFlowToChannels(t *testing.T) {
	price := atomic.Int64{}
	price.Store(100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		priceItemsHandler(t, float64(price.Load()))(w, r)
	}))
	defer server.Close()

	f := newSchedulerFixture(t, server.URL)
	f.seedRules(t, 1)

	// First run establishes the baseline
	_, err := f.service.Run(context.Background(), TierNormal)
	require.NoError(t, err)
	assert.Empty(t, f.channel.alerts)

	// Second run sees a 10% drop
	price.Store(90)
	rule, err := f.ruleRepo.FindByItemID(context.Background(), "B00TEST000")
	require.NoError(t, err)
	rule.NextCheckAt = f.now.Add(-time.Minute)
	require.NoError(t, f.ruleRepo.Save(context.Background(), rule))

	summary, err := f.service.Run(context.Background(), TierNormal)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ItemsChanged)
	assert.Equal(t, 1, summary.AlertsSent)
	require.Len(t, f.channel.alerts, 1)
	assert.Equal(t, catalog.AlertPriceDrop, f.channel.alerts[0].Type)
	assert.Len(t, f.alertLog.entries, 1)
}

func TestSchedulerService_Maintenance(t *testing.T) {
	f := newSchedulerFixture(t, "https://catalog.example.com")

	fresh := priceSnapshot("B00FRESH01", 10, catalog.AvailabilityInStock)
	fresh.FetchedAt = f.now.Add(-time.Hour)
	freshItem, err := catalog.NewItem(fresh)
	require.NoError(t, err)
	require.NoError(t, f.itemRepo.Save(context.Background(), freshItem))

	old := priceSnapshot("B00STALE01", 10, catalog.AvailabilityInStock)
	old.FetchedAt = f.now.Add(-30 * 24 * time.Hour)
	oldItem, err := catalog.NewItem(old)
	require.NoError(t, err)
	require.NoError(t, f.itemRepo.Save(context.Background(), oldItem))

	entry := catalog.NewPriceHistoryEntry("B00STALE01",
		testAlert().OldPrice.Copy(), testAlert().NewPrice.Copy(), "USD", f.now.Add(-400*24*time.Hour))
	require.NoError(t, f.priceRepo.Append(context.Background(), entry))

	summary, err := f.service.Run(context.Background(), TierMaintenance)
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.StaleMarked)
	assert.Equal(t, int64(1), summary.HistoryPruned)

	staleItem, err := f.itemRepo.FindByItemID(context.Background(), "B00STALE01")
	require.NoError(t, err)
	assert.True(t, staleItem.IsStale)
	freshAgain, err := f.itemRepo.FindByItemID(context.Background(), "B00FRESH01")
	require.NoError(t, err)
	assert.False(t, freshAgain.IsStale)
}

func TestSchedulerService_HealthCheck(t *testing.T) {
	f := newSchedulerFixture(t, "https://catalog.example.com")

	summary, err := f.service.Run(context.Background(), TierHealthCheck)
	require.NoError(t, err)
	assert.Equal(t, TierHealthCheck, summary.Tier)

	f.pinger.err = errors.New("connection refused")
	_, err = f.service.Run(context.Background(), TierHealthCheck)
	assert.Error(t, err)
}

func TestSchedulerService_LockFailureBlocksRun(t *testing.T) {
	f := newSchedulerFixture(t, "https://catalog.example.com")
	f.runLock.err = errors.New("another run holds the lock")

	_, err := f.service.Run(context.Background(), TierNormal)
	assert.Error(t, err)
}

func TestParseTier(t *testing.T) {
	for _, name := range []string{"high-priority", "normal", "low-priority", "maintenance", "health-check", "all"} {
		tier, err := ParseTier(name)
		require.NoError(t, err)
		assert.Equal(t, Tier(name), tier)
	}

	_, err := ParseTier("hourly")
	assert.Error(t, err)
}
