package monitoring

import (
	"context"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
)

// TransactionScope provides transactional access to the monitoring
// repositories. All repository operations performed inside Execute share
// one database transaction and commit or roll back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories touched by
// one item's ingestion. All repositories returned share the same underlying
// database transaction.
type TransactionalRepositories interface {
	// Items returns the catalog item repository scoped to the current transaction
	Items() catalog.ItemRepository
	// PriceHistory returns the price history repository scoped to the current transaction
	PriceHistory() catalog.PriceHistoryRepository
	// StockHistory returns the stock history repository scoped to the current transaction
	StockHistory() catalog.StockHistoryRepository
	// Rules returns the monitoring rule repository scoped to the current transaction
	Rules() catalog.MonitoringRuleRepository
}

// NoOpTransactionScope runs the function against plain repositories without
// a real transaction. Useful for tests and for repositories that do not
// support transactions.
type NoOpTransactionScope struct {
	itemRepo  catalog.ItemRepository
	priceRepo catalog.PriceHistoryRepository
	stockRepo catalog.StockHistoryRepository
	ruleRepo  catalog.MonitoringRuleRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories
func NewNoOpTransactionScope(
	itemRepo catalog.ItemRepository,
	priceRepo catalog.PriceHistoryRepository,
	stockRepo catalog.StockHistoryRepository,
	ruleRepo catalog.MonitoringRuleRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		itemRepo:  itemRepo,
		priceRepo: priceRepo,
		stockRepo: stockRepo,
		ruleRepo:  ruleRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Items returns the catalog item repository
func (s *NoOpTransactionScope) Items() catalog.ItemRepository {
	return s.itemRepo
}

// PriceHistory returns the price history repository
func (s *NoOpTransactionScope) PriceHistory() catalog.PriceHistoryRepository {
	return s.priceRepo
}

// StockHistory returns the stock history repository
func (s *NoOpTransactionScope) StockHistory() catalog.StockHistoryRepository {
	return s.stockRepo
}

// Rules returns the monitoring rule repository
func (s *NoOpTransactionScope) Rules() catalog.MonitoringRuleRepository {
	return s.ruleRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
