package persistence

import (
	"context"

	"github.com/erp/catalog-monitor/internal/application/monitoring"
	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos monitoring.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Items returns the catalog item repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Items() catalog.ItemRepository {
	return NewGormItemRepository(r.tx)
}

// PriceHistory returns the price history repository scoped to the current transaction.
func (r *gormTransactionalRepositories) PriceHistory() catalog.PriceHistoryRepository {
	return NewGormPriceHistoryRepository(r.tx)
}

// StockHistory returns the stock history repository scoped to the current transaction.
func (r *gormTransactionalRepositories) StockHistory() catalog.StockHistoryRepository {
	return NewGormStockHistoryRepository(r.tx)
}

// Rules returns the monitoring rule repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Rules() catalog.MonitoringRuleRepository {
	return NewGormMonitoringRuleRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ monitoring.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ monitoring.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
