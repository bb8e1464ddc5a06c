package catalog

import (
	"time"

	"github.com/erp/catalog-monitor/internal/domain/shared"
)

// ledgerDayLayout is the day key format of the request ledger
const ledgerDayLayout = "2006-01-02"

// RequestLedgerEntry is the day-scoped count of catalog API requests made.
// One row exists per UTC day; the quota governor consults it before every
// call so the daily ceiling survives process restarts.
type RequestLedgerEntry struct {
	shared.BaseEntity
	Day          string `gorm:"type:varchar(10);not null;uniqueIndex"`
	RequestCount int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (RequestLedgerEntry) TableName() string {
	return "request_ledger"
}

// LedgerDay formats a timestamp as the UTC day key of the ledger
func LedgerDay(t time.Time) string {
	return t.UTC().Format(ledgerDayLayout)
}
