package catalog

import (
	"time"

	"github.com/erp/catalog-monitor/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// minPriceBase is the floor used as the denominator of relative price
// deltas, so items observed at a zero price never divide by zero
var minPriceBase = decimal.NewFromFloat(0.01)

// PriceHistoryEntry is an append-only record of a material price change.
// Entries are immutable once written.
type PriceHistoryEntry struct {
	shared.BaseEntity
	ItemID           string          `gorm:"type:varchar(20);not null;index"`
	Price            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency         string          `gorm:"type:varchar(10)"`
	PreviousPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ChangeAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ChangePercentage decimal.Decimal `gorm:"type:decimal(10,4);not null"`
	RecordedAt       time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PriceHistoryEntry) TableName() string {
	return "price_history"
}

// NewPriceHistoryEntry builds a history row for a price transition
func NewPriceHistoryEntry(itemID string, previous, current decimal.Decimal, currency string, recordedAt time.Time) *PriceHistoryEntry {
	change := current.Sub(previous)
	return &PriceHistoryEntry{
		BaseEntity:       shared.NewBaseEntity(),
		ItemID:           itemID,
		Price:            current,
		Currency:         currency,
		PreviousPrice:    previous,
		ChangeAmount:     change,
		ChangePercentage: RelativePriceChange(previous, current).Mul(decimal.NewFromInt(100)),
		RecordedAt:       recordedAt,
	}
}

// RelativePriceChange returns (current - previous) / max(previous, 0.01)
func RelativePriceChange(previous, current decimal.Decimal) decimal.Decimal {
	base := previous
	if base.LessThan(minPriceBase) {
		base = minPriceBase
	}
	return current.Sub(previous).Div(base)
}

// PriceChangeIsMaterial reports whether the relative delta between two
// prices exceeds the materiality threshold (e.g. 0.01 for 1%)
func PriceChangeIsMaterial(previous, current decimal.Decimal, threshold decimal.Decimal) bool {
	return RelativePriceChange(previous, current).Abs().GreaterThan(threshold)
}

// StockHistoryEntry is an append-only record of an availability transition.
// Entries are immutable once written.
type StockHistoryEntry struct {
	shared.BaseEntity
	ItemID         string             `gorm:"type:varchar(20);not null;index"`
	Status         AvailabilityStatus `gorm:"type:varchar(20);not null"`
	Message        string             `gorm:"type:varchar(500)"`
	PreviousStatus AvailabilityStatus `gorm:"type:varchar(20);not null"`
	BackInStock    bool               `gorm:"not null;default:false"`
	OutOfStock     bool               `gorm:"not null;default:false"`
	RecordedAt     time.Time          `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockHistoryEntry) TableName() string {
	return "stock_history"
}

// NewStockHistoryEntry builds a history row for an availability transition.
// OutOfStock->InStock flags backInStock, InStock->OutOfStock flags outOfStock.
func NewStockHistoryEntry(itemID string, previous, current AvailabilityStatus, message string, recordedAt time.Time) *StockHistoryEntry {
	return &StockHistoryEntry{
		BaseEntity:     shared.NewBaseEntity(),
		ItemID:         itemID,
		Status:         current,
		Message:        message,
		PreviousStatus: previous,
		BackInStock:    previous == AvailabilityOutOfStock && current == AvailabilityInStock,
		OutOfStock:     previous == AvailabilityInStock && current == AvailabilityOutOfStock,
		RecordedAt:     recordedAt,
	}
}
