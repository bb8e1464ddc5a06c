package catalog

import (
	"fmt"
	"time"

	"github.com/erp/catalog-monitor/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AlertType identifies the condition that produced an alert
type AlertType string

const (
	AlertPriceDrop      AlertType = "price_drop"
	AlertPriceIncrease  AlertType = "price_increase"
	AlertPriceThreshold AlertType = "price_threshold"
	AlertBackInStock    AlertType = "back_in_stock"
	AlertOutOfStock     AlertType = "out_of_stock"
)

// Alert is a material change candidate for notification fan-out
type Alert struct {
	ItemID     string           `json:"item_id"`
	ItemTitle  string           `json:"item_title"`
	Type       AlertType        `json:"type"`
	Message    string           `json:"message"`
	OldPrice   *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice   *decimal.Decimal `json:"new_price,omitempty"`
	ChangePct  *decimal.Decimal `json:"change_pct,omitempty"`
	OldStatus  string           `json:"old_status,omitempty"`
	NewStatus  string           `json:"new_status,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewPriceAlert builds a price change alert
func NewPriceAlert(itemID, title string, alertType AlertType, oldPrice, newPrice, changePct decimal.Decimal, occurredAt time.Time) Alert {
	verb := "dropped"
	if alertType == AlertPriceIncrease {
		verb = "rose"
	}
	return Alert{
		ItemID:    itemID,
		ItemTitle: title,
		Type:      alertType,
		Message: fmt.Sprintf("Price of %s %s from %s to %s (%s%%)",
			itemID, verb, oldPrice.StringFixed(2), newPrice.StringFixed(2), changePct.StringFixed(1)),
		OldPrice:   &oldPrice,
		NewPrice:   &newPrice,
		ChangePct:  &changePct,
		OccurredAt: occurredAt,
	}
}

// NewStockAlert builds a stock transition alert
func NewStockAlert(itemID, title string, alertType AlertType, oldStatus, newStatus AvailabilityStatus, occurredAt time.Time) Alert {
	return Alert{
		ItemID:     itemID,
		ItemTitle:  title,
		Type:       alertType,
		Message:    fmt.Sprintf("Availability of %s changed from %s to %s", itemID, oldStatus, newStatus),
		OldStatus:  string(oldStatus),
		NewStatus:  string(newStatus),
		OccurredAt: occurredAt,
	}
}

// AlertLogEntry is an audit record of a dispatched alert
type AlertLogEntry struct {
	shared.BaseEntity
	ItemID         string    `gorm:"type:varchar(20);not null;index"`
	Type           AlertType `gorm:"type:varchar(30);not null"`
	Message        string    `gorm:"type:varchar(1000)"`
	Channels       string    `gorm:"type:varchar(200)"`
	DeliveredCount int       `gorm:"not null;default:0"`
	FailedCount    int       `gorm:"not null;default:0"`
	OccurredAt     time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AlertLogEntry) TableName() string {
	return "alert_log"
}
