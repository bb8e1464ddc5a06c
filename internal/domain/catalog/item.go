package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/erp/catalog-monitor/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AvailabilityStatus represents the stock availability of a catalog item
type AvailabilityStatus string

const (
	AvailabilityInStock      AvailabilityStatus = "in_stock"
	AvailabilityOutOfStock   AvailabilityStatus = "out_of_stock"
	AvailabilityLimitedStock AvailabilityStatus = "limited_stock"
	AvailabilityPreorder     AvailabilityStatus = "preorder"
	AvailabilityUnknown      AvailabilityStatus = "unknown"
)

// itemIDLength is the fixed length of a well-formed catalog item ID (ASIN-style)
const itemIDLength = 10

// ErrInvalidItemID indicates a malformed catalog item ID
var ErrInvalidItemID = shared.NewDomainError("INVALID_ITEM_ID", "Item ID must be 10 alphanumeric characters")

// ValidateItemID validates the fixed-length alphanumeric item ID format
func ValidateItemID(itemID string) error {
	if len(itemID) != itemIDLength {
		return ErrInvalidItemID
	}
	for _, r := range itemID {
		if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return ErrInvalidItemID
		}
	}
	return nil
}

// AvailabilityFromMessage normalizes a free-text availability message into
// the closed status enum using substring heuristics
func AvailabilityFromMessage(message string) AvailabilityStatus {
	m := strings.ToLower(message)
	switch {
	case m == "":
		return AvailabilityUnknown
	case strings.Contains(m, "out of stock"), strings.Contains(m, "unavailable"):
		return AvailabilityOutOfStock
	case strings.Contains(m, "limited"), strings.Contains(m, "only"):
		return AvailabilityLimitedStock
	case strings.Contains(m, "pre-order"), strings.Contains(m, "preorder"):
		return AvailabilityPreorder
	case strings.Contains(m, "in stock"):
		return AvailabilityInStock
	default:
		return AvailabilityUnknown
	}
}

// CategoryRank is one browse-category sales rank of an item
type CategoryRank struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	SalesRank  int    `json:"sales_rank"`
}

// Item is the current snapshot of a catalog item.
// One row exists per item identity; rows are mutated only via ApplySnapshot
// and are never deleted, only marked stale by age.
type Item struct {
	shared.BaseEntity
	ItemID              string             `gorm:"type:varchar(20);not null;uniqueIndex"`
	Title               string             `gorm:"type:varchar(500)"`
	Brand               string             `gorm:"type:varchar(200)"`
	ProductGroup        string             `gorm:"type:varchar(200)"`
	CurrentPrice        *decimal.Decimal   `gorm:"type:decimal(18,4)"`
	Currency            string             `gorm:"type:varchar(10)"`
	PriceMin            *decimal.Decimal   `gorm:"type:decimal(18,4)"`
	PriceMax            *decimal.Decimal   `gorm:"type:decimal(18,4)"`
	Availability        AvailabilityStatus `gorm:"type:varchar(20);not null;default:'unknown'"`
	AvailabilityMessage string             `gorm:"type:varchar(500)"`
	ReviewCount         int                `gorm:"not null;default:0"`
	StarRating          float64            `gorm:"not null;default:0"`
	Images              string             `gorm:"type:jsonb"`
	Features            string             `gorm:"type:jsonb"`
	Specifications      string             `gorm:"type:jsonb"`
	CategoryRanks       string             `gorm:"type:jsonb"`
	ParentItemID        string             `gorm:"type:varchar(20)"`
	VariationCount      int                `gorm:"not null;default:0"`
	LastAPIUpdateAt     time.Time
	DataSource          string  `gorm:"type:varchar(50)"`
	CompletenessScore   float64 `gorm:"not null;default:0"`
	IsStale             bool    `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "catalog_items"
}

// NewItem creates a new catalog item from its first normalized snapshot
func NewItem(snapshot *ItemSnapshot) (*Item, error) {
	if err := ValidateItemID(snapshot.ItemID); err != nil {
		return nil, err
	}

	item := &Item{
		BaseEntity:   shared.NewBaseEntity(),
		ItemID:       snapshot.ItemID,
		Availability: AvailabilityUnknown,
	}
	if err := item.ApplySnapshot(snapshot); err != nil {
		return nil, err
	}
	return item, nil
}

// ApplySnapshot overwrites the item's mutable fields from a normalized
// snapshot. Price bounds only ever widen: priceMin <= currentPrice <= priceMax
// holds once any price has been observed.
func (i *Item) ApplySnapshot(snapshot *ItemSnapshot) error {
	if snapshot.ItemID != i.ItemID {
		return shared.NewDomainError("ITEM_ID_MISMATCH", "Snapshot does not belong to this item")
	}

	i.Title = snapshot.Title
	i.Brand = snapshot.Brand
	i.ProductGroup = snapshot.ProductGroup
	i.AvailabilityMessage = snapshot.AvailabilityMessage
	i.Availability = snapshot.Availability
	i.ReviewCount = snapshot.ReviewCount
	i.StarRating = snapshot.StarRating
	i.ParentItemID = snapshot.ParentItemID
	i.VariationCount = snapshot.VariationCount
	i.DataSource = snapshot.DataSource
	i.CompletenessScore = snapshot.Completeness
	i.LastAPIUpdateAt = snapshot.FetchedAt
	i.IsStale = false

	i.Images = marshalJSON(snapshot.Images)
	i.Features = marshalJSON(snapshot.Features)
	i.Specifications = marshalJSON(snapshot.Specifications)
	i.CategoryRanks = marshalJSON(snapshot.CategoryRanks)

	if snapshot.Price != nil {
		price := *snapshot.Price
		i.CurrentPrice = &price
		i.Currency = snapshot.Currency
		if i.PriceMin == nil || price.LessThan(*i.PriceMin) {
			minCopy := price
			i.PriceMin = &minCopy
		}
		if i.PriceMax == nil || price.GreaterThan(*i.PriceMax) {
			maxCopy := price
			i.PriceMax = &maxCopy
		}
	}

	i.UpdatedAt = time.Now()
	return nil
}

// MarkStale flags the item as not refreshed within the staleness window
func (i *Item) MarkStale() {
	i.IsStale = true
	i.UpdatedAt = time.Now()
}

// ImageURLs returns the decoded image URL list
func (i *Item) ImageURLs() []string {
	var urls []string
	_ = json.Unmarshal([]byte(i.Images), &urls)
	return urls
}

// FeatureList returns the decoded feature bullet list
func (i *Item) FeatureList() []string {
	var features []string
	_ = json.Unmarshal([]byte(i.Features), &features)
	return features
}

// RankList returns the decoded category sales ranks
func (i *Item) RankList() []CategoryRank {
	var ranks []CategoryRank
	_ = json.Unmarshal([]byte(i.CategoryRanks), &ranks)
	return ranks
}

// marshalJSON serializes v for a jsonb column, falling back to an empty
// JSON value when marshaling fails
func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
