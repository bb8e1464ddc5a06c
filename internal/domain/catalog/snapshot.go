package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemSnapshot is a canonical, storage-ready representation of a raw API
// item, produced by the normalizer. It is a value object: it carries no
// identity of its own and is applied to an Item aggregate.
type ItemSnapshot struct {
	ItemID              string
	Title               string
	Brand               string
	ProductGroup        string
	Price               *decimal.Decimal
	Currency            string
	Availability        AvailabilityStatus
	AvailabilityMessage string
	ReviewCount         int
	StarRating          float64
	Images              []string
	Features            []string
	Specifications      map[string]string
	CategoryRanks       []CategoryRank
	ParentItemID        string
	VariationCount      int
	DataSource          string
	Completeness        float64
	FetchedAt           time.Time
}

// HasPrice reports whether a price was present in the raw item
func (s *ItemSnapshot) HasPrice() bool {
	return s.Price != nil
}
