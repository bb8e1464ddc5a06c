package monitoring

import (
	"time"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"github.com/erp/catalog-monitor/internal/infrastructure/catalogapi"
)

// Completeness weights. Required fields carry 0.7 of the score, optional
// enrichment fields the remaining 0.3, split evenly within each group.
const (
	requiredFieldWeight = 0.7 / 5 // id, title, price, availability, images
	optionalFieldWeight = 0.3 / 5 // brand, features, reviews, categories, specs
)

// Normalizer converts raw API items into canonical snapshots. It is total:
// any combination of missing nested branches yields zero values for the
// affected fields, never a panic.
type Normalizer struct {
	dataSource string
	now        func() time.Time
}

// NewNormalizer creates a normalizer tagging snapshots with the given source
func NewNormalizer(dataSource string) *Normalizer {
	return &Normalizer{
		dataSource: dataSource,
		now:        time.Now,
	}
}

// Normalize flattens one raw item into a snapshot and scores its
// completeness
func (n *Normalizer) Normalize(raw catalogapi.RawItem) *catalog.ItemSnapshot {
	snapshot := &catalog.ItemSnapshot{
		ItemID:         raw.ItemID,
		ParentItemID:   raw.ParentItemID,
		VariationCount: raw.VariationCount,
		DataSource:     n.dataSource,
		FetchedAt:      n.now(),
	}

	if info := raw.ItemInfo; info != nil {
		if info.Title != nil {
			snapshot.Title = info.Title.DisplayValue
		}
		if info.ByLine != nil && info.ByLine.Brand != nil {
			snapshot.Brand = info.ByLine.Brand.DisplayValue
		}
		if info.Classifications != nil && info.Classifications.ProductGroup != nil {
			snapshot.ProductGroup = info.Classifications.ProductGroup.DisplayValue
		}
		if info.Features != nil {
			snapshot.Features = info.Features.DisplayValues
		}
		if info.ProductInfo != nil {
			snapshot.Specifications = info.ProductInfo.Attributes
		}
	}

	if listing := firstListing(raw.Offers); listing != nil {
		if listing.Price != nil {
			price := listing.Price.Amount
			snapshot.Price = &price
			snapshot.Currency = listing.Price.Currency
		}
		if listing.Availability != nil {
			snapshot.AvailabilityMessage = listing.Availability.Message
		}
	}
	snapshot.Availability = catalog.AvailabilityFromMessage(snapshot.AvailabilityMessage)

	snapshot.Images = imageURLs(raw.Images)

	if raw.BrowseNodes != nil {
		for _, rank := range raw.BrowseNodes.SalesRanks {
			snapshot.CategoryRanks = append(snapshot.CategoryRanks, catalog.CategoryRank{
				CategoryID: rank.CategoryID,
				Name:       rank.Category,
				SalesRank:  rank.Rank,
			})
		}
	}

	if raw.Reviews != nil {
		snapshot.ReviewCount = raw.Reviews.Count
		snapshot.StarRating = raw.Reviews.StarRating
	}

	snapshot.Completeness = completeness(snapshot)
	return snapshot
}

func firstListing(offers *catalogapi.RawOffers) *catalogapi.RawListing {
	if offers == nil || len(offers.Listings) == 0 {
		return nil
	}
	return &offers.Listings[0]
}

func imageURLs(images *catalogapi.RawImages) []string {
	if images == nil {
		return nil
	}
	var urls []string
	if images.Primary != nil && images.Primary.Large != nil && images.Primary.Large.URL != "" {
		urls = append(urls, images.Primary.Large.URL)
	}
	for _, variant := range images.Variants {
		if variant.Large != nil && variant.Large.URL != "" {
			urls = append(urls, variant.Large.URL)
		}
	}
	return urls
}

// completeness scores how much of the snapshot the provider filled in,
// clamped to [0, 1]
func completeness(s *catalog.ItemSnapshot) float64 {
	score := 0.0

	if s.ItemID != "" {
		score += requiredFieldWeight
	}
	if s.Title != "" {
		score += requiredFieldWeight
	}
	if s.Price != nil {
		score += requiredFieldWeight
	}
	if s.Availability != catalog.AvailabilityUnknown {
		score += requiredFieldWeight
	}
	if len(s.Images) > 0 {
		score += requiredFieldWeight
	}

	if s.Brand != "" {
		score += optionalFieldWeight
	}
	if len(s.Features) > 0 {
		score += optionalFieldWeight
	}
	if s.ReviewCount > 0 {
		score += optionalFieldWeight
	}
	if len(s.CategoryRanks) > 0 {
		score += optionalFieldWeight
	}
	if len(s.Specifications) > 0 {
		score += optionalFieldWeight
	}

	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}
