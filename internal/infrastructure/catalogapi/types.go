package catalogapi

import (
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Request Types
// ---------------------------------------------------------------------------

// itemsRequest is the request body for the GetItems operation
type itemsRequest struct {
	ItemIDs     []string `json:"itemIds"`
	Resources   []string `json:"resources,omitempty"`
	PartnerTag  string   `json:"partnerTag"`
	Marketplace string   `json:"marketplace"`
}

// searchRequest is the request body for the SearchItems operation
type searchRequest struct {
	Keywords    string   `json:"keywords"`
	SearchIndex string   `json:"searchIndex,omitempty"`
	ItemPage    int      `json:"itemPage,omitempty"`
	ItemCount   int      `json:"itemCount,omitempty"`
	Resources   []string `json:"resources,omitempty"`
	PartnerTag  string   `json:"partnerTag"`
	Marketplace string   `json:"marketplace"`
}

// SearchOptions narrows a SearchItems call
type SearchOptions struct {
	SearchIndex string
	ItemPage    int
	ItemCount   int
}

// ---------------------------------------------------------------------------
// Response Types
// ---------------------------------------------------------------------------

// apiError is a single entry of the response errors array
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ItemID  string `json:"itemId,omitempty"`
}

// itemsResponse is the wire response for GetItems
type itemsResponse struct {
	ItemsResult *struct {
		Items []RawItem `json:"items,omitempty"`
	} `json:"itemsResult,omitempty"`
	Errors []apiError `json:"errors,omitempty"`
}

// searchResponse is the wire response for SearchItems
type searchResponse struct {
	SearchResult *struct {
		Items            []RawItem `json:"items,omitempty"`
		TotalResultCount int       `json:"totalResultCount"`
	} `json:"searchResult,omitempty"`
	Errors []apiError `json:"errors,omitempty"`
}

// ItemsResult is the decoded outcome of one GetItems call. ItemErrors holds
// the per-item failures of an otherwise successful batch.
type ItemsResult struct {
	Items      []RawItem
	ItemErrors []*ItemError
}

// SearchResult is the decoded outcome of one SearchItems call
type SearchResult struct {
	Items            []RawItem
	TotalResultCount int
}

// ---------------------------------------------------------------------------
// Raw Item Types
// ---------------------------------------------------------------------------

// RawItem is one item as returned by the Catalog API. Every nested branch
// is optional: the provider omits whole subtrees for sparse listings, so
// consumers must tolerate nil at any level.
type RawItem struct {
	ItemID         string         `json:"itemId"`
	ParentItemID   string         `json:"parentItemId,omitempty"`
	VariationCount int            `json:"variationCount,omitempty"`
	ItemInfo       *RawItemInfo   `json:"itemInfo,omitempty"`
	Offers         *RawOffers     `json:"offers,omitempty"`
	Images         *RawImages     `json:"images,omitempty"`
	BrowseNodes    *RawBrowseInfo `json:"browseNodeInfo,omitempty"`
	Reviews        *RawReviews    `json:"customerReviews,omitempty"`
}

// RawItemInfo carries the descriptive attributes of an item
type RawItemInfo struct {
	Title           *RawDisplayValue    `json:"title,omitempty"`
	ByLine          *RawByLineInfo      `json:"byLineInfo,omitempty"`
	Classifications *RawClassifications `json:"classifications,omitempty"`
	Features        *RawMultiValue      `json:"features,omitempty"`
	ProductInfo     *RawProductInfo     `json:"productInfo,omitempty"`
}

// RawDisplayValue wraps a single localized display string
type RawDisplayValue struct {
	DisplayValue string `json:"displayValue"`
}

// RawMultiValue wraps a list of display strings
type RawMultiValue struct {
	DisplayValues []string `json:"displayValues,omitempty"`
}

// RawByLineInfo names the parties behind a listing
type RawByLineInfo struct {
	Brand        *RawDisplayValue `json:"brand,omitempty"`
	Manufacturer *RawDisplayValue `json:"manufacturer,omitempty"`
}

// RawClassifications places the item in the provider's taxonomy
type RawClassifications struct {
	ProductGroup *RawDisplayValue `json:"productGroup,omitempty"`
	Binding      *RawDisplayValue `json:"binding,omitempty"`
}

// RawProductInfo holds free-form technical attributes
type RawProductInfo struct {
	Attributes map[string]string `json:"attributes,omitempty"`
}

// RawOffers lists the purchasable offers of an item
type RawOffers struct {
	Listings []RawListing `json:"listings,omitempty"`
}

// RawListing is one offer with its price and availability
type RawListing struct {
	Price        *RawPrice        `json:"price,omitempty"`
	Availability *RawAvailability `json:"availability,omitempty"`
}

// RawPrice is a money amount with its currency
type RawPrice struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// RawAvailability is the provider's free-text availability state
type RawAvailability struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// RawImages holds the primary image and its variants
type RawImages struct {
	Primary  *RawImageSet  `json:"primary,omitempty"`
	Variants []RawImageSet `json:"variants,omitempty"`
}

// RawImageSet holds one image at its published sizes
type RawImageSet struct {
	Large *RawImageURL `json:"large,omitempty"`
}

// RawImageURL is a single hosted image
type RawImageURL struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// RawBrowseInfo carries the item's category sales ranks
type RawBrowseInfo struct {
	SalesRanks []RawSalesRank `json:"salesRanks,omitempty"`
}

// RawSalesRank is the item's rank within one category
type RawSalesRank struct {
	CategoryID string `json:"categoryId,omitempty"`
	Category   string `json:"category"`
	Rank       int    `json:"rank"`
}

// RawReviews is the aggregate customer review summary
type RawReviews struct {
	Count      int     `json:"count"`
	StarRating float64 `json:"starRating"`
}
