package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(itemID string) *ItemSnapshot {
	price := decimal.NewFromFloat(19.99)
	return &ItemSnapshot{
		ItemID:              itemID,
		Title:               "Wireless Mouse",
		Brand:               "Acme",
		ProductGroup:        "Electronics",
		Price:               &price,
		Currency:            "USD",
		Availability:        AvailabilityInStock,
		AvailabilityMessage: "In Stock.",
		ReviewCount:         120,
		StarRating:          4.4,
		Images:              []string{"https://img.example.com/1.jpg"},
		Features:            []string{"2.4GHz", "Ergonomic"},
		Specifications:      map[string]string{"Color": "Black"},
		DataSource:          "catalog-api",
		Completeness:        0.9,
		FetchedAt:           time.Now(),
	}
}

func TestValidateItemID(t *testing.T) {
	t.Run("accepts well-formed ID", func(t *testing.T) {
		assert.NoError(t, ValidateItemID("B09X1Q2W3E"))
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		assert.Error(t, ValidateItemID("B09X1"))
		assert.Error(t, ValidateItemID("B09X1Q2W3E4"))
		assert.Error(t, ValidateItemID(""))
	})

	t.Run("rejects lowercase and symbols", func(t *testing.T) {
		assert.Error(t, ValidateItemID("b09x1q2w3e"))
		assert.Error(t, ValidateItemID("B09X1Q2W3-"))
	})
}

func TestAvailabilityFromMessage(t *testing.T) {
	cases := []struct {
		message string
		want    AvailabilityStatus
	}{
		{"In Stock.", AvailabilityInStock},
		{"Currently in stock", AvailabilityInStock},
		{"Out of Stock", AvailabilityOutOfStock},
		{"Currently unavailable.", AvailabilityOutOfStock},
		{"Only 3 left in stock - order soon.", AvailabilityLimitedStock},
		{"Limited availability", AvailabilityLimitedStock},
		{"Available for Pre-order now", AvailabilityPreorder},
		{"", AvailabilityUnknown},
		{"Ships within 4 weeks", AvailabilityUnknown},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, AvailabilityFromMessage(tc.message), "message %q", tc.message)
	}
}

func TestNewItem(t *testing.T) {
	t.Run("creates item from first snapshot", func(t *testing.T) {
		item, err := NewItem(testSnapshot("B09X1Q2W3E"))
		require.NoError(t, err)

		assert.Equal(t, "B09X1Q2W3E", item.ItemID)
		assert.Equal(t, "Wireless Mouse", item.Title)
		require.NotNil(t, item.CurrentPrice)
		assert.True(t, item.CurrentPrice.Equal(decimal.NewFromFloat(19.99)))
		assert.True(t, item.PriceMin.Equal(*item.CurrentPrice))
		assert.True(t, item.PriceMax.Equal(*item.CurrentPrice))
		assert.Equal(t, AvailabilityInStock, item.Availability)
		assert.False(t, item.IsStale)
	})

	t.Run("rejects malformed item ID", func(t *testing.T) {
		_, err := NewItem(testSnapshot("bad"))
		assert.Error(t, err)
	})
}

func TestItem_ApplySnapshot(t *testing.T) {
	t.Run("price bounds only widen", func(t *testing.T) {
		item, err := NewItem(testSnapshot("B09X1Q2W3E"))
		require.NoError(t, err)

		lower := testSnapshot("B09X1Q2W3E")
		lowPrice := decimal.NewFromFloat(15.00)
		lower.Price = &lowPrice
		require.NoError(t, item.ApplySnapshot(lower))

		higher := testSnapshot("B09X1Q2W3E")
		highPrice := decimal.NewFromFloat(25.00)
		higher.Price = &highPrice
		require.NoError(t, item.ApplySnapshot(higher))

		middle := testSnapshot("B09X1Q2W3E")
		midPrice := decimal.NewFromFloat(20.00)
		middle.Price = &midPrice
		require.NoError(t, item.ApplySnapshot(middle))

		assert.True(t, item.PriceMin.Equal(decimal.NewFromFloat(15.00)))
		assert.True(t, item.PriceMax.Equal(decimal.NewFromFloat(25.00)))
		assert.True(t, item.CurrentPrice.Equal(decimal.NewFromFloat(20.00)))
		assert.True(t, item.PriceMin.LessThanOrEqual(*item.CurrentPrice))
		assert.True(t, item.PriceMax.GreaterThanOrEqual(*item.CurrentPrice))
	})

	t.Run("snapshot without price keeps previous price", func(t *testing.T) {
		item, err := NewItem(testSnapshot("B09X1Q2W3E"))
		require.NoError(t, err)

		noPrice := testSnapshot("B09X1Q2W3E")
		noPrice.Price = nil
		require.NoError(t, item.ApplySnapshot(noPrice))

		require.NotNil(t, item.CurrentPrice)
		assert.True(t, item.CurrentPrice.Equal(decimal.NewFromFloat(19.99)))
	})

	t.Run("rejects snapshot for a different item", func(t *testing.T) {
		item, err := NewItem(testSnapshot("B09X1Q2W3E"))
		require.NoError(t, err)

		err = item.ApplySnapshot(testSnapshot("B00000000X"))
		assert.Error(t, err)
	})

	t.Run("clears stale flag on refresh", func(t *testing.T) {
		item, err := NewItem(testSnapshot("B09X1Q2W3E"))
		require.NoError(t, err)

		item.MarkStale()
		assert.True(t, item.IsStale)

		require.NoError(t, item.ApplySnapshot(testSnapshot("B09X1Q2W3E")))
		assert.False(t, item.IsStale)
	})
}

func TestItem_JSONFields(t *testing.T) {
	item, err := NewItem(testSnapshot("B09X1Q2W3E"))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://img.example.com/1.jpg"}, item.ImageURLs())
	assert.Equal(t, []string{"2.4GHz", "Ergonomic"}, item.FeatureList())
}
