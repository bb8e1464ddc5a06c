package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonitoringRule(t *testing.T) {
	t.Run("applies tier default frequencies", func(t *testing.T) {
		high, err := NewMonitoringRule("B09X1Q2W3E", PriorityHigh)
		require.NoError(t, err)
		assert.Equal(t, 30, high.CheckFrequencyMinutes)

		normal, err := NewMonitoringRule("B09X1Q2W3E", PriorityNormal)
		require.NoError(t, err)
		assert.Equal(t, 120, normal.CheckFrequencyMinutes)

		low, err := NewMonitoringRule("B09X1Q2W3E", PriorityLow)
		require.NoError(t, err)
		assert.Equal(t, 1440, low.CheckFrequencyMinutes)
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		_, err := NewMonitoringRule("B09X1Q2W3E", PriorityLevel("urgent"))
		assert.Error(t, err)
	})

	t.Run("rejects malformed item ID", func(t *testing.T) {
		_, err := NewMonitoringRule("nope", PriorityNormal)
		assert.Error(t, err)
	})
}

func TestMonitoringRule_Reschedule(t *testing.T) {
	rule, err := NewMonitoringRule("B09X1Q2W3E", PriorityNormal)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rule.Reschedule(now)

	assert.Equal(t, now.Add(120*time.Minute), rule.NextCheckAt)
	require.NotNil(t, rule.LastCheckedAt)
	assert.Equal(t, now, *rule.LastCheckedAt)
	assert.True(t, rule.NextCheckAt.After(now))
}

func TestMonitoringRule_IsDue(t *testing.T) {
	rule, err := NewMonitoringRule("B09X1Q2W3E", PriorityHigh)
	require.NoError(t, err)

	now := time.Now()
	rule.NextCheckAt = now.Add(-time.Minute)
	assert.True(t, rule.IsDue(now))

	rule.NextCheckAt = now.Add(time.Minute)
	assert.False(t, rule.IsDue(now))

	rule.NextCheckAt = now.Add(-time.Minute)
	rule.Deactivate()
	assert.False(t, rule.IsDue(now))
}

func TestMonitoringRule_TargetPriceRange(t *testing.T) {
	rule, err := NewMonitoringRule("B09X1Q2W3E", PriorityNormal)
	require.NoError(t, err)

	t.Run("no range configured never matches", func(t *testing.T) {
		assert.False(t, rule.PriceInTargetRange(decimal.NewFromInt(10)))
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		min := decimal.NewFromInt(50)
		max := decimal.NewFromInt(20)
		assert.Error(t, rule.SetTargetPriceRange(&min, &max))
	})

	t.Run("matches inside the band", func(t *testing.T) {
		min := decimal.NewFromInt(20)
		max := decimal.NewFromInt(50)
		require.NoError(t, rule.SetTargetPriceRange(&min, &max))
		assert.True(t, rule.AlertOnPriceThreshold)

		assert.True(t, rule.PriceInTargetRange(decimal.NewFromInt(35)))
		assert.False(t, rule.PriceInTargetRange(decimal.NewFromInt(19)))
		assert.False(t, rule.PriceInTargetRange(decimal.NewFromInt(51)))
	})

	t.Run("open-ended minimum matches below max", func(t *testing.T) {
		max := decimal.NewFromInt(30)
		require.NoError(t, rule.SetTargetPriceRange(nil, &max))
		assert.True(t, rule.PriceInTargetRange(decimal.NewFromInt(5)))
		assert.False(t, rule.PriceInTargetRange(decimal.NewFromInt(31)))
	})
}
