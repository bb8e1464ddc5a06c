package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add alert log", "add_alert_log"},
		{"Add-Alert-Log", "add_alert_log"},
		{"ADD_ALERT_LOG", "add_alert_log"},
		{"add__alert__log", "add_alert_log"},
		{"Index Rules 123", "index_rules_123"},
		{"create-request-ledger", "create_request_ledger"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeName(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCreateMigration(t *testing.T) {
	tmpDir := t.TempDir()

	mf, err := CreateMigration(tmpDir, "add alert log retention", "Prune delivered alerts past retention")
	require.NoError(t, err)
	require.NotNil(t, mf)

	// Version is a sortable timestamp (YYYYMMDDHHMMSS)
	assert.Len(t, mf.Version, 14)
	assert.Equal(t, "add_alert_log_retention", mf.Name)

	// The pair shares one base name
	upBase := strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql")
	downBase := strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql")
	assert.Equal(t, upBase, downBase)
	assert.Equal(t, mf.Version+"_add_alert_log_retention", upBase)

	// Headers follow the migrations/ convention
	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add_alert_log_retention")
	assert.Contains(t, string(up), "-- Description: Prune delivered alerts past retention")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Migration: add_alert_log_retention (Rollback)")
}

func TestCreateMigration_NoDescription(t *testing.T) {
	tmpDir := t.TempDir()

	mf, err := CreateMigration(tmpDir, "index stock history", "")
	require.NoError(t, err)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: index_stock_history")
	assert.NotContains(t, string(up), "-- Description:")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "db", "migrations")

	mf, err := CreateMigration(nested, "create price history", "")
	require.NoError(t, err)

	_, err = os.Stat(mf.UpPath)
	assert.NoError(t, err)
	_, err = os.Stat(mf.DownPath)
	assert.NoError(t, err)
}
