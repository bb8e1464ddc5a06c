package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/erp/catalog-monitor/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validArchiveConfig() *config.ArchiveConfig {
	return &config.ArchiveConfig{
		Enabled:   true,
		Bucket:    "catalog-payloads",
		Region:    "us-east-1",
		Prefix:    "raw",
		AccessKey: "test-key",
		SecretKey: "test-secret",
	}
}

func TestNewS3PayloadArchiver_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3PayloadArchiver(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := validArchiveConfig()
		cfg.Bucket = ""
		_, err := NewS3PayloadArchiver(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		cfg := validArchiveConfig()
		cfg.AccessKey = ""
		_, err := NewS3PayloadArchiver(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		cfg := validArchiveConfig()
		cfg.SecretKey = ""
		_, err := NewS3PayloadArchiver(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("valid config creates archiver", func(t *testing.T) {
		archiver, err := NewS3PayloadArchiver(validArchiveConfig(), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.Equal(t, "catalog-payloads", archiver.GetBucket())
	})

	t.Run("custom endpoint is accepted", func(t *testing.T) {
		cfg := validArchiveConfig()
		cfg.Endpoint = "http://localhost:9000"
		archiver, err := NewS3PayloadArchiver(cfg)
		require.NoError(t, err)
		assert.NotNil(t, archiver)
	})
}

func TestS3PayloadArchiver_ObjectKey(t *testing.T) {
	archiver, err := NewS3PayloadArchiver(validArchiveConfig())
	require.NoError(t, err)

	at := time.Date(2026, 3, 14, 9, 30, 15, 0, time.UTC)

	t.Run("key is day-partitioned under the prefix", func(t *testing.T) {
		key := archiver.objectKey("GetItems", at)

		assert.True(t, strings.HasPrefix(key, "raw/GetItems/2026-03-14/093015-"), key)
		assert.True(t, strings.HasSuffix(key, ".json"), key)
	})

	t.Run("keys are unique per call", func(t *testing.T) {
		assert.NotEqual(t, archiver.objectKey("GetItems", at), archiver.objectKey("GetItems", at))
	})

	t.Run("empty prefix omits the leading segment", func(t *testing.T) {
		cfg := validArchiveConfig()
		cfg.Prefix = ""
		bare, err := NewS3PayloadArchiver(cfg)
		require.NoError(t, err)

		key := bare.objectKey("SearchItems", at)
		assert.True(t, strings.HasPrefix(key, "SearchItems/2026-03-14/"), key)
	})
}

func TestNopArchiver(t *testing.T) {
	archiver := NewNopArchiver()
	assert.NoError(t, archiver.Archive(context.Background(), "GetItems", []byte(`{}`)))
}
