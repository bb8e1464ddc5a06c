package catalogapi

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	signer, err := NewSigner("AKTEST12345", "secret-key-material", "catalog.example.com", "us-east-1", "ProductCatalog")
	require.NoError(t, err)
	return signer
}

func TestNewSigner_Validation(t *testing.T) {
	tests := []struct {
		name      string
		accessKey string
		secretKey string
		host      string
		wantErr   error
	}{
		{"valid", "ak", "sk", "host", nil},
		{"missing access key", "", "sk", "host", ErrSignerMissingAccessKey},
		{"missing secret key", "ak", "", "host", ErrSignerMissingSecretKey},
		{"missing host", "ak", "sk", "", ErrSignerMissingHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSigner(tt.accessKey, tt.secretKey, tt.host, "", "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSigner_Deterministic(t *testing.T) {
	signer := newTestSigner(t)
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	body := []byte(`{"itemIds":["B00TESTID1"]}`)

	first := signer.Sign("GetItems", "/catalog/v1/getItems", body, ts)
	second := signer.Sign("GetItems", "/catalog/v1/getItems", body, ts)

	assert.Equal(t, first, second)
}

func TestSigner_SensitiveToInputs(t *testing.T) {
	signer := newTestSigner(t)
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	body := []byte(`{"itemIds":["B00TESTID1"]}`)
	base := signer.Sign("GetItems", "/catalog/v1/getItems", body, ts)

	t.Run("different timestamp", func(t *testing.T) {
		other := signer.Sign("GetItems", "/catalog/v1/getItems", body, ts.Add(time.Second))
		assert.NotEqual(t, base.Authorization, other.Authorization)
	})

	t.Run("different body", func(t *testing.T) {
		other := signer.Sign("GetItems", "/catalog/v1/getItems", []byte(`{"itemIds":["B00TESTID2"]}`), ts)
		assert.NotEqual(t, base.Authorization, other.Authorization)
	})

	t.Run("different operation", func(t *testing.T) {
		other := signer.Sign("SearchItems", "/catalog/v1/searchItems", body, ts)
		assert.NotEqual(t, base.Authorization, other.Authorization)
	})

	t.Run("different secret key", func(t *testing.T) {
		otherSigner, err := NewSigner("AKTEST12345", "another-secret", "catalog.example.com", "us-east-1", "ProductCatalog")
		require.NoError(t, err)
		other := otherSigner.Sign("GetItems", "/catalog/v1/getItems", body, ts)
		assert.NotEqual(t, base.Authorization, other.Authorization)
	})
}

func TestSigner_EnvelopeFormat(t *testing.T) {
	signer := newTestSigner(t)
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	signed := signer.Sign("GetItems", "/catalog/v1/getItems", []byte(`{}`), ts)

	assert.Equal(t, "20260314T092653Z", signed.Date)
	assert.Equal(t, "ProductCatalog.GetItems", signed.Target)
	assert.True(t, strings.HasPrefix(signed.Authorization, "CATALOG4-HMAC-SHA256 Credential=AKTEST12345/20260314/us-east-1/ProductCatalog/request, "))
	assert.Contains(t, signed.Authorization, "SignedHeaders=host;x-date;x-target")
	assert.Contains(t, signed.Authorization, "Signature=")
}

func TestSigner_TimestampNormalizedToUTC(t *testing.T) {
	signer := newTestSigner(t)
	loc := time.FixedZone("UTC+8", 8*3600)
	local := time.Date(2026, 3, 14, 17, 26, 53, 0, loc)
	utc := local.UTC()

	assert.Equal(t, signer.Sign("GetItems", "/catalog/v1/getItems", nil, utc),
		signer.Sign("GetItems", "/catalog/v1/getItems", nil, local))
}
