package storage

import (
	"context"

	"github.com/erp/catalog-monitor/internal/infrastructure/catalogapi"
)

// NopArchiver discards payloads. Used when archival is disabled.
type NopArchiver struct{}

// NewNopArchiver creates a NopArchiver
func NewNopArchiver() *NopArchiver {
	return &NopArchiver{}
}

// Archive discards the payload
func (NopArchiver) Archive(_ context.Context, _ string, _ []byte) error {
	return nil
}

// Ensure NopArchiver implements PayloadArchiver
var _ catalogapi.PayloadArchiver = (*NopArchiver)(nil)
