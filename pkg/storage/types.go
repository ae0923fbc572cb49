package storage

import (
	"context"
	"time"
)

// UsageRecord is the persisted quota consumption for one endpoint within
// its current reset cycle.
type UsageRecord struct {
	// ClientType and EndpointName identify the endpoint.
	ClientType   string
	EndpointName string

	// Consumed is the number of tokens used in the current cycle.
	Consumed int64

	// CycleStart is when the current quota cycle began.
	CycleStart time.Time

	// UpdatedAt is when this record was last written.
	UpdatedAt time.Time
}

// Backend persists quota usage across restarts so a process restart does
// not silently refund an endpoint's consumed quota mid-cycle.
// Implementations must be safe for concurrent use.
type Backend interface {
	// SaveUsage upserts the usage record for an endpoint.
	SaveUsage(ctx context.Context, rec *UsageRecord) error

	// LoadUsage returns all persisted usage records.
	LoadUsage(ctx context.Context) ([]*UsageRecord, error)

	// DeleteUsage removes the record for an endpoint. No-op if absent.
	DeleteUsage(ctx context.Context, clientType, endpointName string) error

	// Close releases backend resources.
	Close() error
}
