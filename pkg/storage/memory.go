package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBackend keeps usage records in process memory. Suitable for
// deployments that accept losing quota counters on restart, and for tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]*UsageRecord
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string]*UsageRecord),
	}
}

func usageKey(clientType, endpointName string) string {
	return clientType + "/" + endpointName
}

// SaveUsage upserts a usage record.
func (m *MemoryBackend) SaveUsage(_ context.Context, rec *UsageRecord) error {
	if rec == nil {
		return fmt.Errorf("usage record cannot be nil")
	}
	if rec.ClientType == "" || rec.EndpointName == "" {
		return fmt.Errorf("usage record requires client type and endpoint name")
	}

	cp := *rec
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[usageKey(rec.ClientType, rec.EndpointName)] = &cp
	return nil
}

// LoadUsage returns copies of all stored records.
func (m *MemoryBackend) LoadUsage(_ context.Context) ([]*UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*UsageRecord, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

// DeleteUsage removes a record.
func (m *MemoryBackend) DeleteUsage(_ context.Context, clientType, endpointName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, usageKey(clientType, endpointName))
	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}
