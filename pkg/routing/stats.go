package routing

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks routing decision counters. All counters update atomically
// so the hot path never blocks on a stats lock.
type Stats struct {
	totalRequests atomic.Int64
	errors        atomic.Int64

	// perEndpoint and perStrategy map names to *atomic.Int64 counters.
	perEndpoint sync.Map
	perStrategy sync.Map

	mu        sync.Mutex
	lastReset time.Time
}

// StatsSnapshot is a point-in-time copy of the routing counters.
type StatsSnapshot struct {
	TotalRequests int64            `json:"totalRequests"`
	Errors        int64            `json:"errors"`
	PerEndpoint   map[string]int64 `json:"perEndpoint"`
	PerStrategy   map[string]int64 `json:"perStrategy"`
	LastResetTime time.Time        `json:"lastResetTime"`
}

// NewStats creates a zeroed stats collector.
func NewStats() *Stats {
	return &Stats{lastReset: time.Now()}
}

func (s *Stats) recordSelection(endpointName, strategy string) {
	s.totalRequests.Add(1)
	bump(&s.perEndpoint, endpointName)
	bump(&s.perStrategy, strategy)
}

func (s *Stats) recordError() {
	s.totalRequests.Add(1)
	s.errors.Add(1)
}

// Snapshot returns a copy of all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	lastReset := s.lastReset
	s.mu.Unlock()

	return StatsSnapshot{
		TotalRequests: s.totalRequests.Load(),
		Errors:        s.errors.Load(),
		PerEndpoint:   collect(&s.perEndpoint),
		PerStrategy:   collect(&s.perStrategy),
		LastResetTime: lastReset,
	}
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.totalRequests.Store(0)
	s.errors.Store(0)
	s.perEndpoint.Range(func(key, _ any) bool {
		s.perEndpoint.Delete(key)
		return true
	})
	s.perStrategy.Range(func(key, _ any) bool {
		s.perStrategy.Delete(key)
		return true
	})

	s.mu.Lock()
	s.lastReset = time.Now()
	s.mu.Unlock()
}

func bump(m *sync.Map, key string) {
	v, _ := m.LoadOrStore(key, &atomic.Int64{})
	v.(*atomic.Int64).Add(1)
}

func collect(m *sync.Map) map[string]int64 {
	out := make(map[string]int64)
	m.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return out
}
