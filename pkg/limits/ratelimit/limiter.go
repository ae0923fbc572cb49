package ratelimit

import (
	"log/slog"
	"sync"

	"atlas-gw/atlas/pkg/config"
)

// Limiter rate-limits traffic per upstream endpoint. The selector calls
// Allow before finalizing a selection; a false answer excludes the
// endpoint from that attempt only, it carries no lasting state.
//
// Each endpoint gets its own token bucket sized from the configured
// requests-per-minute and burst, created on first touch.
type Limiter struct {
	enabled    bool
	burst      int64
	refillRate float64
	logger     *slog.Logger

	mu      sync.RWMutex
	buckets map[string]*TokenBucket
}

// NewLimiter creates a limiter from configuration. A disabled limiter
// allows everything.
func NewLimiter(cfg config.RateLimitConfig, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		enabled:    cfg.Enabled,
		burst:      int64(cfg.Burst),
		refillRate: float64(cfg.RequestsPerMinute) / 60.0,
		logger:     logger,
		buckets:    make(map[string]*TokenBucket),
	}
}

// Allow reports whether one more request may be routed to the endpoint.
func (l *Limiter) Allow(endpointName string) bool {
	if !l.enabled {
		return true
	}

	bucket := l.bucket(endpointName)
	allowed := bucket.Take(1)
	if !allowed {
		l.logger.Debug("endpoint rate limited",
			"endpoint", endpointName,
			"remaining", bucket.Remaining(),
		)
	}
	return allowed
}

// Reset refills every endpoint's bucket.
func (l *Limiter) Reset() {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, b := range l.buckets {
		b.Reset()
	}
}

// bucket returns the endpoint's bucket, creating it on first use.
func (l *Limiter) bucket(endpointName string) *TokenBucket {
	l.mu.RLock()
	b, ok := l.buckets[endpointName]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[endpointName]; ok {
		return b
	}
	b = NewTokenBucket(l.burst, l.refillRate)
	l.buckets[endpointName] = b
	return b
}
