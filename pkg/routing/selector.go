package routing

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"atlas-gw/atlas/pkg/config"
	"atlas-gw/atlas/pkg/health"
	"atlas-gw/atlas/pkg/registry"
)

// Balance strategy names.
const (
	StrategyFastest    = "fastest"
	StrategyWeighted   = "weighted"
	StrategyRoundRobin = "round_robin"
)

// QuotaChecker is the selector's view of the quota subsystem. Exceeded
// endpoints are excluded from selection; an endpoint with no quota is
// never exceeded.
type QuotaChecker interface {
	Exceeded(clientType, name string) bool
}

// RateLimiter is the selector's view of the rate limiting subsystem.
// A false Allow excludes the endpoint from the current attempt only.
type RateLimiter interface {
	Allow(endpointName string) bool
}

// SelectionMetrics receives one count per Select call that found no
// eligible endpoint. *metrics.Collector satisfies it.
type SelectionMetrics interface {
	RecordSelectionError(clientType string)
}

// Selector chooses an upstream endpoint for each inbound request. It
// combines the registry (static policy), the health monitor (live
// state), quota and rate-limit collaborators, and session affinity.
type Selector struct {
	cfg      config.RoutingConfig
	registry *registry.Registry
	monitor  *health.Monitor
	quota    QuotaChecker
	limiter  RateLimiter
	affinity *AffinityCache
	logger   *slog.Logger
	stats    *Stats
	metrics  SelectionMetrics

	// mu guards the round-robin cursors and current-endpoint cells.
	mu      sync.Mutex
	cursors map[string]int
	current map[string]string
}

// NewSelector creates a selector. quota and limiter may be nil, which
// disables the corresponding filter stage.
func NewSelector(cfg config.RoutingConfig, reg *registry.Registry, mon *health.Monitor, quota QuotaChecker, limiter RateLimiter, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}

	var affinity *AffinityCache
	if cfg.SessionAffinity.Enabled {
		affinity = NewAffinityCache(
			cfg.SessionAffinity.TTL,
			cfg.SessionAffinity.MaxEntries,
			cfg.SessionAffinity.MaxSessionsPerEndpoint,
		)
	}

	return &Selector{
		cfg:      cfg,
		registry: reg,
		monitor:  mon,
		quota:    quota,
		limiter:  limiter,
		affinity: affinity,
		logger:   logger,
		stats:    NewStats(),
		cursors:  make(map[string]int),
		current:  make(map[string]string),
	}
}

// candidate pairs an endpoint with its health snapshot and registry
// position for ranking.
type candidate struct {
	ep  *registry.Endpoint
	rec health.Record
	pos int
}

// Select returns the endpoint to route a request to, or a
// *NoEligibleEndpointError when filtering leaves no candidate.
//
// The winner's active count is incremented; the caller must pair every
// successful Select with a Release once the request completes.
func (s *Selector) Select(clientType, model, sessionKey string) (*registry.Endpoint, error) {
	enabled := s.registry.ListEnabled(clientType)
	if len(enabled) == 0 {
		return nil, s.fail(clientType, model, "no enabled endpoints")
	}

	matched := filterByModel(enabled, model)
	if len(matched) == 0 {
		return nil, s.fail(clientType, model, "no endpoint accepts the requested model")
	}

	if s.quota != nil {
		matched = keep(matched, func(ep *registry.Endpoint) bool {
			return !s.quota.Exceeded(clientType, ep.Name)
		})
		if len(matched) == 0 {
			return nil, s.fail(clientType, model, "all matching endpoints exhausted their quota")
		}
	}

	if s.limiter != nil {
		matched = keep(matched, func(ep *registry.Endpoint) bool {
			return s.limiter.Allow(ep.Name)
		})
		if len(matched) == 0 {
			return nil, s.fail(clientType, model, "all matching endpoints are rate limited")
		}
	}

	candidates := make([]candidate, 0, len(matched))
	for i, ep := range matched {
		rec := s.monitor.Snapshot(ep)
		if !rec.Status.Routable() {
			continue
		}
		candidates = append(candidates, candidate{ep: ep, rec: rec, pos: i})
	}
	if len(candidates) == 0 {
		return nil, s.fail(clientType, model, "all matching endpoints are unhealthy")
	}

	// Session affinity overrides ranking but never eligibility: the pin
	// is honored only while the pinned endpoint survives every filter.
	if s.affinity != nil && sessionKey != "" {
		if pinned, ok := s.affinity.Get(sessionKey); ok {
			for i := range candidates {
				if candidates[i].ep.Name == pinned {
					return s.finalize(clientType, sessionKey, candidates[i].ep, "affinity")
				}
			}
		}
	}

	best := bestHealthClass(candidates)
	winner, strategy := s.applyStrategy(clientType, best)
	return s.finalize(clientType, sessionKey, winner, strategy)
}

// Release must be called when a routed request completes.
func (s *Selector) Release(clientType, name string) {
	s.monitor.DecActive(clientType, name)
}

// CurrentEndpoint returns the current endpoint cell for a client type.
func (s *Selector) CurrentEndpoint(clientType string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[clientType]
}

// SetCurrent promotes an endpoint to current for a client type. Written
// by Select on each winner and by the optimizer on promotion.
func (s *Selector) SetCurrent(clientType, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[clientType] = name
}

// Stats returns the selector's counters.
func (s *Selector) Stats() *Stats {
	return s.stats
}

// SetMetrics wires a metrics sink for failed selections. Call during
// engine wiring, before traffic flows.
func (s *Selector) SetMetrics(sm SelectionMetrics) {
	s.metrics = sm
}

// Affinity exposes the session cache, nil when affinity is disabled.
func (s *Selector) Affinity() *AffinityCache {
	return s.affinity
}

// Close releases background resources.
func (s *Selector) Close() {
	if s.affinity != nil {
		s.affinity.Close()
	}
}

// finalize books the winner: active count, affinity pin, current cell,
// stats.
func (s *Selector) finalize(clientType, sessionKey string, ep *registry.Endpoint, strategy string) (*registry.Endpoint, error) {
	s.monitor.IncActive(clientType, ep.Name)
	if s.affinity != nil && sessionKey != "" {
		s.affinity.Set(sessionKey, ep.Name)
	}
	s.SetCurrent(clientType, ep.Name)
	s.stats.recordSelection(ep.Name, strategy)

	s.logger.Debug("endpoint selected",
		"endpoint", ep.Name,
		"client_type", clientType,
		"strategy", strategy,
	)
	return ep, nil
}

func (s *Selector) fail(clientType, model, reason string) error {
	s.stats.recordError()
	if s.metrics != nil {
		s.metrics.RecordSelectionError(clientType)
	}
	s.logger.Warn("no eligible endpoint",
		"client_type", clientType,
		"model", model,
		"reason", reason,
	)
	return &NoEligibleEndpointError{ClientType: clientType, Model: model, Reason: reason}
}

// applyStrategy picks the winner among the best health class according
// to the configured balance strategy, falling back through priority,
// cost (when cost-priority routing is on), and registry order.
func (s *Selector) applyStrategy(clientType string, candidates []candidate) (*registry.Endpoint, string) {
	if len(candidates) == 1 {
		return candidates[0].ep, s.cfg.Strategy
	}

	switch s.cfg.Strategy {
	case StrategyRoundRobin:
		s.mu.Lock()
		idx := s.cursors[clientType] % len(candidates)
		s.cursors[clientType]++
		s.mu.Unlock()
		return candidates[idx].ep, StrategyRoundRobin

	case StrategyWeighted:
		return pickWeighted(candidates).ep, StrategyWeighted

	default:
		s.rankFastest(candidates)
		return candidates[0].ep, StrategyFastest
	}
}

// rankFastest sorts candidates in place by effective latency, then
// priority, then cost (when enabled), then registry order.
func (s *Selector) rankFastest(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := effectiveLatency(candidates[i].rec), effectiveLatency(candidates[j].rec)
		if li != lj {
			return li < lj
		}
		if candidates[i].ep.Priority != candidates[j].ep.Priority {
			return candidates[i].ep.Priority < candidates[j].ep.Priority
		}
		if s.cfg.CostPriority {
			ci := candidates[i].ep.CostPerInputToken + candidates[i].ep.CostPerOutputToken
			cj := candidates[j].ep.CostPerInputToken + candidates[j].ep.CostPerOutputToken
			if ci != cj {
				return ci < cj
			}
		}
		return candidates[i].pos < candidates[j].pos
	})
}

// effectiveLatency prefers probe latency when present, falling back to
// request-derived latency. Endpoints with no data rank after those with
// evidence.
func effectiveLatency(rec health.Record) time.Duration {
	if rec.HealthCheckLatency > 0 {
		return rec.HealthCheckLatency
	}
	if rec.AvgResponseTime > 0 {
		return rec.AvgResponseTime
	}
	return math.MaxInt64
}

// pickWeighted selects a candidate with probability proportional to the
// inverse of its priority, so priority 10 receives ten times the traffic
// of priority 100.
func pickWeighted(candidates []candidate) candidate {
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, c := range candidates {
		p := c.ep.Priority
		if p < 1 {
			p = 1
		}
		weights[i] = 1.0 / float64(p)
		total += weights[i]
	}

	r := rand.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// bestHealthClass returns the candidates in the best status class
// present, preserving registry order.
func bestHealthClass(candidates []candidate) []candidate {
	best := candidates[0].rec.Status.Rank()
	for _, c := range candidates[1:] {
		if r := c.rec.Status.Rank(); r < best {
			best = r
		}
	}

	out := candidates[:0:0]
	for _, c := range candidates {
		if c.rec.Status.Rank() == best {
			out = append(out, c)
		}
	}
	return out
}

// filterByModel applies the model-pattern filter. Endpoints with
// explicit patterns that match win; when none match, endpoints with no
// patterns act as wildcards. With no requested model everything passes.
func filterByModel(endpoints []*registry.Endpoint, model string) []*registry.Endpoint {
	if model == "" {
		return endpoints
	}

	var patterned, wildcard []*registry.Endpoint
	anyPatterned := false
	for _, ep := range endpoints {
		if len(ep.ModelPatterns) == 0 {
			wildcard = append(wildcard, ep)
			continue
		}
		anyPatterned = true
		if ep.MatchesModel(model) {
			patterned = append(patterned, ep)
		}
	}

	if !anyPatterned {
		return endpoints
	}
	if len(patterned) > 0 {
		return patterned
	}
	return wildcard
}

func keep(endpoints []*registry.Endpoint, pred func(*registry.Endpoint) bool) []*registry.Endpoint {
	out := endpoints[:0:0]
	for _, ep := range endpoints {
		if pred(ep) {
			out = append(out, ep)
		}
	}
	return out
}
