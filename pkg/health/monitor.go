package health

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"atlas-gw/atlas/pkg/config"
	"atlas-gw/atlas/pkg/registry"
)

// Monitor tracks per-endpoint health from two feeds: passive outcomes of
// real proxied traffic and active synthetic probes. Status is always
// derived on read, never stored.
//
// Endpoint state is sharded per endpoint so that recording an outcome for
// one endpoint never contends with another. All methods are safe for
// concurrent use.
type Monitor struct {
	cfg     config.MonitorConfig
	logger  *slog.Logger
	nowFn   func() time.Time
	metrics ProbeMetrics

	mu        sync.RWMutex
	endpoints map[string]*endpointState
}

// ProbeMetrics receives the round-trip time of each successful probe.
// *metrics.Collector satisfies it.
type ProbeMetrics interface {
	SetProbeLatency(clientType, endpoint string, latency time.Duration)
}

// endpointState is the mutable health state of a single endpoint.
type endpointState struct {
	name       string
	clientType string

	activeCount atomic.Int64
	window      *outcomeWindow

	mu                 sync.Mutex
	lastError          string
	lastErrorTime      time.Time
	healthCheckLatency time.Duration
	lastCheckAt        time.Time
	lastCheckSuccess   bool
	lastCheckError     string
}

// NewMonitor creates a health monitor with the given policy knobs.
func NewMonitor(cfg config.MonitorConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:       cfg,
		logger:    logger,
		nowFn:     time.Now,
		endpoints: make(map[string]*endpointState),
	}
}

// SetMetrics wires a probe metrics sink. Call during engine wiring,
// before probes run.
func (m *Monitor) SetMetrics(pm ProbeMetrics) {
	m.metrics = pm
}

// stateKey builds the internal map key. Names are unique per client type.
func stateKey(clientType, name string) string {
	return clientType + "/" + name
}

// state returns the tracked state for an endpoint, creating it on first
// touch so callers never need a registration step.
func (m *Monitor) state(clientType, name string) *endpointState {
	key := stateKey(clientType, name)

	m.mu.RLock()
	st, ok := m.endpoints[key]
	m.mu.RUnlock()
	if ok {
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok = m.endpoints[key]; ok {
		return st
	}
	st = &endpointState{
		name:       name,
		clientType: clientType,
		window:     newOutcomeWindow(m.cfg.HealthWindow),
	}
	m.endpoints[key] = st
	return st
}

// RecordOutcome feeds the result of a real proxied request into the
// endpoint's rolling window. Called on every request completion.
func (m *Monitor) RecordOutcome(clientType, name string, success bool, latency time.Duration, errMsg string) {
	st := m.state(clientType, name)
	st.window.Add(success, latency)

	if !success {
		st.mu.Lock()
		st.lastError = errMsg
		st.lastErrorTime = m.nowFn()
		st.mu.Unlock()

		m.logger.Warn("request failed",
			"endpoint", name,
			"client_type", clientType,
			"latency", latency,
			"error", errMsg,
		)
	}
}

// RecordProbe feeds the result of an active probe into the endpoint state.
//
// A transport or timeout failure also counts as a failed outcome in the
// rolling window. An unsupported probe only updates the check fields:
// some upstreams reject lightweight probes while serving real traffic
// correctly, so it must not poison the health window or the error latch.
func (m *Monitor) RecordProbe(clientType, name string, latency time.Duration, err error) {
	st := m.state(clientType, name)
	now := m.nowFn()

	st.mu.Lock()
	st.lastCheckAt = now
	switch {
	case err == nil:
		st.lastCheckSuccess = true
		st.lastCheckError = ""
		st.healthCheckLatency = latency
	default:
		st.lastCheckSuccess = false
		st.lastCheckError = err.Error()
	}
	st.mu.Unlock()

	if err == nil {
		if m.metrics != nil {
			m.metrics.SetProbeLatency(clientType, name, latency)
		}
		m.logger.Debug("probe succeeded",
			"endpoint", name,
			"client_type", clientType,
			"latency", latency,
		)
		return
	}

	if IsUnsupported(err) {
		m.logger.Info("probe not supported by endpoint",
			"endpoint", name,
			"client_type", clientType,
			"error", err,
		)
		return
	}

	st.window.Add(false, latency)
	st.mu.Lock()
	st.lastError = err.Error()
	st.lastErrorTime = now
	st.mu.Unlock()

	m.logger.Warn("probe failed",
		"endpoint", name,
		"client_type", clientType,
		"latency", latency,
		"error", err,
	)
}

// IncActive notes a request has been routed to the endpoint.
func (m *Monitor) IncActive(clientType, name string) {
	m.state(clientType, name).activeCount.Add(1)
}

// DecActive notes a routed request has finished.
func (m *Monitor) DecActive(clientType, name string) {
	st := m.state(clientType, name)
	if st.activeCount.Add(-1) < 0 {
		st.activeCount.Store(0)
	}
}

// ActiveCount returns the number of in-flight requests on the endpoint.
func (m *Monitor) ActiveCount(clientType, name string) int64 {
	return m.state(clientType, name).activeCount.Load()
}

// Snapshot builds the current health record for a registry endpoint.
func (m *Monitor) Snapshot(ep *registry.Endpoint) Record {
	st := m.state(ep.ClientType, ep.Name)
	totals := st.window.Totals()
	now := m.nowFn()

	st.mu.Lock()
	rec := Record{
		EndpointName:          st.name,
		ClientType:            st.clientType,
		ActiveCount:           st.activeCount.Load(),
		SuccessRate:           totals.successRate(),
		SampleSize:            totals.sampleSize(),
		AvgResponseTime:       totals.avgLatency(),
		HealthCheckLatency:    st.healthCheckLatency,
		LastError:             st.lastError,
		LastErrorTime:         st.lastErrorTime,
		RecentSuccess:         totals.success,
		RecentFailure:         totals.failure,
		LastCheckAt:           st.lastCheckAt,
		LastCheckSuccess:      st.lastCheckSuccess,
		LastCheckErrorMessage: st.lastCheckError,
	}
	st.mu.Unlock()

	rec.Status = m.deriveStatus(ep.Enabled, &rec, totals, now)
	return rec
}

// Status returns just the derived status for a registry endpoint.
func (m *Monitor) Status(ep *registry.Endpoint) Status {
	return m.Snapshot(ep).Status
}

// deriveStatus classifies an endpoint from its current record.
//
// Rules, in order: disabled wins unconditionally; a failure inside the
// error latch window forces error; then the success-rate thresholds;
// then any recent positive signal (probe or traffic) means healthy;
// with no data at all the endpoint is unknown.
func (m *Monitor) deriveStatus(enabled bool, rec *Record, totals windowTotals, now time.Time) Status {
	if !enabled {
		return StatusDisabled
	}
	latch := m.cfg.HealthWindow
	if !rec.LastErrorTime.IsZero() && now.Sub(rec.LastErrorTime) < latch {
		return StatusError
	}
	if totals.sampleSize() > 0 {
		if rec.SuccessRate < m.cfg.ErrorRateThreshold {
			return StatusError
		}
		if rec.SuccessRate < m.cfg.WarningRateThreshold {
			return StatusWarning
		}
	}
	recentProbe := rec.LastCheckSuccess && !rec.LastCheckAt.IsZero() && now.Sub(rec.LastCheckAt) < latch
	if recentProbe || totals.success > 0 {
		return StatusHealthy
	}
	return StatusUnknown
}

// CheckResult returns the latest probe summary for an endpoint, and false
// if it has never been probed.
func (m *Monitor) CheckResult(clientType, name string) (CheckResult, bool) {
	st := m.state(clientType, name)

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.lastCheckAt.IsZero() {
		return CheckResult{}, false
	}
	return CheckResult{
		LastCheckAt:  st.lastCheckAt,
		Success:      st.lastCheckSuccess,
		LatencyMs:    st.healthCheckLatency.Milliseconds(),
		ErrorMessage: st.lastCheckError,
	}, true
}

// CheckResults returns the latest probe summary for every endpoint that
// has been probed at least once, keyed by endpoint name.
func (m *Monitor) CheckResults() map[string]CheckResult {
	m.mu.RLock()
	states := make([]*endpointState, 0, len(m.endpoints))
	for _, st := range m.endpoints {
		states = append(states, st)
	}
	m.mu.RUnlock()

	out := make(map[string]CheckResult, len(states))
	for _, st := range states {
		st.mu.Lock()
		if !st.lastCheckAt.IsZero() {
			out[st.name] = CheckResult{
				LastCheckAt:  st.lastCheckAt,
				Success:      st.lastCheckSuccess,
				LatencyMs:    st.healthCheckLatency.Milliseconds(),
				ErrorMessage: st.lastCheckError,
			}
		}
		st.mu.Unlock()
	}
	return out
}

// HealthCheckLatencies returns the last successful probe latency per
// endpoint name, in milliseconds. Endpoints never probed successfully
// are omitted.
func (m *Monitor) HealthCheckLatencies() map[string]int64 {
	m.mu.RLock()
	states := make([]*endpointState, 0, len(m.endpoints))
	for _, st := range m.endpoints {
		states = append(states, st)
	}
	m.mu.RUnlock()

	out := make(map[string]int64, len(states))
	for _, st := range states {
		st.mu.Lock()
		if st.healthCheckLatency > 0 {
			out[st.name] = st.healthCheckLatency.Milliseconds()
		}
		st.mu.Unlock()
	}
	return out
}

// ResetMetrics clears all rolling statistics and probe results. Endpoint
// configuration and in-flight active counts are untouched.
func (m *Monitor) ResetMetrics() {
	m.mu.RLock()
	states := make([]*endpointState, 0, len(m.endpoints))
	for _, st := range m.endpoints {
		states = append(states, st)
	}
	m.mu.RUnlock()

	for _, st := range states {
		st.window.Reset()
		st.mu.Lock()
		st.lastError = ""
		st.lastErrorTime = time.Time{}
		st.healthCheckLatency = 0
		st.lastCheckAt = time.Time{}
		st.lastCheckSuccess = false
		st.lastCheckError = ""
		st.mu.Unlock()
	}

	m.logger.Info("monitor metrics reset", "endpoints", len(states))
}
