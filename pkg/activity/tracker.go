package activity

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"atlas-gw/atlas/pkg/events"
)

// OutcomeRecorder receives the health-relevant result of each finished
// request. *health.Monitor satisfies it.
type OutcomeRecorder interface {
	RecordOutcome(clientType, name string, success bool, latency time.Duration, errMsg string)
}

// QuotaConsumer receives token consumption per finished request.
// *quota.Tracker satisfies it.
type QuotaConsumer interface {
	Consume(clientType, name string, tokens int64)
}

// RequestMetrics receives one data point per finished request.
// *metrics.Collector satisfies it.
type RequestMetrics interface {
	RecordRequest(clientType, endpoint, status string, duration time.Duration, tokens int64)
}

// sample is one finished request inside the throughput window.
type sample struct {
	at      time.Time
	tokens  int64
	latency time.Duration
}

// Tracker follows every in-flight request through its phases and keeps
// a short history plus trailing throughput aggregates for the console.
type Tracker struct {
	recentSize int
	window     time.Duration
	monitor    OutcomeRecorder
	quota      QuotaConsumer
	metrics    RequestMetrics
	bus        *events.Bus
	logger     *slog.Logger
	nowFn      func() time.Time

	mu      sync.Mutex
	active  map[string]*ActiveRequest
	recent  []RequestRecord // newest first
	samples []sample
}

// NewTracker creates a tracker. monitor, quota, and bus may each be nil
// to disable the corresponding feed.
func NewTracker(recentSize int, window time.Duration, monitor OutcomeRecorder, quota QuotaConsumer, bus *events.Bus, logger *slog.Logger) *Tracker {
	if recentSize < 1 {
		recentSize = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		recentSize: recentSize,
		window:     window,
		monitor:    monitor,
		quota:      quota,
		bus:        bus,
		logger:     logger,
		nowFn:      time.Now,
		active:     make(map[string]*ActiveRequest),
	}
}

// SetMetrics wires a metrics sink for finished requests. Call during
// engine wiring, before traffic is tracked.
func (t *Tracker) SetMetrics(m RequestMetrics) {
	t.metrics = m
}

// Begin registers a new in-flight request in the waiting phase. A
// duplicate request id is ignored.
func (t *Tracker) Begin(requestID, clientType, endpointName, model, messagePreview string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.active[requestID]; exists {
		t.logger.Warn("duplicate request id ignored", "request_id", requestID)
		return
	}

	req := &ActiveRequest{
		RequestID:      requestID,
		EndpointName:   endpointName,
		ClientType:     clientType,
		Model:          model,
		Phase:          PhaseWaiting,
		StartTime:      t.nowFn(),
		MessagePreview: messagePreview,
	}
	t.active[requestID] = req

	// Published under the lock so phase events for one request can never
	// be observed out of order. Non-terminal publishes never block.
	t.publish(events.Event{
		Type:      events.TypeRequestStarted,
		RequestID: requestID,
		Payload:   *req,
	})
}

// Advance moves a request to a later phase. Unknown requests, unknown
// phases, terminal phases (use End), and backward transitions are all
// ignored.
func (t *Tracker) Advance(requestID string, phase Phase) {
	if !phase.Valid() || phase.Terminal() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.active[requestID]
	if !ok || phaseRank[phase] <= phaseRank[req.Phase] {
		return
	}
	req.Phase = phase

	t.publish(events.Event{
		Type:      events.TypeRequestUpdated,
		RequestID: requestID,
		Payload:   *req,
	})
}

// AddBytes accumulates streamed response bytes for a request.
func (t *Tracker) AddBytes(requestID string, n int64) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	if req, ok := t.active[requestID]; ok {
		req.BytesReceived += n
	}
	t.mu.Unlock()
}

// End finishes a request. The request leaves the active set, enters the
// recent ring, and its outcome feeds the health monitor, the quota
// tracker, and the throughput window. Unknown request ids are ignored.
func (t *Tracker) End(requestID string, success bool, tokens int64, errMsg string) {
	now := t.nowFn()

	t.mu.Lock()
	req, ok := t.active[requestID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.active, requestID)

	phase := PhaseCompleted
	if !success {
		phase = PhaseFailed
	}
	latency := now.Sub(req.StartTime)

	record := RequestRecord{
		RequestID:      req.RequestID,
		EndpointName:   req.EndpointName,
		ClientType:     req.ClientType,
		Model:          req.Model,
		Phase:          phase,
		StartTime:      req.StartTime,
		EndTime:        now,
		DurationMs:     latency.Milliseconds(),
		Tokens:         tokens,
		BytesReceived:  req.BytesReceived,
		MessagePreview: req.MessagePreview,
		ErrorMessage:   errMsg,
	}

	t.recent = append([]RequestRecord{record}, t.recent...)
	if len(t.recent) > t.recentSize {
		t.recent = t.recent[:t.recentSize]
	}

	t.pruneLocked(now)
	t.samples = append(t.samples, sample{at: now, tokens: tokens, latency: latency})
	stats := t.throughputLocked(now)
	t.mu.Unlock()

	if t.monitor != nil {
		t.monitor.RecordOutcome(record.ClientType, record.EndpointName, success, latency, errMsg)
	}
	if t.quota != nil && tokens > 0 {
		t.quota.Consume(record.ClientType, record.EndpointName, tokens)
	}
	if t.metrics != nil {
		t.metrics.RecordRequest(record.ClientType, record.EndpointName, string(phase), latency, tokens)
	}

	// The terminal publish can block until subscribers drain, so it runs
	// outside mu. Update events for this id publish under mu and the id
	// left the active set above, so none can follow the completed event.
	t.publish(events.Event{
		Type:      events.TypeRequestCompleted,
		RequestID: requestID,
		Payload:   record,
	})
	t.publish(events.Event{
		Type:    events.TypeMetricsUpdated,
		Payload: stats,
	})
}

// Active returns the in-flight requests ordered by start time.
func (t *Tracker) Active() []ActiveRequest {
	t.mu.Lock()
	out := make([]ActiveRequest, 0, len(t.active))
	for _, req := range t.active {
		out = append(out, *req)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].RequestID < out[j].RequestID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// ActiveCount returns the number of in-flight requests.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Recent returns up to limit finished requests, newest first. A limit
// below 1 returns the whole ring.
func (t *Tracker) Recent(limit int) []RequestRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.recent)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RequestRecord, n)
	copy(out, t.recent[:n])
	return out
}

// Throughput recomputes the trailing-window aggregates.
func (t *Tracker) Throughput() ThroughputStats {
	now := t.nowFn()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(now)
	return t.throughputLocked(now)
}

// pruneLocked drops samples older than the window. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.samples) && !t.samples[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		t.samples = append(t.samples[:0], t.samples[i:]...)
	}
}

// throughputLocked computes the aggregates from live samples. Caller
// holds mu and has pruned.
func (t *Tracker) throughputLocked(now time.Time) ThroughputStats {
	stats := ThroughputStats{ActiveRequestsCount: len(t.active)}
	if len(t.samples) == 0 {
		return stats
	}

	var tokens int64
	var latencySum time.Duration
	for _, s := range t.samples {
		tokens += s.tokens
		latencySum += s.latency
	}

	// Scale counts to a per-minute rate for windows other than 60s.
	scale := float64(time.Minute) / float64(t.window)
	stats.RequestsPerMin = float64(len(t.samples)) * scale
	stats.TokensPerMin = float64(tokens) * scale
	stats.GlobalAvgLatencyMs = float64(latencySum.Milliseconds()) / float64(len(t.samples))
	return stats
}

func (t *Tracker) publish(evt events.Event) {
	if t.bus != nil {
		t.bus.Publish(evt)
	}
}
