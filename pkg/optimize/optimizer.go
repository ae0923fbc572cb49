package optimize

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"atlas-gw/atlas/pkg/config"
	"atlas-gw/atlas/pkg/health"
	"atlas-gw/atlas/pkg/health/probe"
	"atlas-gw/atlas/pkg/registry"
)

// Actions applied to an endpoint after its probe.
const (
	ActionNone       = "none"
	ActionEnabled    = "enabled"
	ActionDisabled   = "disabled"
	ActionSetCurrent = "set_current"
)

// EndpointProber runs one synthetic probe against an endpoint.
// *probe.Dispatcher satisfies it.
type EndpointProber interface {
	Probe(ctx context.Context, ep *registry.Endpoint) probe.Result
}

// CurrentSetter receives the promotion of the best-probing endpoint.
// *routing.Selector satisfies it.
type CurrentSetter interface {
	SetCurrent(clientType, name string)
}

// HealthGauge receives each endpoint's derived status after a run.
// *metrics.Collector satisfies it.
type HealthGauge interface {
	SetEndpointHealth(clientType, endpoint, status string, routable bool)
}

// ProbeOutcome is one endpoint's result within a run.
type ProbeOutcome struct {
	Name         string `json:"name"`
	Success      bool   `json:"success"`
	LatencyMs    int64  `json:"latencyMs"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Action       string `json:"action"`
}

// Report summarizes one optimization run.
type Report struct {
	ClientType    string         `json:"clientType"`
	BestEndpoint  string         `json:"bestEndpoint,omitempty"`
	EnabledCount  int            `json:"enabledCount"`
	DisabledCount int            `json:"disabledCount"`
	Duration      time.Duration  `json:"duration"`
	Results       []ProbeOutcome `json:"results"`
}

// Optimizer probes every endpoint of a client type in one batch and
// applies enable/disable/promote decisions from the results.
type Optimizer struct {
	cfg      config.OptimizerConfig
	registry *registry.Registry
	monitor  *health.Monitor
	prober   EndpointProber
	current  CurrentSetter
	gauge    HealthGauge
	logger   *slog.Logger

	// inFlight holds one flag per client type so runs never overlap.
	inFlight sync.Map

	// mu guards autoDisabled, the set of endpoints this optimizer turned
	// off. Only those are re-enabled on a later success; operator-disabled
	// endpoints stay off.
	mu           sync.Mutex
	autoDisabled map[string]bool
}

// New creates an optimizer. current may be nil when no selector is wired.
func New(cfg config.OptimizerConfig, reg *registry.Registry, mon *health.Monitor, prober EndpointProber, current CurrentSetter, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		cfg:          cfg,
		registry:     reg,
		monitor:      mon,
		prober:       prober,
		current:      current,
		logger:       logger,
		autoDisabled: make(map[string]bool),
	}
}

// SetMetrics wires a health gauge sink. Call during engine wiring,
// before runs start.
func (o *Optimizer) SetMetrics(hg HealthGauge) {
	o.gauge = hg
}

// RunOptimization probes all endpoints of a client type concurrently and
// applies the decision policy. At most one run per client type is in
// flight; an overlapping call returns *ConcurrentOptimizationError.
func (o *Optimizer) RunOptimization(ctx context.Context, clientType string) (*Report, error) {
	flagAny, _ := o.inFlight.LoadOrStore(clientType, &atomic.Bool{})
	flag := flagAny.(*atomic.Bool)
	if !flag.CompareAndSwap(false, true) {
		return nil, &ConcurrentOptimizationError{ClientType: clientType}
	}
	defer flag.Store(false)

	start := time.Now()

	// Disabled endpoints are probed too so a recovered upstream can be
	// turned back on.
	endpoints := o.registry.List(clientType)
	if len(endpoints) == 0 {
		return &Report{ClientType: clientType, Duration: time.Since(start)}, nil
	}

	results := o.probeAll(ctx, endpoints)

	report := &Report{
		ClientType: clientType,
		Results:    make([]ProbeOutcome, len(endpoints)),
	}

	bestIdx := -1
	var bestLatency time.Duration
	for i, ep := range endpoints {
		res := results[i]
		o.monitor.RecordProbe(clientType, ep.Name, res.Latency, res.Err)

		outcome := ProbeOutcome{
			Name:      ep.Name,
			Success:   res.Success(),
			LatencyMs: res.Latency.Milliseconds(),
			Action:    ActionNone,
		}
		if res.Err != nil {
			outcome.ErrorMessage = res.Err.Error()
		}

		outcome.Action = o.decide(clientType, ep, res)

		if outcome.Success && (bestIdx < 0 || res.Latency < bestLatency) {
			bestIdx = i
			bestLatency = res.Latency
		}
		report.Results[i] = outcome
	}

	if bestIdx >= 0 {
		best := endpoints[bestIdx]
		report.BestEndpoint = best.Name
		if o.current != nil {
			o.current.SetCurrent(clientType, best.Name)
		}
		if report.Results[bestIdx].Action == ActionNone {
			report.Results[bestIdx].Action = ActionSetCurrent
		}
	}

	// Re-list so counts and gauges reflect the decisions just applied.
	for _, ep := range o.registry.List(clientType) {
		if ep.Enabled {
			report.EnabledCount++
		} else {
			report.DisabledCount++
		}
		if o.gauge != nil {
			status := o.monitor.Status(ep)
			o.gauge.SetEndpointHealth(clientType, ep.Name, string(status), status.Routable())
		}
	}
	report.Duration = time.Since(start)

	o.logger.Info("optimization run finished",
		"client_type", clientType,
		"endpoints", len(endpoints),
		"best", report.BestEndpoint,
		"enabled", report.EnabledCount,
		"disabled", report.DisabledCount,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// probeAll fans the probes out over a bounded worker pool. Results are
// index-aligned with endpoints.
func (o *Optimizer) probeAll(ctx context.Context, endpoints []*registry.Endpoint) []probe.Result {
	concurrency := o.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}
	if concurrency > len(endpoints) {
		concurrency = len(endpoints)
	}

	results := make([]probe.Result, len(endpoints))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.prober.Probe(ctx, endpoints[i])
			}
		}()
	}
	for i := range endpoints {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// decide applies the per-endpoint policy. A success re-enables an
// endpoint only if this optimizer disabled it earlier; an auth failure
// disables it; everything else leaves state alone.
func (o *Optimizer) decide(clientType string, ep *registry.Endpoint, res probe.Result) string {
	key := clientType + "/" + ep.Name

	if res.Success() {
		o.mu.Lock()
		wasAuto := o.autoDisabled[key]
		if wasAuto {
			delete(o.autoDisabled, key)
		}
		o.mu.Unlock()

		if !ep.Enabled && wasAuto {
			if err := o.registry.SetEnabled(clientType, ep.Name, true); err != nil {
				o.logger.Warn("failed to re-enable endpoint", "endpoint", ep.Name, "error", err)
				return ActionNone
			}
			o.logger.Info("endpoint recovered, re-enabled", "endpoint", ep.Name, "client_type", clientType)
			return ActionEnabled
		}
		return ActionNone
	}

	if health.IsAuthError(res.Err) {
		if !ep.Enabled {
			return ActionNone
		}
		if err := o.registry.SetEnabled(clientType, ep.Name, false); err != nil {
			o.logger.Warn("failed to disable endpoint", "endpoint", ep.Name, "error", err)
			return ActionNone
		}
		o.mu.Lock()
		o.autoDisabled[key] = true
		o.mu.Unlock()
		o.logger.Warn("endpoint disabled after auth failure",
			"endpoint", ep.Name,
			"client_type", clientType,
			"error", res.Err,
		)
		return ActionDisabled
	}

	// Timeouts, transport errors, and unsupported probes never change
	// enablement.
	return ActionNone
}
