package console

import (
	"context"
	"errors"
	"log/slog"

	"atlas-gw/atlas/pkg/activity"
	"atlas-gw/atlas/pkg/events"
	"atlas-gw/atlas/pkg/health"
	"atlas-gw/atlas/pkg/optimize"
	"atlas-gw/atlas/pkg/registry"
)

// Optimizer is the console's view of the batch optimizer.
type Optimizer interface {
	RunOptimization(ctx context.Context, clientType string) (*optimize.Report, error)
}

// Console is the read/operate surface consumed by the HTTP server. All
// return values are JSON-serializable snapshots detached from live
// state.
type Console struct {
	registry  *registry.Registry
	monitor   *health.Monitor
	tracker   *activity.Tracker
	optimizer Optimizer
	bus       *events.Bus
	logger    *slog.Logger
}

// New wires the console. optimizer and bus may be nil; the matching
// operations then degrade (no-op run, dead subscription).
func New(reg *registry.Registry, mon *health.Monitor, tracker *activity.Tracker, opt Optimizer, bus *events.Bus, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		registry:  reg,
		monitor:   mon,
		tracker:   tracker,
		optimizer: opt,
		bus:       bus,
		logger:    logger,
	}
}

// EndpointHealth is one endpoint's full console row.
type EndpointHealth struct {
	Endpoint registry.Endpoint `json:"endpoint"`
	Health   health.Record     `json:"health"`
}

// MonitorSnapshot is the aggregate view shown on the console dashboard.
type MonitorSnapshot struct {
	ActiveRequests          []activity.ActiveRequest   `json:"activeRequests"`
	EndpointMetrics         map[string][]health.Record `json:"endpointMetrics"`
	HealthCheckLatencies    map[string]int64           `json:"healthCheckLatencies"`
	HealthCheckAvgLatencyMs float64                    `json:"healthCheckAvgLatencyMs"`
	RequestsPerMin          float64                    `json:"requestsPerMin"`
	TokensPerMin            float64                    `json:"tokensPerMin"`
	GlobalAvgLatencyMs      float64                    `json:"globalAvgLatencyMs"`
}

// GetEndpointHealth returns every endpoint of a client type with its
// derived health record, in registry order.
func (c *Console) GetEndpointHealth(clientType string) []EndpointHealth {
	endpoints := c.registry.List(clientType)
	out := make([]EndpointHealth, 0, len(endpoints))
	for _, ep := range endpoints {
		out = append(out, EndpointHealth{
			Endpoint: *ep,
			Health:   c.monitor.Snapshot(ep),
		})
	}
	return out
}

// GetEndpointCheckResults returns the most recent probe result per
// endpoint name.
func (c *Console) GetEndpointCheckResults() map[string]health.CheckResult {
	return c.monitor.CheckResults()
}

// GetMonitorSnapshot aggregates active requests, per-client-type health
// records, probe latencies, and throughput into one dashboard payload.
func (c *Console) GetMonitorSnapshot() MonitorSnapshot {
	latencies := c.monitor.HealthCheckLatencies()

	var avg float64
	if len(latencies) > 0 {
		var sum int64
		for _, ms := range latencies {
			sum += ms
		}
		avg = float64(sum) / float64(len(latencies))
	}

	metrics := make(map[string][]health.Record, len(registry.ClientTypes))
	for _, clientType := range registry.ClientTypes {
		endpoints := c.registry.List(clientType)
		if len(endpoints) == 0 {
			continue
		}
		records := make([]health.Record, 0, len(endpoints))
		for _, ep := range endpoints {
			records = append(records, c.monitor.Snapshot(ep))
		}
		metrics[clientType] = records
	}

	throughput := c.tracker.Throughput()
	return MonitorSnapshot{
		ActiveRequests:          c.tracker.Active(),
		EndpointMetrics:         metrics,
		HealthCheckLatencies:    latencies,
		HealthCheckAvgLatencyMs: avg,
		RequestsPerMin:          throughput.RequestsPerMin,
		TokensPerMin:            throughput.TokensPerMin,
		GlobalAvgLatencyMs:      throughput.GlobalAvgLatencyMs,
	}
}

// GetRecentRequests returns up to limit finished requests, newest
// first.
func (c *Console) GetRecentRequests(limit int) []activity.RequestRecord {
	return c.tracker.Recent(limit)
}

// TestAllEndpointsAndOptimize probes every endpoint of the client type
// and applies the optimizer's decisions. An already-running optimization
// returns a nil report and no error; the console treats it as a no-op.
func (c *Console) TestAllEndpointsAndOptimize(ctx context.Context, clientType string) (*optimize.Report, error) {
	if c.optimizer == nil {
		return nil, nil
	}
	report, err := c.optimizer.RunOptimization(ctx, clientType)
	if errors.Is(err, optimize.ErrOptimizationInProgress) {
		c.logger.Info("optimization already running", "client_type", clientType)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ResetMonitorMetrics clears health windows and probe history. Active
// request counts survive so in-flight work stays visible.
func (c *Console) ResetMonitorMetrics() {
	c.monitor.ResetMetrics()
	c.logger.Info("monitor metrics reset")
}

// Subscribe attaches an event feed with the given queue depth.
func (c *Console) Subscribe(depth int) *events.Subscription {
	if c.bus == nil {
		dead := events.NewBus()
		sub := dead.Subscribe(depth)
		dead.Close()
		return sub
	}
	return c.bus.Subscribe(depth)
}
