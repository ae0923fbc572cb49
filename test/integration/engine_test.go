//go:build integration

// Package integration exercises the full engine wiring in process:
// registry, monitor, quota, selector, optimizer, activity tracking, and
// the console HTTP surface against live httptest upstreams.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atlas-gw/atlas/pkg/activity"
	"atlas-gw/atlas/pkg/config"
	"atlas-gw/atlas/pkg/console"
	"atlas-gw/atlas/pkg/events"
	"atlas-gw/atlas/pkg/health"
	"atlas-gw/atlas/pkg/health/probe"
	"atlas-gw/atlas/pkg/limits/ratelimit"
	"atlas-gw/atlas/pkg/optimize"
	"atlas-gw/atlas/pkg/quota"
	"atlas-gw/atlas/pkg/registry"
	"atlas-gw/atlas/pkg/routing"
	"atlas-gw/atlas/pkg/server"
	"atlas-gw/atlas/pkg/storage"
	"atlas-gw/atlas/pkg/telemetry/metrics"
)

type engine struct {
	registry *registry.Registry
	monitor  *health.Monitor
	selector *routing.Selector
	tracker  *activity.Tracker
	api      *httptest.Server
}

// newEngine wires the full stack the way cmd/atlas does, with an
// in-memory quota backend and the console served by httptest.
func newEngine(t *testing.T, endpoints ...*registry.Endpoint) *engine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.New(logger)
	for _, ep := range endpoints {
		if err := reg.Add(ep); err != nil {
			t.Fatalf("failed to add endpoint %s: %v", ep.Name, err)
		}
	}

	collector := metrics.NewCollector(config.MetricsConfig{Enabled: true}, nil)

	monitor := health.NewMonitor(config.MonitorConfig{
		HealthWindow:         5 * time.Minute,
		ThroughputWindow:     time.Minute,
		ErrorRateThreshold:   80,
		WarningRateThreshold: 95,
		ProbeTimeout:         2 * time.Second,
		RecentHistorySize:    10,
	}, logger)
	monitor.SetMetrics(collector)

	quotaTracker := quota.NewTracker(storage.NewMemoryBackend(), logger)
	quotaTracker.Configure(reg.All())

	limiter := ratelimit.NewLimiter(config.RateLimitConfig{Enabled: false}, logger)

	selector := routing.NewSelector(config.RoutingConfig{
		Strategy: routing.StrategyFastest,
	}, reg, monitor, quotaTracker, limiter, logger)
	t.Cleanup(selector.Close)
	selector.SetMetrics(collector)

	dispatcher := probe.NewDispatcher(2 * time.Second)
	optimizer := optimize.New(config.OptimizerConfig{Concurrency: 2, ProbeTimeout: 2 * time.Second},
		reg, monitor, dispatcher, selector, logger)
	optimizer.SetMetrics(collector)

	bus := events.NewBus()
	t.Cleanup(bus.Close)
	tracker := activity.NewTracker(10, time.Minute, monitor, quotaTracker, bus, logger)
	tracker.SetMetrics(collector)

	con := console.New(reg, monitor, tracker, optimizer, bus, logger)
	srv := server.New(config.ServerConfig{ListenAddress: "127.0.0.1:0"}, con, "/metrics", collector.Handler(), logger)

	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &engine{
		registry: reg,
		monitor:  monitor,
		selector: selector,
		tracker:  tracker,
		api:      api,
	}
}

// upstream starts a stub provider answering the models-list probe.
func upstream(t *testing.T, status int, body string, delay time.Duration) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func claudeEndpoint(name, url string, priority int) *registry.Endpoint {
	return &registry.Endpoint{
		Name:        name,
		ClientType:  registry.ClientClaude,
		APIUrl:      url,
		APIKey:      "test-key",
		Transformer: "anthropic",
		Enabled:     true,
		Priority:    priority,
	}
}

// TestOptimizeDisablesFailingUpstream runs a real batch optimization
// against live stub upstreams and verifies the decisions reach both the
// registry and the console API.
func TestOptimizeDisablesFailingUpstream(t *testing.T) {
	good := upstream(t, http.StatusOK, `{"data":[]}`, 0)
	bad := upstream(t, http.StatusUnauthorized, `{"error":"invalid api key"}`, 0)

	eng := newEngine(t,
		claudeEndpoint("bad", bad.URL, 1),
		claudeEndpoint("good", good.URL, 2),
	)

	resp, err := http.Post(eng.api.URL+"/api/optimize?client_type=claude", "application/json", nil)
	if err != nil {
		t.Fatalf("optimize request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var report optimize.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}

	if report.BestEndpoint != "good" {
		t.Errorf("BestEndpoint = %q, want %q", report.BestEndpoint, "good")
	}
	if report.DisabledCount != 1 {
		t.Errorf("DisabledCount = %d, want 1", report.DisabledCount)
	}

	// The auth failure must have disabled the endpoint in the registry.
	ep, err := eng.registry.Get(registry.ClientClaude, "bad")
	if err != nil {
		t.Fatal(err)
	}
	if ep.Enabled {
		t.Error("auth-failing endpoint should be disabled after optimization")
	}

	// Selection now lands on the surviving upstream despite its lower
	// priority.
	picked, err := eng.selector.Select(registry.ClientClaude, "claude-sonnet-4", "")
	if err != nil {
		t.Fatalf("selection failed: %v", err)
	}
	if picked.Name != "good" {
		t.Errorf("selected %q, want %q", picked.Name, "good")
	}
	eng.selector.Release(registry.ClientClaude, picked.Name)

	// The run published per-endpoint routability gauges.
	mresp, err := http.Get(eng.api.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics query failed: %v", err)
	}
	defer mresp.Body.Close()

	exposition, _ := io.ReadAll(mresp.Body)
	if !bytes.Contains(exposition, []byte(`atlas_engine_endpoint_routable{client_type="claude",endpoint="bad",status="disabled"} 0`)) {
		t.Errorf("metrics missing disabled gauge for bad endpoint:\n%s", exposition)
	}
	if !bytes.Contains(exposition, []byte(`atlas_engine_probe_latency_seconds{client_type="claude",endpoint="good"}`)) {
		t.Errorf("metrics missing probe latency for good endpoint:\n%s", exposition)
	}
}

// TestRequestLifecycleReachesConsole drives a request through the
// activity tracker and reads it back from the console API.
func TestRequestLifecycleReachesConsole(t *testing.T) {
	good := upstream(t, http.StatusOK, `{"data":[]}`, 0)

	eng := newEngine(t, claudeEndpoint("primary", good.URL, 1))

	ep, err := eng.selector.Select(registry.ClientClaude, "claude-sonnet-4", "")
	if err != nil {
		t.Fatalf("selection failed: %v", err)
	}

	eng.tracker.Begin("req-1", registry.ClientClaude, ep.Name, "claude-sonnet-4", "hello")
	eng.tracker.Advance("req-1", activity.PhaseConnecting)
	eng.tracker.Advance("req-1", activity.PhaseStreaming)
	eng.tracker.End("req-1", true, 500, "")
	eng.selector.Release(registry.ClientClaude, ep.Name)

	resp, err := http.Get(eng.api.URL + "/api/requests?limit=5")
	if err != nil {
		t.Fatalf("requests query failed: %v", err)
	}
	defer resp.Body.Close()

	var records []activity.RequestRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("failed to decode records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 recent record, got %d", len(records))
	}
	if records[0].RequestID != "req-1" || records[0].Phase != activity.PhaseCompleted {
		t.Errorf("unexpected record: %+v", records[0])
	}

	// The outcome must be visible in the monitor snapshot too.
	resp2, err := http.Get(eng.api.URL + "/api/monitor")
	if err != nil {
		t.Fatalf("monitor query failed: %v", err)
	}
	defer resp2.Body.Close()

	var snap console.MonitorSnapshot
	if err := json.NewDecoder(resp2.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.RequestsPerMin < 1 {
		t.Errorf("RequestsPerMin = %v, want >= 1", snap.RequestsPerMin)
	}
	if snap.TokensPerMin < 500 {
		t.Errorf("TokensPerMin = %v, want >= 500", snap.TokensPerMin)
	}

	// The finished request is visible on the Prometheus endpoint.
	resp3, err := http.Get(eng.api.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics query failed: %v", err)
	}
	defer resp3.Body.Close()

	exposition, _ := io.ReadAll(resp3.Body)
	if !bytes.Contains(exposition, []byte(`atlas_engine_requests_total{client_type="claude",endpoint="primary",status="completed"} 1`)) {
		t.Errorf("metrics missing completed request series:\n%s", exposition)
	}
	if !bytes.Contains(exposition, []byte(`atlas_engine_tokens_total{client_type="claude",endpoint="primary"} 500`)) {
		t.Errorf("metrics missing token series:\n%s", exposition)
	}
}

// TestEndpointHealthAfterTraffic verifies failed traffic degrades the
// endpoint row served by the console.
func TestEndpointHealthAfterTraffic(t *testing.T) {
	good := upstream(t, http.StatusOK, `{"data":[]}`, 0)

	eng := newEngine(t, claudeEndpoint("primary", good.URL, 1))

	for i := 0; i < 10; i++ {
		eng.monitor.RecordOutcome(registry.ClientClaude, "primary", false, 50*time.Millisecond, "upstream error")
	}

	resp, err := http.Get(eng.api.URL + "/api/endpoints?client_type=claude")
	if err != nil {
		t.Fatalf("endpoints query failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var rows []console.EndpointHealth
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("failed to decode rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Health.Status != health.StatusError {
		t.Errorf("status = %q, want %q", rows[0].Health.Status, health.StatusError)
	}
	if bytes.Contains(body, []byte("test-key")) {
		t.Error("endpoint rows must not leak API keys")
	}
}
