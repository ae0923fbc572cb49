package optimize

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"atlas-gw/atlas/pkg/config"
	"atlas-gw/atlas/pkg/health"
	"atlas-gw/atlas/pkg/health/probe"
	"atlas-gw/atlas/pkg/registry"
)

type fakeProber struct {
	mu      sync.Mutex
	results map[string]probe.Result
	release chan struct{} // when non-nil, probes block until closed
	calls   int
}

func (f *fakeProber) Probe(ctx context.Context, ep *registry.Endpoint) probe.Result {
	f.mu.Lock()
	f.calls++
	release := f.release
	res := f.results[ep.Name]
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return probe.Result{Err: &health.ProbeError{Endpoint: ep.Name, Kind: health.KindTimeout, Timeout: time.Second}}
		}
	}
	return res
}

type fakeCurrent struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeCurrent) SetCurrent(clientType, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, clientType+"/"+name)
}

func (f *fakeCurrent) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func newTestRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()
	r := registry.New(nil)
	for _, name := range names {
		err := r.Add(&registry.Endpoint{
			Name:        name,
			ClientType:  registry.ClientClaude,
			APIUrl:      "https://" + name + ".example.com",
			Transformer: "anthropic",
			Enabled:     true,
			Priority:    100,
		})
		if err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}
	return r
}

func newTestOptimizer(reg *registry.Registry, prober EndpointProber, current CurrentSetter) (*Optimizer, *health.Monitor) {
	mon := health.NewMonitor(config.MonitorConfig{
		HealthWindow:         5 * time.Minute,
		ErrorRateThreshold:   80,
		WarningRateThreshold: 95,
	}, nil)
	return New(config.OptimizerConfig{Concurrency: 2}, reg, mon, prober, current, nil), mon
}

func TestRunOptimization_PromotesFastestSuccess(t *testing.T) {
	reg := newTestRegistry(t, "a", "b", "c")
	prober := &fakeProber{results: map[string]probe.Result{
		"a": {Latency: 80 * time.Millisecond},
		"b": {Latency: 20 * time.Millisecond},
		"c": {Latency: 10 * time.Millisecond, Err: &health.ProbeError{Endpoint: "c", Kind: health.KindTransport, Message: "refused"}},
	}}
	current := &fakeCurrent{}
	o, mon := newTestOptimizer(reg, prober, current)

	report, err := o.RunOptimization(context.Background(), registry.ClientClaude)
	if err != nil {
		t.Fatalf("RunOptimization() error = %v", err)
	}

	if report.BestEndpoint != "b" {
		t.Errorf("BestEndpoint = %q, want b (lowest successful latency)", report.BestEndpoint)
	}
	if got := current.last(); got != "claude/b" {
		t.Errorf("SetCurrent = %q, want claude/b", got)
	}
	if len(report.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(report.Results))
	}
	if report.Results[1].Action != ActionSetCurrent {
		t.Errorf("b action = %q, want set_current", report.Results[1].Action)
	}
	if report.Results[2].Success || report.Results[2].ErrorMessage == "" {
		t.Errorf("c result = %+v, want failure with message", report.Results[2])
	}
	if report.EnabledCount != 3 || report.DisabledCount != 0 {
		t.Errorf("counts = %d/%d, transport failure must not disable", report.EnabledCount, report.DisabledCount)
	}

	// Probe results feed the monitor.
	checks := mon.CheckResults()
	if cr, ok := checks["b"]; !ok || !cr.Success {
		t.Errorf("CheckResults[b] = %+v, want recorded success", cr)
	}
}

func TestRunOptimization_AuthFailureDisablesAndRecovers(t *testing.T) {
	reg := newTestRegistry(t, "a")
	prober := &fakeProber{results: map[string]probe.Result{
		"a": {Latency: 5 * time.Millisecond, Err: &health.ProbeError{Endpoint: "a", Kind: health.KindAuth, StatusCode: 401, Message: "unauthorized"}},
	}}
	o, _ := newTestOptimizer(reg, prober, nil)

	report, err := o.RunOptimization(context.Background(), registry.ClientClaude)
	if err != nil {
		t.Fatalf("RunOptimization() error = %v", err)
	}
	if report.Results[0].Action != ActionDisabled {
		t.Errorf("action = %q, want disabled", report.Results[0].Action)
	}
	ep, _ := reg.Get(registry.ClientClaude, "a")
	if ep.Enabled {
		t.Fatal("endpoint should be disabled after auth failure")
	}

	// The key works again; the optimizer turned it off, so it turns it
	// back on.
	prober.mu.Lock()
	prober.results["a"] = probe.Result{Latency: 5 * time.Millisecond}
	prober.mu.Unlock()

	report, err = o.RunOptimization(context.Background(), registry.ClientClaude)
	if err != nil {
		t.Fatalf("RunOptimization() error = %v", err)
	}
	if report.Results[0].Action != ActionEnabled {
		t.Errorf("action = %q, want enabled", report.Results[0].Action)
	}
	ep, _ = reg.Get(registry.ClientClaude, "a")
	if !ep.Enabled {
		t.Fatal("endpoint should be re-enabled after recovery")
	}
}

func TestRunOptimization_OperatorDisabledStaysOff(t *testing.T) {
	reg := newTestRegistry(t, "a", "b")
	if err := reg.SetEnabled(registry.ClientClaude, "a", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	prober := &fakeProber{results: map[string]probe.Result{
		"a": {Latency: 5 * time.Millisecond},
		"b": {Latency: 30 * time.Millisecond},
	}}
	o, _ := newTestOptimizer(reg, prober, nil)

	report, err := o.RunOptimization(context.Background(), registry.ClientClaude)
	if err != nil {
		t.Fatalf("RunOptimization() error = %v", err)
	}

	ep, _ := reg.Get(registry.ClientClaude, "a")
	if ep.Enabled {
		t.Error("operator-disabled endpoint must not be re-enabled by a successful probe")
	}
	if report.Results[0].Action != ActionNone {
		t.Errorf("a action = %q, want none", report.Results[0].Action)
	}
	// The disabled endpoint can still win promotion; it was the fastest
	// success and current only steers preference, not enablement.
	if report.BestEndpoint != "a" {
		t.Errorf("BestEndpoint = %q, want a", report.BestEndpoint)
	}
	if report.EnabledCount != 1 || report.DisabledCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", report.EnabledCount, report.DisabledCount)
	}
}

func TestRunOptimization_RejectsConcurrentRun(t *testing.T) {
	reg := newTestRegistry(t, "a")
	release := make(chan struct{})
	prober := &fakeProber{
		results: map[string]probe.Result{"a": {Latency: time.Millisecond}},
		release: release,
	}
	o, _ := newTestOptimizer(reg, prober, nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.RunOptimization(context.Background(), registry.ClientClaude)
		done <- err
	}()

	// Wait for the first run to reach its probe.
	deadline := time.After(time.Second)
	for {
		prober.mu.Lock()
		started := prober.calls > 0
		prober.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first run never started probing")
		case <-time.After(time.Millisecond):
		}
	}

	_, err := o.RunOptimization(context.Background(), registry.ClientClaude)
	if !errors.Is(err, ErrOptimizationInProgress) {
		t.Errorf("overlapping run error = %v, want ErrOptimizationInProgress", err)
	}
	var cerr *ConcurrentOptimizationError
	if !errors.As(err, &cerr) || cerr.ClientType != registry.ClientClaude {
		t.Errorf("error = %#v, want *ConcurrentOptimizationError for claude", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run error = %v", err)
	}

	// Flag cleared; a new run proceeds.
	if _, err := o.RunOptimization(context.Background(), registry.ClientClaude); err != nil {
		t.Errorf("follow-up run error = %v", err)
	}
}

func TestRunOptimization_ContextCancelBoundsProbes(t *testing.T) {
	reg := newTestRegistry(t, "a", "b")
	prober := &fakeProber{
		results: map[string]probe.Result{},
		release: make(chan struct{}), // never closed; probes obey ctx only
	}
	o, _ := newTestOptimizer(reg, prober, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	report, err := o.RunOptimization(ctx, registry.ClientClaude)
	if err != nil {
		t.Fatalf("RunOptimization() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("run took %s, probes must be bounded by the context", elapsed)
	}
	for _, res := range report.Results {
		if res.Success {
			t.Errorf("result %+v, want timeout failure", res)
		}
	}
	if report.BestEndpoint != "" {
		t.Errorf("BestEndpoint = %q, want none", report.BestEndpoint)
	}
}

func TestRunOptimization_EmptyClientType(t *testing.T) {
	reg := newTestRegistry(t)
	o, _ := newTestOptimizer(reg, &fakeProber{results: map[string]probe.Result{}}, nil)

	report, err := o.RunOptimization(context.Background(), registry.ClientGemini)
	if err != nil {
		t.Fatalf("RunOptimization() error = %v", err)
	}
	if len(report.Results) != 0 || report.BestEndpoint != "" {
		t.Errorf("report = %+v, want empty", report)
	}
}

type gaugeSample struct {
	endpoint string
	status   string
	routable bool
}

type fakeHealthGauge struct {
	mu      sync.Mutex
	samples map[string]gaugeSample
}

func (f *fakeHealthGauge) SetEndpointHealth(clientType, endpoint, status string, routable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.samples == nil {
		f.samples = make(map[string]gaugeSample)
	}
	f.samples[clientType+"/"+endpoint] = gaugeSample{endpoint, status, routable}
}

func TestRunOptimization_PublishesHealthGauges(t *testing.T) {
	reg := newTestRegistry(t, "a", "b")
	prober := &fakeProber{results: map[string]probe.Result{
		"a": {Latency: 30 * time.Millisecond},
		"b": {Err: &health.ProbeError{Endpoint: "b", Kind: health.KindAuth, StatusCode: 401}},
	}}
	opt, _ := newTestOptimizer(reg, prober, nil)

	gauge := &fakeHealthGauge{}
	opt.SetMetrics(gauge)

	if _, err := opt.RunOptimization(context.Background(), registry.ClientClaude); err != nil {
		t.Fatalf("RunOptimization() error = %v", err)
	}

	if len(gauge.samples) != 2 {
		t.Fatalf("gauge received %d endpoints, want 2", len(gauge.samples))
	}
	a := gauge.samples["claude/a"]
	if !a.routable {
		t.Errorf("endpoint a gauge = %+v, want routable", a)
	}
	b := gauge.samples["claude/b"]
	if b.routable || b.status != string(health.StatusDisabled) {
		t.Errorf("endpoint b gauge = %+v, want disabled and not routable", b)
	}
}
