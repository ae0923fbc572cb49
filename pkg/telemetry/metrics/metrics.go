package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"atlas-gw/atlas/pkg/config"
)

// Collector owns the Prometheus metrics for the routing engine. All
// record methods are no-ops when metrics are disabled, so callers never
// branch on configuration.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	endpointHealth  *prometheus.GaugeVec
	probeLatency    *prometheus.GaugeVec
	selectionErrors *prometheus.CounterVec
}

// NewCollector creates the collector and registers every metric on its
// own registry. A nil registry allocates a fresh one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "atlas"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "engine"
	}
	buckets := cfg.RequestDurationBuckets
	if len(buckets) == 0 {
		// LLM request latencies run from sub-second to tens of seconds.
		buckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}
	}

	c := &Collector{
		enabled:  cfg.Enabled,
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_total",
			Help:      "Completed requests by client type, endpoint, and status.",
		}, []string{"client_type", "endpoint", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Request duration by client type and endpoint.",
			Buckets:   buckets,
		}, []string{"client_type", "endpoint"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "tokens_total",
			Help:      "Tokens consumed by client type and endpoint.",
		}, []string{"client_type", "endpoint"}),
		endpointHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "endpoint_routable",
			Help:      "Whether the endpoint is currently routable (1) or not (0).",
		}, []string{"client_type", "endpoint", "status"}),
		probeLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "probe_latency_seconds",
			Help:      "Latency of the most recent health probe per endpoint.",
		}, []string{"client_type", "endpoint"}),
		selectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "selection_errors_total",
			Help:      "Select calls that found no eligible endpoint.",
		}, []string{"client_type"}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.tokensTotal,
		c.endpointHealth,
		c.probeLatency,
		c.selectionErrors,
	)
	return c
}

// RecordRequest books one completed request.
func (c *Collector) RecordRequest(clientType, endpoint, status string, duration time.Duration, tokens int64) {
	if !c.enabled {
		return
	}
	c.requestsTotal.WithLabelValues(clientType, endpoint, status).Inc()
	c.requestDuration.WithLabelValues(clientType, endpoint).Observe(duration.Seconds())
	if tokens > 0 {
		c.tokensTotal.WithLabelValues(clientType, endpoint).Add(float64(tokens))
	}
}

// SetEndpointHealth publishes an endpoint's derived status. Previous
// status series for the endpoint are cleared so at most one is set.
func (c *Collector) SetEndpointHealth(clientType, endpoint, status string, routable bool) {
	if !c.enabled {
		return
	}
	c.endpointHealth.DeletePartialMatch(prometheus.Labels{
		"client_type": clientType,
		"endpoint":    endpoint,
	})
	v := 0.0
	if routable {
		v = 1.0
	}
	c.endpointHealth.WithLabelValues(clientType, endpoint, status).Set(v)
}

// SetProbeLatency publishes the latest probe round-trip time.
func (c *Collector) SetProbeLatency(clientType, endpoint string, latency time.Duration) {
	if !c.enabled {
		return
	}
	c.probeLatency.WithLabelValues(clientType, endpoint).Set(latency.Seconds())
}

// RecordSelectionError books a Select call that found no endpoint.
func (c *Collector) RecordSelectionError(clientType string) {
	if !c.enabled {
		return
	}
	c.selectionErrors.WithLabelValues(clientType).Inc()
}

// Registry exposes the backing registry, used by tests and the handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
