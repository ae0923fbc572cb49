package config

import "time"

// Config is the root configuration structure for Atlas.
// It contains all configuration sections for the management server, upstream
// endpoints, routing engine, health monitoring, optimization, rate limiting,
// quota persistence, and telemetry.
type Config struct {
	// Server contains HTTP management server configuration including listen
	// address, timeouts, and CORS settings.
	Server ServerConfig `yaml:"server"`

	// Endpoints contains the configured upstream endpoints. The registry
	// groups them by client type while preserving file order, which is used
	// for display and as the round-robin tie-break.
	Endpoints []EndpointConfig `yaml:"endpoints"`

	// Routing contains configuration for the selection engine including the
	// load-balance strategy, cost-priority routing, and session affinity.
	Routing RoutingConfig `yaml:"routing"`

	// Monitor contains configuration for endpoint health tracking including
	// rolling window lengths and success-rate thresholds.
	Monitor MonitorConfig `yaml:"monitor"`

	// Optimizer contains configuration for the batch test-and-optimize
	// procedure including probe concurrency and timeout.
	Optimizer OptimizerConfig `yaml:"optimizer"`

	// RateLimit contains configuration for the per-endpoint rate limiter
	// consulted by the selector.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Storage contains configuration for quota usage persistence.
	Storage StorageConfig `yaml:"storage"`

	// Telemetry contains configuration for observability including logging
	// and Prometheus metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Reload contains configuration for live configuration reloading.
	Reload ReloadConfig `yaml:"reload"`
}

// ServerConfig contains configuration for the HTTP management server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8181").
	// Default: "127.0.0.1:8181"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Event streaming responses are exempted.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// CORS contains Cross-Origin Resource Sharing configuration for the
	// management console.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Use ["*"] to allow all origins.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "PUT", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// EndpointConfig contains configuration for a single upstream endpoint.
type EndpointConfig struct {
	// Name is the endpoint identifier, unique within a client type.
	Name string `yaml:"name"`

	// ClientType is the protocol family of clients this endpoint serves.
	// Options: "claude", "gemini", "codex"
	ClientType string `yaml:"client_type"`

	// APIUrl is the base URL of the upstream provider API.
	APIUrl string `yaml:"api_url"`

	// APIKey is the authentication key for the upstream.
	// This should typically be loaded from an environment variable.
	APIKey string `yaml:"api_key"`

	// Transformer selects the provider wire protocol used to talk to the
	// upstream. Options: "anthropic", "gemini", "openai".
	// Default: the native transformer for the client type.
	Transformer string `yaml:"transformer"`

	// Model is an optional model override forwarded to the upstream.
	Model string `yaml:"model"`

	// Enabled controls whether the endpoint participates in routing.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Priority orders endpoints within a client type. Lower values are
	// preferred.
	// Default: 100
	Priority int `yaml:"priority"`

	// Tags is an optional set of free-form labels.
	Tags []string `yaml:"tags"`

	// ModelPatterns restricts the endpoint to requests whose model matches
	// one of the glob patterns. An empty list matches any model.
	ModelPatterns []string `yaml:"model_patterns"`

	// CostPerInputToken is the upstream price in dollars per million input
	// tokens. Used by cost-priority routing.
	CostPerInputToken float64 `yaml:"cost_per_input_token"`

	// CostPerOutputToken is the upstream price in dollars per million output
	// tokens.
	CostPerOutputToken float64 `yaml:"cost_per_output_token"`

	// QuotaLimit is the token budget per reset cycle. Zero means unlimited.
	QuotaLimit int64 `yaml:"quota_limit"`

	// QuotaResetCycle controls when the consumed quota resets.
	// Options: "none", "daily", "weekly", "monthly"
	// Default: "none"
	QuotaResetCycle string `yaml:"quota_reset_cycle"`
}

// RoutingConfig contains configuration for the selection engine.
type RoutingConfig struct {
	// Strategy is the load-balance algorithm applied within a health class.
	// Options: "fastest", "weighted", "round_robin"
	// Default: "fastest"
	Strategy string `yaml:"strategy"`

	// CostPriority enables cost-ascending ordering as a tie-break after
	// priority.
	// Default: false
	CostPriority bool `yaml:"cost_priority"`

	// SessionAffinity contains sticky session configuration.
	SessionAffinity AffinityConfig `yaml:"session_affinity"`
}

// AffinityConfig contains session affinity (sticky routing) configuration.
type AffinityConfig struct {
	// Enabled controls whether session affinity is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// TTL is how long a session stays pinned to its endpoint.
	// Default: 30m
	TTL time.Duration `yaml:"ttl"`

	// MaxSessionsPerEndpoint caps how many live sessions may be pinned to
	// the same endpoint. Zero means unlimited.
	// Default: 0
	MaxSessionsPerEndpoint int `yaml:"max_sessions_per_endpoint"`

	// MaxEntries caps the total number of affinity entries before LRU
	// eviction. Zero means unlimited.
	// Default: 10000
	MaxEntries int `yaml:"max_entries"`
}

// MonitorConfig contains configuration for endpoint health tracking.
type MonitorConfig struct {
	// HealthWindow is the trailing window over which request outcomes are
	// retained for success-rate and error latching.
	// Default: 5m
	HealthWindow time.Duration `yaml:"health_window"`

	// ThroughputWindow is the trailing window for requests/min and
	// tokens/min aggregates.
	// Default: 60s
	ThroughputWindow time.Duration `yaml:"throughput_window"`

	// ErrorRateThreshold is the success-rate percentage below which an
	// endpoint is reported as "error".
	// Default: 80
	ErrorRateThreshold float64 `yaml:"error_rate_threshold"`

	// WarningRateThreshold is the success-rate percentage below which an
	// endpoint is reported as "warning".
	// Default: 95
	WarningRateThreshold float64 `yaml:"warning_rate_threshold"`

	// ProbeTimeout is the maximum duration for a single synthetic health
	// probe.
	// Default: 10s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// RecentHistorySize is the capacity of the recent-requests ring buffer.
	// Default: 10
	RecentHistorySize int `yaml:"recent_history_size"`
}

// OptimizerConfig contains configuration for the batch optimizer.
type OptimizerConfig struct {
	// Concurrency is the maximum number of probes in flight during an
	// optimization run.
	// Default: 4
	Concurrency int `yaml:"concurrency"`

	// ProbeTimeout is the per-probe timeout during optimization. Falls back
	// to Monitor.ProbeTimeout when zero.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// RateLimitConfig contains configuration for the per-endpoint rate limiter.
type RateLimitConfig struct {
	// Enabled controls whether the selector consults the rate limiter.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RequestsPerMinute is the sustained per-endpoint request rate.
	// Default: 600
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst is the maximum burst size. Defaults to RequestsPerMinute/10
	// when zero.
	Burst int `yaml:"burst"`
}

// StorageConfig contains configuration for quota usage persistence.
type StorageConfig struct {
	// Backend selects the persistence backend.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// FlushInterval is how often quota usage is flushed to the backend.
	// Default: 30s
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// SQLiteConfig contains SQLite backend configuration.
type SQLiteConfig struct {
	// Path is the SQLite database file path.
	// Default: "data/atlas.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// RedactSecrets enables redaction of API keys and bearer tokens in log
	// attributes.
	// Default: true
	RedactSecrets *bool `yaml:"redact_secrets"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "atlas"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	// Default: "engine"
	Subsystem string `yaml:"subsystem"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// RequestDurationBuckets overrides the request duration histogram
	// buckets (seconds).
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// ReloadConfig contains live configuration reload settings.
type ReloadConfig struct {
	// Enabled controls whether the configuration file is watched for
	// changes.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Debounce is the settle time after a file change before reloading.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`
}

// IsEnabled reports whether the endpoint is enabled, applying the default.
func (e *EndpointConfig) IsEnabled() bool {
	if e.Enabled == nil {
		return true
	}
	return *e.Enabled
}
