package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8181"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600

	// Endpoint defaults
	DefaultPriority        = 100
	DefaultQuotaResetCycle = "none"

	// Routing defaults
	DefaultStrategy       = "fastest"
	DefaultAffinityTTL    = 30 * time.Minute
	DefaultAffinityMaxLen = 10000

	// Monitor defaults
	DefaultHealthWindow         = 5 * time.Minute
	DefaultThroughputWindow     = 60 * time.Second
	DefaultErrorRateThreshold   = 80.0
	DefaultWarningRateThreshold = 95.0
	DefaultProbeTimeout         = 10 * time.Second
	DefaultRecentHistorySize    = 10

	// Optimizer defaults
	DefaultOptimizerConcurrency = 4

	// Rate limit defaults
	DefaultRequestsPerMinute = 600

	// Storage defaults
	DefaultStorageBackend    = "memory"
	DefaultSQLitePath        = "data/atlas.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultFlushInterval     = 30 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
	DefaultNamespace      = "atlas"
	DefaultSubsystem      = "engine"

	// Reload defaults
	DefaultReloadDebounce = 500 * time.Millisecond
)

// NativeTransformers maps each client type to its native wire protocol.
var NativeTransformers = map[string]string{
	"claude": "anthropic",
	"gemini": "gemini",
	"codex":  "openai",
}

// ApplyDefaults fills in default values for any unset configuration fields.
// It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// CORS defaults
	if cfg.Server.CORS.AllowedOrigins == nil {
		cfg.Server.CORS.Enabled = DefaultCORSEnabled
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.CORS.AllowedMethods == nil {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if cfg.Server.CORS.AllowedHeaders == nil {
		cfg.Server.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Endpoint defaults
	for i := range cfg.Endpoints {
		ep := &cfg.Endpoints[i]
		if ep.Priority == 0 {
			ep.Priority = DefaultPriority
		}
		if ep.QuotaResetCycle == "" {
			ep.QuotaResetCycle = DefaultQuotaResetCycle
		}
		if ep.Transformer == "" {
			ep.Transformer = NativeTransformers[ep.ClientType]
		}
	}

	// Routing defaults
	if cfg.Routing.Strategy == "" {
		cfg.Routing.Strategy = DefaultStrategy
	}
	if cfg.Routing.SessionAffinity.TTL == 0 {
		cfg.Routing.SessionAffinity.TTL = DefaultAffinityTTL
	}
	if cfg.Routing.SessionAffinity.MaxEntries == 0 {
		cfg.Routing.SessionAffinity.MaxEntries = DefaultAffinityMaxLen
	}

	// Monitor defaults
	if cfg.Monitor.HealthWindow == 0 {
		cfg.Monitor.HealthWindow = DefaultHealthWindow
	}
	if cfg.Monitor.ThroughputWindow == 0 {
		cfg.Monitor.ThroughputWindow = DefaultThroughputWindow
	}
	if cfg.Monitor.ErrorRateThreshold == 0 {
		cfg.Monitor.ErrorRateThreshold = DefaultErrorRateThreshold
	}
	if cfg.Monitor.WarningRateThreshold == 0 {
		cfg.Monitor.WarningRateThreshold = DefaultWarningRateThreshold
	}
	if cfg.Monitor.ProbeTimeout == 0 {
		cfg.Monitor.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Monitor.RecentHistorySize == 0 {
		cfg.Monitor.RecentHistorySize = DefaultRecentHistorySize
	}

	// Optimizer defaults
	if cfg.Optimizer.Concurrency == 0 {
		cfg.Optimizer.Concurrency = DefaultOptimizerConcurrency
	}
	if cfg.Optimizer.ProbeTimeout == 0 {
		cfg.Optimizer.ProbeTimeout = cfg.Monitor.ProbeTimeout
	}

	// Rate limit defaults
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = cfg.RateLimit.RequestsPerMinute / 10
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.FlushInterval == 0 {
		cfg.Storage.FlushInterval = DefaultFlushInterval
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
		cfg.Telemetry.Metrics.Namespace = DefaultNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultSubsystem
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}

	// Reload defaults
	if cfg.Reload.Debounce == 0 {
		cfg.Reload.Debounce = DefaultReloadDebounce
	}
}
