package config

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Valid enumeration values.
var (
	validClientTypes  = map[string]bool{"claude": true, "gemini": true, "codex": true}
	validTransformers = map[string]bool{"anthropic": true, "gemini": true, "openai": true}
	validStrategies   = map[string]bool{"fastest": true, "weighted": true, "round_robin": true}
	validQuotaCycles  = map[string]bool{"none": true, "daily": true, "weekly": true, "monthly": true}
	validBackends     = map[string]bool{"memory": true, "sqlite": true}
	validLogLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats   = map[string]bool{"json": true, "text": true}
)

// Validate checks the configuration for errors and returns a descriptive
// error for the first problem found. Defaults should be applied before
// validation.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateEndpoints(cfg.Endpoints); err != nil {
		return err
	}
	if err := validateRouting(&cfg.Routing); err != nil {
		return err
	}
	if err := validateMonitor(&cfg.Monitor); err != nil {
		return err
	}
	if cfg.Optimizer.Concurrency < 1 {
		return fmt.Errorf("optimizer: concurrency must be at least 1, got %d", cfg.Optimizer.Concurrency)
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("rate_limit: requests_per_minute must be at least 1, got %d", cfg.RateLimit.RequestsPerMinute)
	}
	if !validBackends[cfg.Storage.Backend] {
		return fmt.Errorf("storage: unknown backend %q (valid: memory, sqlite)", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.SQLite.Path == "" {
		return fmt.Errorf("storage: sqlite backend requires a database path")
	}
	if !validLogLevels[cfg.Telemetry.Logging.Level] {
		return fmt.Errorf("telemetry: unknown log level %q (valid: debug, info, warn, error)", cfg.Telemetry.Logging.Level)
	}
	if !validLogFormats[cfg.Telemetry.Logging.Format] {
		return fmt.Errorf("telemetry: unknown log format %q (valid: json, text)", cfg.Telemetry.Logging.Format)
	}
	return nil
}

// validateServer checks the management server configuration.
func validateServer(cfg *ServerConfig) error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("server: listen_address must not be empty")
	}
	if !strings.Contains(cfg.ListenAddress, ":") {
		return fmt.Errorf("server: listen_address %q must be in host:port format", cfg.ListenAddress)
	}
	return nil
}

// validateEndpoints checks all endpoint definitions, including name
// uniqueness within each client type.
func validateEndpoints(endpoints []EndpointConfig) error {
	seen := make(map[string]bool, len(endpoints))

	for i := range endpoints {
		ep := &endpoints[i]

		if ep.Name == "" {
			return fmt.Errorf("endpoints[%d]: name must not be empty", i)
		}
		if !validClientTypes[ep.ClientType] {
			return fmt.Errorf("endpoint %q: unknown client_type %q (valid: claude, gemini, codex)", ep.Name, ep.ClientType)
		}

		key := ep.ClientType + "/" + ep.Name
		if seen[key] {
			return fmt.Errorf("endpoint %q: duplicate name within client type %q", ep.Name, ep.ClientType)
		}
		seen[key] = true

		if ep.APIUrl == "" {
			return fmt.Errorf("endpoint %q: api_url must not be empty", ep.Name)
		}
		u, err := url.Parse(ep.APIUrl)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("endpoint %q: api_url %q is not a valid URL", ep.Name, ep.APIUrl)
		}
		if !validTransformers[ep.Transformer] {
			return fmt.Errorf("endpoint %q: unknown transformer %q (valid: anthropic, gemini, openai)", ep.Name, ep.Transformer)
		}
		if ep.Priority < 0 {
			return fmt.Errorf("endpoint %q: priority must not be negative, got %d", ep.Name, ep.Priority)
		}
		if ep.CostPerInputToken < 0 || ep.CostPerOutputToken < 0 {
			return fmt.Errorf("endpoint %q: token costs must not be negative", ep.Name)
		}
		if ep.QuotaLimit < 0 {
			return fmt.Errorf("endpoint %q: quota_limit must not be negative, got %d", ep.Name, ep.QuotaLimit)
		}
		if !validQuotaCycles[ep.QuotaResetCycle] {
			return fmt.Errorf("endpoint %q: unknown quota_reset_cycle %q (valid: none, daily, weekly, monthly)", ep.Name, ep.QuotaResetCycle)
		}
		if ep.QuotaLimit > 0 && ep.QuotaResetCycle == "none" {
			return fmt.Errorf("endpoint %q: quota_limit requires a quota_reset_cycle", ep.Name)
		}

		for _, pattern := range ep.ModelPatterns {
			if _, err := path.Match(pattern, "probe"); err != nil {
				return fmt.Errorf("endpoint %q: invalid model pattern %q: %w", ep.Name, pattern, err)
			}
		}
	}

	return nil
}

// validateRouting checks the routing configuration.
func validateRouting(cfg *RoutingConfig) error {
	if !validStrategies[cfg.Strategy] {
		return fmt.Errorf("routing: unknown strategy %q (valid: fastest, weighted, round_robin)", cfg.Strategy)
	}
	if cfg.SessionAffinity.Enabled && cfg.SessionAffinity.TTL <= 0 {
		return fmt.Errorf("routing: session_affinity ttl must be positive when enabled")
	}
	if cfg.SessionAffinity.MaxSessionsPerEndpoint < 0 {
		return fmt.Errorf("routing: max_sessions_per_endpoint must not be negative")
	}
	return nil
}

// validateMonitor checks the health monitor configuration.
func validateMonitor(cfg *MonitorConfig) error {
	if cfg.HealthWindow <= 0 {
		return fmt.Errorf("monitor: health_window must be positive")
	}
	if cfg.ThroughputWindow <= 0 {
		return fmt.Errorf("monitor: throughput_window must be positive")
	}
	if cfg.ErrorRateThreshold <= 0 || cfg.ErrorRateThreshold > 100 {
		return fmt.Errorf("monitor: error_rate_threshold must be in (0, 100], got %g", cfg.ErrorRateThreshold)
	}
	if cfg.WarningRateThreshold <= 0 || cfg.WarningRateThreshold > 100 {
		return fmt.Errorf("monitor: warning_rate_threshold must be in (0, 100], got %g", cfg.WarningRateThreshold)
	}
	if cfg.ErrorRateThreshold > cfg.WarningRateThreshold {
		return fmt.Errorf("monitor: error_rate_threshold (%g) must not exceed warning_rate_threshold (%g)",
			cfg.ErrorRateThreshold, cfg.WarningRateThreshold)
	}
	if cfg.ProbeTimeout <= 0 {
		return fmt.Errorf("monitor: probe_timeout must be positive")
	}
	if cfg.RecentHistorySize < 1 {
		return fmt.Errorf("monitor: recent_history_size must be at least 1")
	}
	return nil
}
