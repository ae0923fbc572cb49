package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention ATLAS_SECTION_FIELD (e.g., ATLAS_SERVER_LISTEN_ADDRESS) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format ATLAS_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("ATLAS_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("ATLAS_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("ATLAS_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("ATLAS_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Routing overrides
	if val := os.Getenv("ATLAS_ROUTING_STRATEGY"); val != "" {
		cfg.Routing.Strategy = val
	}
	if val := os.Getenv("ATLAS_ROUTING_COST_PRIORITY"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Routing.CostPriority = b
		}
	}
	if val := os.Getenv("ATLAS_ROUTING_SESSION_AFFINITY_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Routing.SessionAffinity.Enabled = b
		}
	}
	if val := os.Getenv("ATLAS_ROUTING_SESSION_AFFINITY_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Routing.SessionAffinity.TTL = d
		}
	}

	// Monitor overrides
	if val := os.Getenv("ATLAS_MONITOR_HEALTH_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Monitor.HealthWindow = d
		}
	}
	if val := os.Getenv("ATLAS_MONITOR_PROBE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Monitor.ProbeTimeout = d
		}
	}

	// Optimizer overrides
	if val := os.Getenv("ATLAS_OPTIMIZER_CONCURRENCY"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Optimizer.Concurrency = i
		}
	}
	if val := os.Getenv("ATLAS_OPTIMIZER_PROBE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Optimizer.ProbeTimeout = d
		}
	}

	// Rate limit overrides
	if val := os.Getenv("ATLAS_RATE_LIMIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.RateLimit.Enabled = b
		}
	}
	if val := os.Getenv("ATLAS_RATE_LIMIT_REQUESTS_PER_MINUTE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.RateLimit.RequestsPerMinute = i
		}
	}

	// Storage overrides
	if val := os.Getenv("ATLAS_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("ATLAS_STORAGE_SQLITE_PATH"); val != "" {
		cfg.Storage.SQLite.Path = val
	}

	// Telemetry overrides
	if val := os.Getenv("ATLAS_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("ATLAS_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("ATLAS_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("ATLAS_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}

	// Per-endpoint API key overrides: ATLAS_ENDPOINTS_<NAME>_API_KEY where
	// NAME is the uppercased endpoint name with dashes replaced by
	// underscores.
	for i := range cfg.Endpoints {
		ep := &cfg.Endpoints[i]
		envName := "ATLAS_ENDPOINTS_" + envKey(ep.Name) + "_API_KEY"
		if val := os.Getenv(envName); val != "" {
			ep.APIKey = val
		}
	}
}

// envKey converts an endpoint name to its environment variable segment.
func envKey(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
