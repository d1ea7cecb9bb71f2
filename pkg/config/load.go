package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path,
// applies defaults and validates it. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies DOCGUARD_*
// environment overrides, which take precedence over the file.
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

func applyEnvOverrides(cfg *Config) {
	setString("DOCGUARD_PIPELINE_WORKER_ID", &cfg.Pipeline.WorkerID)
	setDuration("DOCGUARD_PIPELINE_LEASE_TTL", &cfg.Pipeline.LeaseTTL)
	setInt("DOCGUARD_PIPELINE_MAX_PARALLEL_RUNS", &cfg.Pipeline.MaxParallelRuns)
	setBool("DOCGUARD_PIPELINE_EXTERNAL_SHARING", &cfg.Pipeline.ExternalSharing)

	setString("DOCGUARD_STORAGE_BACKEND", &cfg.Storage.Backend)
	setString("DOCGUARD_STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	setDuration("DOCGUARD_STORAGE_SQLITE_BUSY_TIMEOUT", &cfg.Storage.SQLite.BusyTimeout)

	setString("DOCGUARD_AUDIT_BACKEND", &cfg.Audit.Backend)
	setString("DOCGUARD_AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	setDuration("DOCGUARD_AUDIT_SQLITE_BUSY_TIMEOUT", &cfg.Audit.SQLite.BusyTimeout)

	setString("DOCGUARD_POLICY_DIRECTORY", &cfg.Policy.Directory)
	setString("DOCGUARD_POLICY_DEFAULT_SET_ID", &cfg.Policy.DefaultSetID)
	setBool("DOCGUARD_POLICY_WATCH", &cfg.Policy.Watch)

	setString("DOCGUARD_DOCUMENTS_DIRECTORY", &cfg.Documents.Directory)

	setString("DOCGUARD_HITL_MONITOR_SCHEDULE", &cfg.HITL.MonitorSchedule)
	setDuration("DOCGUARD_HITL_OVERDUE_AFTER", &cfg.HITL.OverdueAfter)

	setString("DOCGUARD_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("DOCGUARD_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	if val := os.Getenv("DOCGUARD_TELEMETRY_LOGGING_REDACT_PII"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Logging.RedactPII = &b
		}
	}
	setBool("DOCGUARD_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	setString("DOCGUARD_TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	setString("DOCGUARD_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	setBool("DOCGUARD_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	setString("DOCGUARD_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
}

func setString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
