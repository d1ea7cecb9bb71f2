package config

import "time"

// Config is the root configuration structure for docguard.
type Config struct {
	// Pipeline controls the orchestrator: worker identity, leases and
	// run parallelism.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Storage selects the run and HITL batch store.
	Storage StorageConfig `yaml:"storage"`

	// Audit selects the audit sink and tunes the async ledger.
	Audit AuditConfig `yaml:"audit"`

	// Policy locates policy set files.
	Policy PolicyConfig `yaml:"policy"`

	// Documents locates documents to review.
	Documents DocumentsConfig `yaml:"documents"`

	// HITL configures the pending-queue monitor.
	HITL HITLConfig `yaml:"hitl"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PipelineConfig contains orchestrator settings.
type PipelineConfig struct {
	// WorkerID identifies this process as a lease holder.
	// Default: hostname-pid
	WorkerID string `yaml:"worker_id"`

	// LeaseTTL is how long a run lease is held before another worker may
	// take it over.
	// Default: 5m
	LeaseTTL time.Duration `yaml:"lease_ttl"`

	// MaxParallelRuns bounds concurrently advanced runs in batch mode.
	// Default: 4
	MaxParallelRuns int `yaml:"max_parallel_runs"`

	// ExternalSharing is the default for runs that do not set it.
	ExternalSharing bool `yaml:"external_sharing"`
}

// StorageConfig selects the run store backend.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite StoreSQLiteConfig `yaml:"sqlite"`
}

// StoreSQLiteConfig configures the SQLite run store.
type StoreSQLiteConfig struct {
	// Default: "data/runs.db"
	Path string `yaml:"path"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// CheckpointInterval is the WAL checkpoint period. Negative disables.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// AuditConfig selects the audit sink backend.
type AuditConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite AuditSQLiteConfig `yaml:"sqlite"`

	// AsyncBuffer is the ledger queue size.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single append.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuditSQLiteConfig configures the SQLite audit sink.
type AuditSQLiteConfig struct {
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`
}

// PolicyConfig locates policy sets.
type PolicyConfig struct {
	// Directory holds *.yaml, *.yml and *.toml policy sets. Empty means
	// only the built-in default set is available.
	Directory string `yaml:"directory"`

	// DefaultSetID is used when a run names no policy set.
	// Default: "default"
	DefaultSetID string `yaml:"default_set_id"`

	// Watch reloads the directory on change.
	Watch bool `yaml:"watch"`

	// Default: 250ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// DocumentsConfig locates documents.
type DocumentsConfig struct {
	// Default: "documents"
	Directory string `yaml:"directory"`

	// Default: 10MB
	MaxFileSize int64 `yaml:"max_file_size"`
}

// HITLConfig configures the HITL monitor.
type HITLConfig struct {
	// MonitorSchedule is a cron expression for queue sweeps.
	// Default: "*/5 * * * *"
	MonitorSchedule string `yaml:"monitor_schedule"`

	// OverdueAfter marks pending items older than this as overdue in logs.
	// Default: 24h
	OverdueAfter time.Duration `yaml:"overdue_after"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is json or text.
	// Default: "json"
	Format string `yaml:"format"`

	// RedactPII generalizes detected PII in log attributes.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// RedactPIIEnabled reports the effective redact_pii setting.
func (c LoggingConfig) RedactPIIEnabled() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Default: "docguard"
	Namespace string `yaml:"namespace"`

	// Default: "pipeline"
	Subsystem string `yaml:"subsystem"`

	// ListenAddress serves the metrics endpoint in monitor mode.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing configuration. Every run
// and stage execution becomes a span when enabled.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is the span exporter. Only "otlp" (gRPC) is supported.
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// SampleRatio is the fraction of runs traced, in (0,1].
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Default: "docguard"
	ServiceName string `yaml:"service_name"`
}
