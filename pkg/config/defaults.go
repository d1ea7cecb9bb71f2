package config

import (
	"fmt"
	"os"
	"time"
)

// Default values for configuration fields.
const (
	DefaultLeaseTTL        = 5 * time.Minute
	DefaultMaxParallelRuns = 4

	DefaultBackend                = "sqlite"
	DefaultStoreSQLitePath        = "data/runs.db"
	DefaultSQLiteBusyTimeout      = 5 * time.Second
	DefaultStoreCheckpointEvery   = 5 * time.Minute
	DefaultAuditSQLitePath        = "data/audit.db"
	DefaultAuditSQLiteMaxOpenConn = 4
	DefaultAuditAsyncBuffer       = 1000
	DefaultAuditWriteTimeout      = 5 * time.Second

	DefaultPolicySetID      = "default"
	DefaultPolicyDebounce   = 250 * time.Millisecond
	DefaultDocumentsDir     = "documents"
	DefaultDocumentMaxBytes = int64(10 * 1024 * 1024)

	DefaultHITLMonitorSchedule = "*/5 * * * *"
	DefaultHITLOverdueAfter    = 24 * time.Hour

	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsNamespace = "docguard"
	DefaultMetricsSubsystem = "pipeline"
	DefaultMetricsAddress   = "127.0.0.1:9090"
	DefaultMetricsPath      = "/metrics"

	DefaultTracingExporter    = "otlp"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingSampleRatio = 1.0
	DefaultTracingService     = "docguard"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Pipeline.WorkerID == "" {
		cfg.Pipeline.WorkerID = defaultWorkerID()
	}
	if cfg.Pipeline.LeaseTTL == 0 {
		cfg.Pipeline.LeaseTTL = DefaultLeaseTTL
	}
	if cfg.Pipeline.MaxParallelRuns == 0 {
		cfg.Pipeline.MaxParallelRuns = DefaultMaxParallelRuns
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultStoreSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.SQLite.CheckpointInterval == 0 {
		cfg.Storage.SQLite.CheckpointInterval = DefaultStoreCheckpointEvery
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Audit.SQLite.MaxOpenConns == 0 {
		cfg.Audit.SQLite.MaxOpenConns = DefaultAuditSQLiteMaxOpenConn
	}
	if cfg.Audit.AsyncBuffer == 0 {
		cfg.Audit.AsyncBuffer = DefaultAuditAsyncBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}

	if cfg.Policy.DefaultSetID == "" {
		cfg.Policy.DefaultSetID = DefaultPolicySetID
	}
	if cfg.Policy.DebounceInterval == 0 {
		cfg.Policy.DebounceInterval = DefaultPolicyDebounce
	}

	if cfg.Documents.Directory == "" {
		cfg.Documents.Directory = DefaultDocumentsDir
	}
	if cfg.Documents.MaxFileSize == 0 {
		cfg.Documents.MaxFileSize = DefaultDocumentMaxBytes
	}

	if cfg.HITL.MonitorSchedule == "" {
		cfg.HITL.MonitorSchedule = DefaultHITLMonitorSchedule
	}
	if cfg.HITL.OverdueAfter == 0 {
		cfg.HITL.OverdueAfter = DefaultHITLOverdueAfter
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}

	tr := &cfg.Telemetry.Tracing
	if tr.Exporter == "" {
		tr.Exporter = DefaultTracingExporter
	}
	if tr.Endpoint == "" {
		tr.Endpoint = DefaultTracingEndpoint
	}
	if tr.Timeout == 0 {
		tr.Timeout = DefaultTracingTimeout
	}
	if tr.SampleRatio == 0 {
		tr.SampleRatio = DefaultTracingSampleRatio
	}
	if tr.ServiceName == "" {
		tr.ServiceName = DefaultTracingService
	}
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "docguard"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
