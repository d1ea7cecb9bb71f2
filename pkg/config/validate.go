package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "audit.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the whole configuration and returns every problem found.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validatePipeline(&cfg.Pipeline)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateDocuments(&cfg.Documents)...)
	errs = append(errs, validateHITL(&cfg.HITL)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validatePipeline(cfg *PipelineConfig) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(cfg.WorkerID) == "" {
		errs = append(errs, FieldError{Field: "pipeline.worker_id", Message: "worker id is required"})
	}
	if cfg.LeaseTTL <= 0 {
		errs = append(errs, FieldError{Field: "pipeline.lease_ttl", Message: "lease ttl must be positive"})
	}
	if cfg.MaxParallelRuns < 1 {
		errs = append(errs, FieldError{Field: "pipeline.max_parallel_runs", Message: "must be at least 1"})
	}
	return errs
}

func validateBackend(field, backend, path string) []FieldError {
	var errs []FieldError
	switch backend {
	case "memory":
	case "sqlite":
		if path == "" {
			errs = append(errs, FieldError{Field: field + ".sqlite.path", Message: "path is required for the sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   field + ".backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or sqlite)", backend),
		})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	errs := validateBackend("storage", cfg.Backend, cfg.SQLite.Path)
	if cfg.SQLite.BusyTimeout < 0 {
		errs = append(errs, FieldError{Field: "storage.sqlite.busy_timeout", Message: "busy timeout must be non-negative"})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	errs := validateBackend("audit", cfg.Backend, cfg.SQLite.Path)
	if cfg.SQLite.BusyTimeout < 0 {
		errs = append(errs, FieldError{Field: "audit.sqlite.busy_timeout", Message: "busy timeout must be non-negative"})
	}
	if cfg.SQLite.MaxOpenConns < 1 {
		errs = append(errs, FieldError{Field: "audit.sqlite.max_open_conns", Message: "must be at least 1"})
	}
	if cfg.AsyncBuffer < 1 {
		errs = append(errs, FieldError{Field: "audit.async_buffer", Message: "must be at least 1"})
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "audit.write_timeout", Message: "write timeout must be positive"})
	}
	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError
	if cfg.DefaultSetID == "" {
		errs = append(errs, FieldError{Field: "policy.default_set_id", Message: "default set id is required"})
	}
	if cfg.Watch && cfg.Directory == "" {
		errs = append(errs, FieldError{Field: "policy.watch", Message: "watch requires policy.directory"})
	}
	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{Field: "policy.debounce_interval", Message: "must be non-negative"})
	}
	return errs
}

func validateDocuments(cfg *DocumentsConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxFileSize < 1 {
		errs = append(errs, FieldError{Field: "documents.max_file_size", Message: "must be positive"})
	}
	return errs
}

func validateHITL(cfg *HITLConfig) []FieldError {
	var errs []FieldError
	if _, err := cron.ParseStandard(cfg.MonitorSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "hitl.monitor_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.MonitorSchedule, err),
		})
	}
	if cfg.OverdueAfter <= 0 {
		errs = append(errs, FieldError{Field: "hitl.overdue_after", Message: "must be positive"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.ListenAddress); err != nil {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: fmt.Sprintf("invalid address %q: %v", cfg.Metrics.ListenAddress, err),
			})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
		}
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Exporter != "otlp" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.exporter",
				Message: fmt.Sprintf("unsupported exporter %q (supported: otlp)", cfg.Tracing.Exporter),
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required"})
		}
		if cfg.Tracing.SampleRatio <= 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("must be within (0,1], got %v", cfg.Tracing.SampleRatio),
			})
		}
	}

	return errs
}
