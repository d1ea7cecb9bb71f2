// Package config provides configuration management for docguard.
//
// Configuration is loaded from a YAML file, filled with defaults, overridden
// from the environment and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("docguard.yaml")
//
// An empty path skips the file and starts from defaults.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention DOCGUARD_SECTION_FIELD:
//
//   - DOCGUARD_STORAGE_BACKEND overrides storage.backend
//   - DOCGUARD_AUDIT_SQLITE_PATH overrides audit.sqlite.path
//   - DOCGUARD_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Validation
//
// Validate collects every field error and returns them together in a
// ValidationError.
package config
