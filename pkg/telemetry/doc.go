// Package telemetry groups the observability packages of docguard.
//
// # Components
//
//   - logging: slog construction, run-scoped context attributes and PII
//     redaction of log output
//   - metrics: Prometheus collectors for runs, stages, detections, the HITL
//     queue, audit writes and policy reloads
//   - tracing: OpenTelemetry spans for run advances and stage executions
//   - health: liveness and readiness endpoints served next to /metrics
//
// # PII Protection
//
// Log output is redacted with the same detector registry the extractor
// uses. Detected values are replaced by their type token and values under
// sensitive keys are dropped:
//
//   - "contact jane@example.com" → "contact [EMAIL]"
//   - "ssn" attribute → "[REDACTED]"
//
// Redaction is on by default and controlled by
// telemetry.logging.redact_pii.
package telemetry
