// Package logging builds the structured loggers used across docguard.
//
// New returns a *slog.Logger whose handler
//   - appends run_id, stage, hitl_id and actor carried in the context
//     (see WithRunID, WithStage, WithHITLID, WithActor), and
//   - when RedactPII is set, generalizes PII found in string attributes and
//     messages using the detection registry, so raw entity values never reach
//     log output.
//
// Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	ctx = logging.WithRunID(ctx, run.RunID)
//	logger.InfoContext(ctx, "stage completed", "stage", "extract")
package logging
