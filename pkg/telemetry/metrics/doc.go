// Package metrics provides Prometheus metrics for the review pipeline.
//
// # Metrics Categories
//
//   - Run Metrics: runs started, runs reaching each status, run duration
//   - Stage Metrics: stage executions, failures, durations, detected entities
//   - HITL Metrics: items enqueued, decisions, pending queue depth and age
//   - Ledger Metrics: audit append failures, exports, policy reloads
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordStage("extract", 12*time.Millisecond, nil)
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Every recording method is safe to call on a nil *Collector, so components
// can be built without metrics.
package metrics
