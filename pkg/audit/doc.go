// Package audit provides the append-only audit ledger of the review
// pipeline.
//
// Every run transition, stage completion, HITL enqueue and decision, and
// export is recorded once through Ledger.Record. Records are appended to a
// Sink in the order they were recorded; the sink assigns each entry a dense
// per-run sequence number and chains it to its predecessor with a SHA-256
// hash, so Verify can detect gaps, reordering and tampering. Replay rebuilds
// a run's stage outputs, decisions and status history from its entries
// alone.
//
// Sinks expose no update or delete operation.
package audit
