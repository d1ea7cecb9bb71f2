// Package pipeline drives documents through the review stages.
//
// The Orchestrator owns the run state machine:
//
//	pending -> running(classify) -> running(extract) -> [awaiting_hitl] ->
//	running(review) -> [awaiting_hitl] -> running(draft) -> [awaiting_hitl] ->
//	completed
//
// Any state may move to failed. A run is persisted after every stage and
// every transition is recorded in the audit ledger exactly once. Only one
// worker may advance a run at a time; ownership is a lease stored on the run
// and taken with a compare-and-swap update.
//
// The Gate validates human decisions for a suspended run, records them and
// resumes the run. The Service combines both with the read and export
// operations exposed to callers, and the Monitor periodically reports the
// HITL queue.
package pipeline
