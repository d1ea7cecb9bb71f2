// Docguard reviews documents through a classify, extract, review and draft
// pipeline, suspending for human decisions where policy requires them.
//
// Every run is recorded in an append-only, hash-chained audit ledger.
//
// Usage:
//
//	# Review every document in the configured directory
//	docguard run --all
//
//	# Review one document with a named policy set
//	docguard run contract.md --policy-set strict
//
//	# Show the human review queue
//	docguard hitl list
//
//	# Approve every item of a batch
//	docguard hitl respond <hitl-id> --approve-all --rationale "checked"
//
//	# Export the final document of a completed run
//	docguard export final <run-id> --output contract.final.md
//
//	# Verify and export a run's audit trail
//	docguard audit query <run-id> --verify --format csv
//
//	# Serve metrics, watch policies and monitor the HITL queue
//	docguard monitor
package main

func main() {
	Execute()
}
