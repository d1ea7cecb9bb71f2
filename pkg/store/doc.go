// Package store persists runs and HITL batches.
//
// Both record types are stored whole, as JSON, next to an integer version.
// Updates are compare-and-swap on that version: an update carrying a stale
// version fails with a *model.ConflictError and leaves the stored record
// unchanged. This gives atomic per-record read-modify-write across goroutines
// and, with the SQLite backend, across processes sharing one database file.
package store
