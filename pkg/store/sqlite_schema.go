package store

// schemaVersion is bumped whenever Schema changes.
const schemaVersion = 1

// Schema creates the run and batch tables.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	version     INTEGER NOT NULL,
	data        TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document_id);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS hitl_batches (
	hitl_id    TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	resolved   INTEGER NOT NULL DEFAULT 0,
	version    INTEGER NOT NULL,
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batches_pending ON hitl_batches(resolved, created_at);

CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL
);
`
