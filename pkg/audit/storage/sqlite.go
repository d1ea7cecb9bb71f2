package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/docguard/pkg/audit"
	"mercator-hq/docguard/pkg/model"
)

// SQLiteConfig contains configuration for the SQLite sink.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// BusyTimeout is how long to wait when another process holds the
	// write lock.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 4,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteSink implements audit.Sink on SQLite. Appends run in IMMEDIATE
// transactions so sequence assignment is serialized across processes
// sharing the file.
type SQLiteSink struct {
	db     *sql.DB
	config *SQLiteConfig
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSQLiteSink opens (creating if needed) the ledger database.
func NewSQLiteSink(config *SQLiteConfig, logger *slog.Logger) (*SQLiteSink, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = DefaultSQLiteConfig().MaxOpenConns
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = DefaultSQLiteConfig().BusyTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.storage.sqlite")

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
		config.Path, config.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, audit.NewStorageError("sqlite", "create_schema", err)
	}

	logger.Info("SQLite audit sink initialized",
		"path", config.Path,
		"busy_timeout_ms", config.BusyTimeout.Milliseconds(),
	)

	return &SQLiteSink{db: db, config: config, logger: logger}, nil
}

// Append seals and inserts the entry in one transaction.
func (s *SQLiteSink) Append(ctx context.Context, entry *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return audit.NewStorageError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	var prev *model.AuditEntry
	var seq int64
	var hash string
	err = tx.QueryRowContext(ctx,
		`SELECT sequence, hash FROM audit_entries WHERE run_id = ? ORDER BY sequence DESC LIMIT 1`,
		entry.RunID,
	).Scan(&seq, &hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return audit.NewStorageError("sqlite", "last_entry", err)
	default:
		prev = &model.AuditEntry{Sequence: seq, Hash: hash}
	}

	audit.Seal(entry, prev)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_entries (entry_id, run_id, sequence, timestamp_ns, action, actor, details, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EntryID, entry.RunID, entry.Sequence, entry.Timestamp.UnixNano(),
		string(entry.Action), entry.Actor, string(entry.Details), entry.PrevHash, entry.Hash,
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "insert", err)
	}

	if err := tx.Commit(); err != nil {
		return audit.NewStorageError("sqlite", "commit", err)
	}
	return nil
}

// Query returns matching entries.
func (s *SQLiteSink) Query(ctx context.Context, filter audit.Filter) ([]*model.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if len(filter.Actions) > 0 {
		marks := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			marks[i] = "?"
			args = append(args, string(a))
		}
		where = append(where, "action IN ("+strings.Join(marks, ", ")+")")
	}
	if !filter.Since.IsZero() {
		where = append(where, "timestamp_ns >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		where = append(where, "timestamp_ns < ?")
		args = append(args, filter.Until.UnixNano())
	}

	q := `SELECT entry_id, run_id, sequence, timestamp_ns, action, actor, details, prev_hash, hash FROM audit_entries`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.RunID != "" {
		q += " ORDER BY sequence ASC"
	} else {
		q += " ORDER BY timestamp_ns ASC, run_id ASC, sequence ASC"
	}
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	results := []*model.AuditEntry{}
	for rows.Next() {
		var (
			e       model.AuditEntry
			ts      int64
			action  string
			details string
		)
		if err := rows.Scan(&e.EntryID, &e.RunID, &e.Sequence, &ts, &action, &e.Actor, &details, &e.PrevHash, &e.Hash); err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Action = model.AuditAction(action)
		e.Details = []byte(details)
		results = append(results, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "iterate", err)
	}
	return results, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite audit sink closed")
	return nil
}
