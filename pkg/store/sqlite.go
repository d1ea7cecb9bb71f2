package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/docguard/pkg/model"
)

const sqliteBackend = "sqlite"

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the database file.
	Path string

	// BusyTimeout is how long to wait for locks held by other connections
	// or processes. Default: 5 seconds.
	BusyTimeout time.Duration

	// CheckpointInterval is how often the WAL is checkpointed.
	// Default: 5 minutes. Negative disables checkpointing.
	CheckpointInterval time.Duration
}

// SQLiteStore is a Store backed by a SQLite database using WAL mode.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSQLiteStore opens (creating if needed) a SQLite store.
func NewSQLiteStore(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewStorageError(sqliteBackend, "open", err)
	}
	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store.sqlite"),
		done:   make(chan struct{}),
	}

	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, NewStorageError(sqliteBackend, "init_schema", err)
	}

	if cfg.CheckpointInterval > 0 {
		s.wg.Add(1)
		go s.checkpointLoop(cfg.CheckpointInterval)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`,
		schemaVersion, time.Now().Unix())
	return err
}

func (s *SQLiteStore) checkpointLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
				s.logger.Warn("wal checkpoint failed", "error", err)
			}
		case <-s.done:
			return
		}
	}
}

// CreateRun implements RunStore.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	stored := run.Clone()
	stored.Version = 1
	data, err := json.Marshal(stored)
	if err != nil {
		return NewStorageError(sqliteBackend, "create_run", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, document_id, status, version, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO NOTHING`,
		stored.RunID, stored.DocumentID, string(stored.Status), stored.Version, string(data),
		stored.CreatedAt.UnixNano(), stored.UpdatedAt.UnixNano())
	if err != nil {
		return NewStorageError(sqliteBackend, "create_run", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return NewStorageError(sqliteBackend, "create_run", err)
	} else if n == 0 {
		return model.NewConflictError("run", run.RunID, "already exists")
	}

	run.Version = 1
	return nil
}

// GetRun implements RunStore.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, runNotFound(runID)
	}
	if err != nil {
		return nil, NewStorageError(sqliteBackend, "get_run", err)
	}
	return decodeRun(data)
}

// UpdateRun implements RunStore.
func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.Run) error {
	next := run.Clone()
	next.Version = run.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return NewStorageError(sqliteBackend, "update_run", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, version = ?, data = ?, updated_at = ?
		WHERE run_id = ? AND version = ?`,
		string(next.Status), next.Version, string(data), next.UpdatedAt.UnixNano(),
		run.RunID, run.Version)
	if err != nil {
		return NewStorageError(sqliteBackend, "update_run", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewStorageError(sqliteBackend, "update_run", err)
	}
	if n == 0 {
		return s.versionMismatch(ctx, "runs", "run_id", "run", run.RunID, run.Version)
	}

	run.Version = next.Version
	return nil
}

// ListRuns implements RunStore.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*model.Run, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.DocumentID != "" {
		where = append(where, "document_id = ?")
		args = append(args, filter.DocumentID)
	}

	query := "SELECT data FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, run_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError(sqliteBackend, "list_runs", err)
	}
	defer rows.Close()

	var out []*model.Run
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, NewStorageError(sqliteBackend, "list_runs", err)
		}
		run, err := decodeRun(data)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(sqliteBackend, "list_runs", err)
	}
	return out, nil
}

// CreateBatch implements HITLStore.
func (s *SQLiteStore) CreateBatch(ctx context.Context, batch *model.HITLBatch) error {
	stored := *batch
	stored.Version = 1
	data, err := json.Marshal(&stored)
	if err != nil {
		return NewStorageError(sqliteBackend, "create_batch", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO hitl_batches (hitl_id, run_id, resolved, version, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (hitl_id) DO NOTHING`,
		stored.HITLID, stored.RunID, boolInt(stored.ResolvedAt != nil), stored.Version, string(data),
		stored.CreatedAt.UnixNano())
	if err != nil {
		return NewStorageError(sqliteBackend, "create_batch", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return NewStorageError(sqliteBackend, "create_batch", err)
	} else if n == 0 {
		return model.NewConflictError("hitl_batch", batch.HITLID, "already exists")
	}

	batch.Version = 1
	return nil
}

// GetBatch implements HITLStore.
func (s *SQLiteStore) GetBatch(ctx context.Context, hitlID string) (*model.HITLBatch, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM hitl_batches WHERE hitl_id = ?`, hitlID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, batchNotFound(hitlID)
	}
	if err != nil {
		return nil, NewStorageError(sqliteBackend, "get_batch", err)
	}
	return decodeBatch(data)
}

// UpdateBatch implements HITLStore.
func (s *SQLiteStore) UpdateBatch(ctx context.Context, batch *model.HITLBatch) error {
	next := *batch
	next.Version = batch.Version + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return NewStorageError(sqliteBackend, "update_batch", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE hitl_batches SET resolved = ?, version = ?, data = ?
		WHERE hitl_id = ? AND version = ?`,
		boolInt(next.ResolvedAt != nil), next.Version, string(data),
		batch.HITLID, batch.Version)
	if err != nil {
		return NewStorageError(sqliteBackend, "update_batch", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewStorageError(sqliteBackend, "update_batch", err)
	}
	if n == 0 {
		return s.versionMismatch(ctx, "hitl_batches", "hitl_id", "hitl_batch", batch.HITLID, batch.Version)
	}

	batch.Version = next.Version
	return nil
}

// ListPendingBatches implements HITLStore.
func (s *SQLiteStore) ListPendingBatches(ctx context.Context) ([]*model.HITLBatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM hitl_batches WHERE resolved = 0 ORDER BY created_at, hitl_id`)
	if err != nil {
		return nil, NewStorageError(sqliteBackend, "list_pending", err)
	}
	defer rows.Close()

	var out []*model.HITLBatch
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, NewStorageError(sqliteBackend, "list_pending", err)
		}
		b, err := decodeBatch(data)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(sqliteBackend, "list_pending", err)
	}
	return out, nil
}

// Close stops the checkpoint loop and closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// versionMismatch distinguishes a missing record from a stale version after
// an update matched no rows.
func (s *SQLiteStore) versionMismatch(ctx context.Context, table, key, resource, id string, have int64) error {
	var stored int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT version FROM %s WHERE %s = ?", table, key), id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		if resource == "run" {
			return runNotFound(id)
		}
		return batchNotFound(id)
	}
	if err != nil {
		return NewStorageError(sqliteBackend, "version_check", err)
	}
	return staleVersion(resource, id, have, stored)
}

func decodeRun(data string) (*model.Run, error) {
	var run model.Run
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, NewStorageError(sqliteBackend, "decode_run", err)
	}
	return &run, nil
}

func decodeBatch(data string) (*model.HITLBatch, error) {
	var b model.HITLBatch
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, NewStorageError(sqliteBackend, "decode_batch", err)
	}
	return &b, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
