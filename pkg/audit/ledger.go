package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/docguard/pkg/model"
)

// Config contains configuration for the ledger.
type Config struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds a single sink append.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig() *Config {
	return &Config{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// request is either an entry to append or a flush barrier.
type request struct {
	entry   *model.AuditEntry
	barrier chan struct{}
}

// Ledger records audit entries asynchronously. Entries are appended in the
// order Record was called, by a single worker.
type Ledger struct {
	sink   Sink
	config *Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	closed   bool
	requests chan request
	wg       sync.WaitGroup

	// OnError, if set, is called for every append that fails.
	OnError func(entry *model.AuditEntry, err error)
}

// NewLedger creates a ledger writing to sink and starts its worker.
func NewLedger(sink Sink, config *Config, logger *slog.Logger) *Ledger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = DefaultConfig().AsyncBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Ledger{
		sink:     sink,
		config:   config,
		logger:   logger.With("component", "audit.ledger"),
		now:      func() time.Time { return time.Now().UTC() },
		requests: make(chan request, config.AsyncBuffer),
	}

	l.wg.Add(1)
	go l.worker()

	return l
}

// Record queues an entry for the run. It never fails from the caller's
// point of view: encoding and storage errors are logged. After Close the
// entry is appended synchronously.
func (l *Ledger) Record(ctx context.Context, runID string, action model.AuditAction, actor string, details any) {
	raw, err := json.Marshal(details)
	if err != nil {
		l.logger.Error("failed to encode audit details",
			"run_id", runID,
			"action", action,
			"error", err,
		)
		raw = json.RawMessage(`null`)
	}
	if actor == "" {
		actor = "system"
	}

	entry := &model.AuditEntry{
		EntryID:   uuid.New().String(),
		RunID:     runID,
		Timestamp: l.now(),
		Action:    action,
		Actor:     actor,
		Details:   raw,
	}

	if l.enqueue(request{entry: entry}) {
		return
	}
	l.write(entry)
}

// Flush blocks until every entry recorded before the call is appended.
func (l *Ledger) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !l.enqueue(request{barrier: barrier}) {
		return nil
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query flushes pending entries and returns the run's entries in sequence
// order.
func (l *Ledger) Query(ctx context.Context, runID string) ([]*model.AuditEntry, error) {
	if err := l.Flush(ctx); err != nil {
		return nil, err
	}
	return l.sink.Query(ctx, Filter{RunID: runID})
}

// Search flushes pending entries and runs an arbitrary filter.
func (l *Ledger) Search(ctx context.Context, filter Filter) ([]*model.AuditEntry, error) {
	if err := l.Flush(ctx); err != nil {
		return nil, err
	}
	return l.sink.Query(ctx, filter)
}

// Close drains the queue and stops the worker. It does not close the sink.
func (l *Ledger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.requests)
	l.mu.Unlock()

	l.logger.Info("closing audit ledger", "pending_count", len(l.requests))
	l.wg.Wait()
	return nil
}

func (l *Ledger) enqueue(req request) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return false
	}
	l.requests <- req
	return true
}

func (l *Ledger) worker() {
	defer l.wg.Done()
	for req := range l.requests {
		if req.barrier != nil {
			close(req.barrier)
			continue
		}
		l.write(req.entry)
	}
}

func (l *Ledger) write(entry *model.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()

	if err := l.sink.Append(ctx, entry); err != nil {
		l.logger.Error("failed to append audit entry",
			"run_id", entry.RunID,
			"action", entry.Action,
			"entry_id", entry.EntryID,
			"error", err,
		)
		if l.OnError != nil {
			l.OnError(entry, err)
		}
		return
	}

	l.logger.Debug("audit entry appended",
		"run_id", entry.RunID,
		"sequence", entry.Sequence,
		"action", entry.Action,
	)
}
