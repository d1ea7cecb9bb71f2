package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/store"
	"mercator-hq/docguard/pkg/telemetry/metrics"
)

// QueueStats summarizes the pending HITL queue at one point in time.
type QueueStats struct {
	Batches int
	Pending int
	Oldest  time.Duration
	Overdue []model.HITLItem
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Schedule is a standard cron expression. Empty disables scheduling.
	Schedule string

	// OverdueAfter is the age after which a pending item is reported.
	OverdueAfter time.Duration
}

// Monitor periodically inspects the HITL queue, exports its size as metrics
// and logs items that have waited too long.
type Monitor struct {
	store   store.HITLStore
	metrics *metrics.Collector
	config  MonitorConfig
	cron    *cron.Cron
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
}

// NewMonitor creates a monitor.
func NewMonitor(st store.HITLStore, collector *metrics.Collector, cfg MonitorConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:   st,
		metrics: collector,
		config:  cfg,
		cron:    cron.New(),
		logger:  logger.With("component", "pipeline.monitor"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Sweep inspects the queue once.
func (m *Monitor) Sweep(ctx context.Context) (*QueueStats, error) {
	batches, err := m.store.ListPendingBatches(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	stats := &QueueStats{Batches: len(batches), Overdue: []model.HITLItem{}}
	for _, b := range batches {
		age := now.Sub(b.CreatedAt)
		for _, it := range b.Items {
			if it.Status != model.HITLPending {
				continue
			}
			stats.Pending++
			if age > stats.Oldest {
				stats.Oldest = age
			}
			if m.config.OverdueAfter > 0 && age > m.config.OverdueAfter {
				stats.Overdue = append(stats.Overdue, it)
			}
		}
	}

	m.metrics.SetHITLQueue(stats.Pending, stats.Oldest, len(stats.Overdue))
	for _, it := range stats.Overdue {
		m.logger.WarnContext(ctx, "hitl item overdue",
			"run_id", it.RunID,
			"hitl_id", it.HITLID,
			"item_id", it.ItemID,
			"item_type", it.ItemType,
		)
	}
	return stats, nil
}

// Start schedules Sweep. The monitor stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.Schedule == "" {
		m.logger.Info("hitl monitor schedule not configured, skipping")
		return nil
	}
	if m.running {
		return fmt.Errorf("hitl monitor already running")
	}
	if _, err := cron.ParseStandard(m.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", m.config.Schedule, err)
	}
	if _, err := m.cron.AddFunc(m.config.Schedule, func() { m.sweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule hitl monitor: %w", err)
	}

	m.cron.Start()
	m.running = true
	m.logger.Info("hitl monitor started",
		"schedule", m.config.Schedule,
		"overdue_after", m.config.OverdueAfter,
	)

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	return nil
}

func (m *Monitor) sweep(ctx context.Context) {
	stats, err := m.Sweep(ctx)
	if err != nil {
		m.logger.Error("hitl monitor sweep failed", "error", err)
		return
	}
	m.logger.Debug("hitl monitor sweep completed",
		"batches", stats.Batches,
		"pending", stats.Pending,
		"overdue", len(stats.Overdue),
	)
}

// Stop stops the schedule and waits for a running sweep.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		<-m.cron.Stop().Done()
		m.running = false
		m.logger.Info("hitl monitor stopped")
	}
}

// NextRun returns the next scheduled sweep, or nil when not scheduled.
func (m *Monitor) NextRun() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
