package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/docguard/pkg/config"
)

// RunMetrics tracks run lifecycle.
type RunMetrics struct {
	started     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewRunMetrics creates and registers run metrics.
func NewRunMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RunMetrics {
	m := &RunMetrics{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "runs_started_total",
			Help:      "Total number of runs started",
		}, []string{"policy_set"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "run_transitions_total",
			Help:      "Total number of run status transitions by target status",
		}, []string{"status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock age of runs when they reach a terminal status",
			// Runs waiting on humans can take days.
			Buckets: []float64{0.01, 0.1, 1, 10, 60, 600, 3600, 86400, 604800},
		}, []string{"status"}),
	}
	registry.MustRegister(m.started, m.transitions, m.duration)
	return m
}

// StageMetrics tracks stage execution.
type StageMetrics struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	entities   *prometheus.CounterVec
}

// NewStageMetrics creates and registers stage metrics.
func NewStageMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StageMetrics {
	m := &StageMetrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stage_executions_total",
			Help:      "Total number of stage executions by result",
		}, []string{"stage", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stage_duration_seconds",
			Help:      "Duration of stage execution in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"stage"}),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "pii_entities_detected_total",
			Help:      "Total number of PII entities detected by type",
		}, []string{"entity_type"}),
	}
	registry.MustRegister(m.executions, m.duration, m.entities)
	return m
}

// HITLMetrics tracks the human review queue.
type HITLMetrics struct {
	enqueued  *prometheus.CounterVec
	decisions *prometheus.CounterVec
	pending   prometheus.Gauge
	oldest    prometheus.Gauge
	overdue   prometheus.Gauge
}

// NewHITLMetrics creates and registers HITL metrics.
func NewHITLMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *HITLMetrics {
	m := &HITLMetrics{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "hitl_items_enqueued_total",
			Help:      "Total number of HITL items raised by stage",
		}, []string{"stage"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "hitl_decisions_total",
			Help:      "Total number of HITL decisions by action",
		}, []string{"action"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "hitl_pending_items",
			Help:      "Number of HITL items awaiting a decision",
		}),
		oldest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "hitl_oldest_pending_seconds",
			Help:      "Age of the oldest pending HITL item in seconds",
		}),
		overdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "hitl_overdue_items",
			Help:      "Number of pending HITL items older than the overdue threshold",
		}),
	}
	registry.MustRegister(m.enqueued, m.decisions, m.pending, m.oldest, m.overdue)
	return m
}

// LedgerMetrics tracks audit, export and policy reload events.
type LedgerMetrics struct {
	auditFailures *prometheus.CounterVec
	exports       *prometheus.CounterVec
	exportBytes   *prometheus.HistogramVec
	policyReloads *prometheus.CounterVec
}

// NewLedgerMetrics creates and registers ledger metrics.
func NewLedgerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LedgerMetrics {
	m := &LedgerMetrics{
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_append_failures_total",
			Help:      "Total number of audit entries that failed to persist",
		}, []string{"action"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "exports_total",
			Help:      "Total number of document exports by kind",
		}, []string{"kind"}),
		exportBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "export_size_bytes",
			Help:      "Size of exported documents in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"kind"}),
		policyReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "policy_reloads_total",
			Help:      "Total number of policy directory reloads by result",
		}, []string{"result"}),
	}
	registry.MustRegister(m.auditFailures, m.exports, m.exportBytes, m.policyReloads)
	return m
}
