package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/docguard/pkg/config"
)

// Collector owns the pipeline's Prometheus metrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	runs   *RunMetrics
	stages *StageMetrics
	hitl   *HITLMetrics
	ledger *LedgerMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registered on registry, or on a fresh
// registry when nil.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		runs:               NewRunMetrics(cfg, registry),
		stages:             NewStageMetrics(cfg, registry),
		hitl:               NewHITLMetrics(cfg, registry),
		ledger:             NewLedgerMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(100),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordRunStarted counts a new run under its policy set.
func (c *Collector) RecordRunStarted(policySetID string) {
	if !c.enabled() {
		return
	}
	if !c.cardinalityLimiter.Allow(policySetID) {
		policySetID = "other"
	}
	c.runs.started.WithLabelValues(policySetID).Inc()
}

// RecordRunStatus counts a run entering status. Terminal statuses also
// observe the run's age.
func (c *Collector) RecordRunStatus(status string, age time.Duration, terminal bool) {
	if !c.enabled() {
		return
	}
	c.runs.transitions.WithLabelValues(status).Inc()
	if terminal {
		c.runs.duration.WithLabelValues(status).Observe(age.Seconds())
	}
}

// RecordStage records one stage execution. err marks a failure.
func (c *Collector) RecordStage(stage string, duration time.Duration, err error) {
	if !c.enabled() {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.stages.executions.WithLabelValues(stage, result).Inc()
	c.stages.duration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordDetections counts entities found by type.
func (c *Collector) RecordDetections(counts map[string]int) {
	if !c.enabled() {
		return
	}
	for entityType, n := range counts {
		c.stages.entities.WithLabelValues(entityType).Add(float64(n))
	}
}

// RecordHITLEnqueued counts items raised by a stage.
func (c *Collector) RecordHITLEnqueued(stage string, items int) {
	if !c.enabled() {
		return
	}
	c.hitl.enqueued.WithLabelValues(stage).Add(float64(items))
}

// RecordHITLDecision counts one decision.
func (c *Collector) RecordHITLDecision(action string) {
	if !c.enabled() {
		return
	}
	c.hitl.decisions.WithLabelValues(action).Inc()
}

// SetHITLQueue publishes the pending queue depth and the age of its
// oldest item.
func (c *Collector) SetHITLQueue(pending int, oldest time.Duration, overdue int) {
	if !c.enabled() {
		return
	}
	c.hitl.pending.Set(float64(pending))
	c.hitl.oldest.Set(oldest.Seconds())
	c.hitl.overdue.Set(float64(overdue))
}

// RecordAuditFailure counts an audit entry that could not be appended.
func (c *Collector) RecordAuditFailure(action string) {
	if !c.enabled() {
		return
	}
	c.ledger.auditFailures.WithLabelValues(action).Inc()
}

// RecordExport counts an export by kind.
func (c *Collector) RecordExport(kind string, bytes int) {
	if !c.enabled() {
		return
	}
	c.ledger.exports.WithLabelValues(kind).Inc()
	c.ledger.exportBytes.WithLabelValues(kind).Observe(float64(bytes))
}

// RecordPolicyReload counts a policy directory reload.
func (c *Collector) RecordPolicyReload(err error) {
	if !c.enabled() {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.ledger.policyReloads.WithLabelValues(result).Inc()
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of distinct label values tracked.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.Mutex
}

// NewCardinalityLimiter creates a limiter allowing maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.current[value]; ok {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of tracked values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.current)
}
