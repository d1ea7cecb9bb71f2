package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/docguard/pkg/audit"
	auditstorage "mercator-hq/docguard/pkg/audit/storage"
	"mercator-hq/docguard/pkg/cli"
	"mercator-hq/docguard/pkg/config"
	"mercator-hq/docguard/pkg/detect"
	"mercator-hq/docguard/pkg/docsource"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/pipeline"
	"mercator-hq/docguard/pkg/policy"
	"mercator-hq/docguard/pkg/store"
	"mercator-hq/docguard/pkg/telemetry/health"
	"mercator-hq/docguard/pkg/telemetry/metrics"
	"mercator-hq/docguard/pkg/telemetry/tracing"
)

const healthCheckTimeout = 2 * time.Second

// app wires the pipeline from configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *detect.Registry

	store     store.Store
	sink      audit.Sink
	ledger    *audit.Ledger
	policies  policy.Provider
	files     *policy.FileProvider
	documents docsource.Provider
	metrics   *metrics.Collector
	health    *health.Checker
	tracer    *tracing.Tracer

	orchestrator *pipeline.Orchestrator
	service      *pipeline.Service
	monitor      *pipeline.Monitor
}

// setup loads configuration and builds the app for a command.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg, nil)
	if err != nil {
		return nil, cli.NewCommandError(cmd.CommandPath(), err)
	}
	return a, nil
}

// newApp builds every component. A nil logger is built from cfg.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, registry: detect.DefaultRegistry()}

	if logger == nil {
		var err error
		if logger, err = newLogger(cfg, a.registry); err != nil {
			return nil, err
		}
	}
	a.logger = logger

	a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())

	tracer, err := tracing.New(context.Background(), &cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tracer

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openLedger(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openPolicies(); err != nil {
		a.Close()
		return nil, err
	}
	a.openDocuments()

	orch, err := pipeline.NewOrchestrator(pipeline.Deps{
		Store:     a.store,
		Ledger:    a.ledger,
		Documents: a.documents,
		Policies:  a.policies,
		Stages:    pipeline.DefaultStages(a.registry, logger),
		Metrics:   a.metrics,
		Tracer:    a.tracer.Tracer(),
		Logger:    logger,
	}, pipeline.Config{
		WorkerID: cfg.Pipeline.WorkerID,
		LeaseTTL: cfg.Pipeline.LeaseTTL,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orchestrator = orch
	a.service = pipeline.NewService(orch)
	a.monitor = pipeline.NewMonitor(a.store, a.metrics, pipeline.MonitorConfig{
		Schedule:     cfg.HITL.MonitorSchedule,
		OverdueAfter: cfg.HITL.OverdueAfter,
	}, logger)
	a.registerHealthChecks()

	return a, nil
}

func (a *app) registerHealthChecks() {
	a.health = health.New(healthCheckTimeout)
	a.health.RegisterCheck("run_store", func(ctx context.Context) error {
		_, err := a.store.ListRuns(ctx, store.RunFilter{Limit: 1})
		return err
	})
	a.health.RegisterCheck("audit_ledger", func(ctx context.Context) error {
		_, err := a.ledger.Search(ctx, audit.Filter{Limit: 1})
		return err
	})
	a.health.RegisterCheck("policy", func(ctx context.Context) error {
		_, err := a.policies.Get(ctx, a.cfg.Policy.DefaultSetID)
		return err
	})
}

func (a *app) openStore() error {
	switch a.cfg.Storage.Backend {
	case "memory":
		a.store = store.NewMemoryStore()
	case "sqlite":
		if err := ensureDir(a.cfg.Storage.SQLite.Path); err != nil {
			return err
		}
		st, err := store.NewSQLiteStore(store.SQLiteConfig{
			Path:               a.cfg.Storage.SQLite.Path,
			BusyTimeout:        a.cfg.Storage.SQLite.BusyTimeout,
			CheckpointInterval: a.cfg.Storage.SQLite.CheckpointInterval,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		a.store = st
	default:
		return cli.NewConfigError("storage.backend", fmt.Sprintf("unsupported backend: %s (supported: sqlite, memory)", a.cfg.Storage.Backend))
	}
	return nil
}

func (a *app) openLedger() error {
	switch a.cfg.Audit.Backend {
	case "memory":
		a.sink = auditstorage.NewMemorySink()
	case "sqlite":
		if err := ensureDir(a.cfg.Audit.SQLite.Path); err != nil {
			return err
		}
		sink, err := auditstorage.NewSQLiteSink(&auditstorage.SQLiteConfig{
			Path:         a.cfg.Audit.SQLite.Path,
			MaxOpenConns: a.cfg.Audit.SQLite.MaxOpenConns,
			BusyTimeout:  a.cfg.Audit.SQLite.BusyTimeout,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open audit sink: %w", err)
		}
		a.sink = sink
	default:
		return cli.NewConfigError("audit.backend", fmt.Sprintf("unsupported backend: %s (supported: sqlite, memory)", a.cfg.Audit.Backend))
	}

	a.ledger = audit.NewLedger(a.sink, &audit.Config{
		AsyncBuffer:  a.cfg.Audit.AsyncBuffer,
		WriteTimeout: a.cfg.Audit.WriteTimeout,
	}, a.logger)
	a.ledger.OnError = func(entry *model.AuditEntry, _ error) {
		a.metrics.RecordAuditFailure(string(entry.Action))
	}
	return nil
}

func (a *app) openPolicies() error {
	if a.cfg.Policy.Directory == "" {
		mem, err := policy.NewMemoryProvider(policy.Default())
		if err != nil {
			return err
		}
		a.policies = mem
		return nil
	}

	files, err := policy.NewFileProvider(a.cfg.Policy.Directory, a.logger)
	if err != nil {
		return fmt.Errorf("failed to load policy sets: %w", err)
	}
	files.OnReload = a.metrics.RecordPolicyReload
	a.files = files
	a.policies = files
	return nil
}

// openDocuments falls back to an empty provider when the document directory
// does not exist, so commands that never load documents still work.
func (a *app) openDocuments() {
	dir, err := docsource.NewDirProvider(a.cfg.Documents.Directory, a.cfg.Documents.MaxFileSize, a.logger)
	if err != nil {
		a.logger.Warn("document directory unavailable", "dir", a.cfg.Documents.Directory, "error", err)
		a.documents = docsource.NewMemoryProvider()
		return
	}
	a.documents = dir
}

// Close flushes pending spans and the ledger, then closes storage.
func (a *app) Close() error {
	var errs []error
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, a.tracer.Shutdown(ctx))
		cancel()
	}
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	if a.sink != nil {
		errs = append(errs, a.sink.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
