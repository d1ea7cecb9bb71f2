package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/docguard/pkg/cli"
	"mercator-hq/docguard/pkg/telemetry/health"
)

const shutdownTimeout = 10 * time.Second

var monitorFlags struct {
	listenAddress string
	schedule      string
	noRecover     bool
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor the HITL queue and serve metrics",
	Long: `Run the long-lived docguard services until interrupted:
  - sweep the HITL queue on hitl.monitor_schedule and log overdue items
  - serve Prometheus metrics, /healthz and /readyz when
    telemetry.metrics.enabled is set
  - reload policy sets on change when policy.watch is set

Interrupted runs are recovered at startup unless --no-recover is given.

Examples:
  # Start with the configured schedule
  docguard monitor

  # Sweep every minute and serve metrics on all interfaces
  docguard monitor --schedule "* * * * *" --listen 0.0.0.0:9090`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringVarP(&monitorFlags.listenAddress, "listen", "l", "", "override metrics listen address")
	monitorCmd.Flags().StringVar(&monitorFlags.schedule, "schedule", "", "override hitl.monitor_schedule (cron)")
	monitorCmd.Flags().BoolVar(&monitorFlags.noRecover, "no-recover", false, "skip recovery of interrupted runs")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if monitorFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.ListenAddress = monitorFlags.listenAddress
	}
	if monitorFlags.schedule != "" {
		cfg.HITL.MonitorSchedule = monitorFlags.schedule
	}

	a, err := newApp(cfg, nil)
	if err != nil {
		return cli.NewCommandError("monitor", err)
	}
	defer a.Close()

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	if !monitorFlags.noRecover {
		if n, err := a.service.Recover(ctx); err != nil {
			a.logger.Warn("run recovery incomplete", "recovered", n, "error", err)
		}
	}

	if _, err := a.monitor.Sweep(ctx); err != nil {
		a.logger.Warn("initial hitl sweep failed", "error", err)
	}
	if err := a.monitor.Start(ctx); err != nil {
		return cli.NewCommandError("monitor", err)
	}
	defer a.monitor.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Telemetry.Metrics.Enabled {
		srv := a.metrics.Server(a.health.Mount)
		g.Go(func() error {
			a.logger.Info("serving metrics", "address", srv.Addr, "path", cfg.Telemetry.Metrics.Path,
				"health", []string{health.LivenessPath, health.ReadinessPath})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if a.files != nil && cfg.Policy.Watch {
		g.Go(func() error {
			return a.files.Watch(gctx, cfg.Policy.DebounceInterval)
		})
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "✓ Monitoring, press Ctrl+C to stop")
	if next := a.monitor.NextRun(); next != nil {
		a.logger.Debug("hitl monitor scheduled", "next_sweep", next)
	}

	<-gctx.Done()
	if err := g.Wait(); err != nil {
		return cli.NewCommandError("monitor", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "✓ Monitor stopped")
	return nil
}
