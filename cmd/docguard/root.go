package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/docguard/pkg/cli"
	"mercator-hq/docguard/pkg/config"
	"mercator-hq/docguard/pkg/detect"
	"mercator-hq/docguard/pkg/telemetry/logging"
)

const defaultConfigFile = "docguard.yaml"

var (
	// Global flags
	cfgFile string
	verbose bool
	actor   string
)

var rootCmd = &cobra.Command{
	Use:   "docguard",
	Short: "Docguard - policy-driven document review with human sign-off",
	Long: `Docguard reviews documents before they are shared. Each document runs
through four stages:
  - classify: document type and sensitivity
  - extract:  clauses and PII entities
  - review:   policy violations and clause risk
  - draft:    redacted final document and tracked-changes redline

Runs suspend whenever a human decision is required and resume once every
item of the batch is decided. Every transition, stage output, decision and
export is recorded in a tamper-evident audit ledger.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "actor recorded in the audit trail (default: $USER)")
}

// loadConfig initializes the global configuration. A missing default config
// file falls back to built-in defaults; an explicit --config must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Initialize(path)
	if err != nil {
		return nil, cli.NewConfigError("config", fmt.Sprintf("failed to load config: %v", err))
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, registry *detect.Registry) (*slog.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		RedactPII: cfg.Telemetry.Logging.RedactPIIEnabled(),
		Registry:  registry,
		Writer:    os.Stderr,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}

func currentActor() string {
	if actor != "" {
		return actor
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

// outputFormatter parses the --format flag.
func outputFormatter(format string) (cli.Formatter, error) {
	f, err := cli.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return cli.NewFormatter(f), nil
}
