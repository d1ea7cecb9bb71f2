package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/docguard/pkg/cli"
	"mercator-hq/docguard/pkg/policy"
)

var policyFlags struct {
	dir    string
	format string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Validate policy sets",
	Long: `Validate policy set files.

Policy sets are YAML (.yaml, .yml) or TOML (.toml) files. A set without an
id takes its file name. The set named "default" is built in and may be
overridden by a file.

Subcommands:
  validate  - Validate policy files with the same rules as the loader`,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate policy files",
	Long: `Validate policy files and report every problem found.

Examples:
  # Validate one file
  docguard policy validate policies/strict.yaml

  # Validate every policy file in a directory
  docguard policy validate --dir policies

  # Machine-readable results
  docguard policy validate --dir policies --format json`,
	RunE: validatePolicies,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyValidateCmd)

	policyValidateCmd.Flags().StringVar(&policyFlags.dir, "dir", "", "validate every policy file in this directory")
	policyValidateCmd.Flags().StringVar(&policyFlags.format, "format", "text", "output format: text, json")
}

// ValidationResult represents the validation result for a single policy file.
type ValidationResult struct {
	File   string   `json:"file"`
	SetID  string   `json:"set_id,omitempty"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func validatePolicies(cmd *cobra.Command, args []string) error {
	files := append([]string(nil), args...)
	if policyFlags.dir != "" {
		for _, ext := range policy.Extensions {
			matches, err := filepath.Glob(filepath.Join(policyFlags.dir, "*"+ext))
			if err != nil {
				return fmt.Errorf("failed to list policy files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return cli.NewConfigError("file", "no policy files given; pass files or --dir")
	}

	results := make([]ValidationResult, 0, len(files))
	invalid := 0
	for _, file := range files {
		r := validatePolicyFile(file)
		if !r.Valid {
			invalid++
		}
		results = append(results, r)
	}

	out := cmd.OutOrStdout()
	if policyFlags.format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
	} else {
		writeValidationText(out, results)
	}

	if invalid > 0 {
		return cli.NewCommandError("policy validate", fmt.Errorf("%d of %d policy files are invalid", invalid, len(files)))
	}
	return nil
}

func validatePolicyFile(path string) ValidationResult {
	result := ValidationResult{File: path, Valid: true}

	set, err := policy.LoadFile(path)
	if err == nil {
		result.SetID = set.ID
		return result
	}

	result.Valid = false
	var verr *policy.ValidationError
	if errors.As(err, &verr) {
		result.SetID = verr.SetID
		for _, fe := range verr.Errors {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
		}
		return result
	}
	result.Errors = []string{err.Error()}
	return result
}

func writeValidationText(w io.Writer, results []ValidationResult) {
	styles := cli.NewStyles(nil)
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(w, "%s %s (%s)\n", styles.Success.Render("✓"), r.File, r.SetID)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", styles.Error.Render("✗"), r.File)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "    %s\n", strings.TrimSpace(e))
		}
	}
	if len(results) > 1 {
		fmt.Fprintf(w, "\n%d files checked\n", len(results))
	}
}
