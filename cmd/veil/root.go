package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagJSON            bool
	flagSARIF           bool
	flagTable           bool
	flagThreads         int
	flagFailOn          string
	flagNoColor         bool
	flagMask            string
	flagConfig          string
	flagDefaultExcludes bool

	version = "0.1.0"
)

// exitError carries the process exit code a command should terminate with,
// distinguishing policy violations (1) from operational/config errors (2).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// policyViolation marks err as a finding-threshold breach, exiting 1.
func policyViolation(err error) error { return &exitError{code: 1, err: err} }

// operationalError marks err as a config/IO/runtime failure, exiting 2.
func operationalError(err error) error { return &exitError{code: 2, err: err} }

// rootCmd is the base Cobra command for the veil CLI.
var rootCmd = &cobra.Command{
	Use:           "veil",
	Short:         "Find and mask secrets in your repo",
	Long:          "veil scans working trees, staged changes, diffs, or history and reports secrets and PII with low noise.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the veil CLI. It is called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON")
	rootCmd.PersistentFlags().BoolVar(&flagSARIF, "sarif", false, "emit SARIF 2.1.0")
	rootCmd.PersistentFlags().BoolVar(&flagTable, "table", false, "emit a formatted table instead of plain text")
	rootCmd.PersistentFlags().IntVar(&flagThreads, "threads", 0, "worker count (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().StringVar(&flagFailOn, "fail-on", "medium", "fail on low|medium|high|critical")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().StringVar(&flagMask, "mask-mode", "redact", "redact|partial|plain")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "explicit repo config path (strict)")
	rootCmd.PersistentFlags().BoolVar(&flagDefaultExcludes, "default-excludes", true, "apply built-in exclude list (node_modules, dist, vendor, etc.)")
}
