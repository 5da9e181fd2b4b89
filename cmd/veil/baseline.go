package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/varalys/veil/internal/baseline"
	"github.com/varalys/veil/internal/types"
	"github.com/varalys/veil/pkg/core"
)

var (
	flagBaselineWrite string
	flagBaselineApply string
)

func init() {
	cmd := &cobra.Command{
		Use:   "baseline [paths...]",
		Short: "Write or apply a baseline snapshot of current findings",
		RunE:  runBaseline,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagBaselineWrite, "write", "", "scan and write a new baseline snapshot to this path")
	cmd.Flags().StringVar(&flagBaselineApply, "apply", "", "scan and report only findings not already in this baseline")
}

func runBaseline(_ *cobra.Command, args []string) error {
	if flagBaselineWrite == "" && flagBaselineApply == "" {
		return operationalError(fmt.Errorf("baseline: exactly one of --write or --apply is required"))
	}
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return operationalError(fmt.Errorf("baseline: resolve path: %w", err))
	}

	mode := types.MaskMode(flagMask)
	if mode == "" {
		mode = types.MaskRedact
	}
	res, err := core.ScanWithStats(core.Config{
		Root: abs, Threads: flagThreads, MaskMode: mode, DefaultExcludes: flagDefaultExcludes,
	})
	if err != nil {
		return operationalError(fmt.Errorf("baseline: %w", err))
	}

	if flagBaselineWrite != "" {
		snap := baseline.Build(res.Findings, version, time.Now())
		if err := baseline.Save(flagBaselineWrite, snap); err != nil {
			return operationalError(fmt.Errorf("baseline: %w", err))
		}
		fmt.Fprintf(os.Stdout, "Baseline written: %s (%d entries)\n", flagBaselineWrite, len(snap.Entries))
		return nil
	}

	snap, err := baseline.Load(flagBaselineApply)
	if err != nil {
		return operationalError(fmt.Errorf("baseline: %w", err))
	}
	suppressed, fresh := baseline.Partition(res.Findings, snap)
	switch baseline.Classify(true, suppressed, fresh) {
	case baseline.CaseNoFindings:
		fmt.Fprintln(os.Stdout, "No secrets found")
	case baseline.CaseAllSuppress:
		fmt.Fprintln(os.Stdout, "No new secrets found")
	default:
		fmt.Fprintf(os.Stdout, "Found %d new secret(s)\n", len(fresh))
		for _, f := range fresh {
			fmt.Fprintf(os.Stdout, "  %-8s %-24s %s:%d  %s\n", f.SeverityLabel(), f.RuleID, f.Path, f.Line, f.MaskedSnippet)
		}
	}

	if exceedsThreshold(fresh, flagFailOn) {
		return policyViolation(fmt.Errorf("%d new finding(s) at or above severity %q", len(fresh), flagFailOn))
	}
	return nil
}
