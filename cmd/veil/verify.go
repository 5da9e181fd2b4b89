package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varalys/veil/internal/evidence"
)

var (
	flagVerifyFailOnFindings  bool
	flagVerifyThreshold       int
	flagVerifyRequireComplete bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "verify <evidence.zip>",
		Short: "Verify a tamper-evident evidence pack",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().BoolVar(&flagVerifyFailOnFindings, "fail-on-findings", false, "treat findings above the threshold as a policy violation")
	cmd.Flags().IntVar(&flagVerifyThreshold, "findings-threshold", 0, "findings count threshold for --fail-on-findings")
	cmd.Flags().BoolVar(&flagVerifyRequireComplete, "require-complete", false, "fail if the pack's run hit its finding limit")
}

func runVerify(_ *cobra.Command, args []string) error {
	opts := evidence.VerifyOptions{
		Limits:            evidence.DefaultLimits(),
		RequireComplete:   flagVerifyRequireComplete,
		FailOnFindings:    flagVerifyFailOnFindings,
		FindingsThreshold: flagVerifyThreshold,
	}
	report, err := evidence.Verify(args[0], opts)
	if err != nil {
		return operationalError(fmt.Errorf("verify: %w", err))
	}

	fmt.Printf("run_id:    %s\n", report.RunMeta.RunID)
	fmt.Printf("generated: %s\n", report.RunMeta.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Printf("findings:  %d\n", report.FindingsUsed)
	fmt.Printf("status:    %s\n", report.Status)

	if report.Status == evidence.StatusPolicyViolation {
		return policyViolation(fmt.Errorf("evidence pack failed policy checks"))
	}
	return nil
}
