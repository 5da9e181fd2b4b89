package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/varalys/veil/internal/guardian"
	"github.com/varalys/veil/internal/types"
)

var (
	flagGuardianCacheDir    string
	flagGuardianOffline     bool
	flagGuardianMaxInFlight int
)

func init() {
	cmd := &cobra.Command{Use: "guardian", Short: "Audit dependency lockfiles for known vulnerabilities"}
	rootCmd.AddCommand(cmd)

	check := &cobra.Command{
		Use:   "check <lockfile>",
		Short: "Resolve every package in a lockfile against the advisory feed",
		Args:  cobra.ExactArgs(1),
		RunE:  runGuardianCheck,
	}
	check.Flags().StringVar(&flagGuardianCacheDir, "cache-dir", defaultGuardianCacheDir(), "on-disk advisory cache root")
	check.Flags().BoolVar(&flagGuardianOffline, "offline", false, "never hit the network, serve stale cache if needed")
	check.Flags().IntVar(&flagGuardianMaxInFlight, "max-in-flight", 4, "max concurrent advisory-feed requests")
	cmd.AddCommand(check)
}

func defaultGuardianCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ".veil-guardian-cache"
	}
	return filepath.Join(base, "veil", "guardian")
}

// advisoryURL builds the advisory-feed URL for a resolved package.
// OSV_API_URL overrides the feed base; the default host is a placeholder
// since Guardian's contract is the cache/fetch policy, not a specific
// vendor's advisory API.
func advisoryURL(ref types.PackageRef) string {
	base := os.Getenv("OSV_API_URL")
	if base == "" {
		base = "https://advisories.veil.invalid"
	}
	return fmt.Sprintf("%s/v1/%s/%s/%s", strings.TrimRight(base, "/"), ref.Ecosystem, ref.Name, ref.Version)
}

func runGuardianCheck(_ *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return operationalError(fmt.Errorf("guardian check: %w", err))
	}

	checker := guardian.NewChecker(guardian.DefaultHTTPClient, flagGuardianMaxInFlight, flagGuardianCacheDir, !flagGuardianOffline, advisoryURL)
	if os.Getenv("VEIL_OSV_FORCE_REFRESH") != "" {
		// Zero TTL makes every cached entry stale, so each lookup attempts
		// a network refresh and only falls back to the cache on failure.
		checker.Fetcher.TTL = 0
	}
	result, err := checker.Check(context.Background(), path, data)
	if err != nil {
		return operationalError(fmt.Errorf("guardian check: %w", err))
	}

	for _, pr := range result.Packages {
		if pr.Err != nil {
			fmt.Printf("%-10s %-30s %-14s error: %v\n", pr.Package.Ecosystem, pr.Package.Name, pr.Package.Version, pr.Err)
			continue
		}
		status := "clean"
		if len(pr.Advisories) > 0 {
			status = fmt.Sprintf("%d advisory(ies)", len(pr.Advisories))
		}
		fmt.Printf("%-10s %-30s %-14s %-10s %s\n", pr.Package.Ecosystem, pr.Package.Name, pr.Package.Version, pr.Outcome, status)
		for _, a := range pr.Advisories {
			fmt.Printf("    %s [%s] %s\n", a.ID, a.Severity, a.Summary)
		}
	}

	if result.HasVulnerabilities() {
		return policyViolation(fmt.Errorf("vulnerable packages found in %s", path))
	}
	return nil
}
