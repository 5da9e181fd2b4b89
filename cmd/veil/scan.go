package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/varalys/veil/internal/audit"
	"github.com/varalys/veil/internal/baseline"
	"github.com/varalys/veil/internal/evidence"
	"github.com/varalys/veil/internal/gitscan"
	"github.com/varalys/veil/internal/guardianconfig"
	"github.com/varalys/veil/internal/match"
	"github.com/varalys/veil/internal/report"
	"github.com/varalys/veil/internal/scanwalk"
	"github.com/varalys/veil/internal/types"
	config "github.com/varalys/veil/internal/veilconfig"
	"github.com/varalys/veil/pkg/core"
)

var (
	flagStaged        bool
	flagSince         string
	flagCommit        string
	flagBaselinePath  string
	flagWriteBaseline string
	flagEvidence      string
	flagAudit         bool
	flagInclude       string
	flagExclude       string
	flagMaxBytes      int64
	flagIncremental   bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan a working tree, git history, or staged changes for secrets",
		RunE:  runScan,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().BoolVar(&flagStaged, "staged", false, "scan only staged changes")
	cmd.Flags().StringVar(&flagSince, "since", "", "scan commits newer than this instant (RFC 3339, YYYY-MM-DD, or a duration like 72h)")
	cmd.Flags().StringVar(&flagCommit, "commit", "", "scan a single commit (diffed against its first parent)")
	cmd.Flags().StringVar(&flagBaselinePath, "baseline", "", "suppress findings present in this baseline snapshot")
	cmd.Flags().StringVar(&flagWriteBaseline, "write-baseline", "", "write a baseline snapshot of this run's findings")
	cmd.Flags().StringVar(&flagEvidence, "evidence", "", "write a tamper-evident evidence pack to this zip path")
	cmd.Flags().BoolVar(&flagAudit, "audit", true, "append a record to the repo's audit trail")
	cmd.Flags().StringVar(&flagInclude, "include", "", "comma-separated include globs")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated exclude globs")
	cmd.Flags().Int64Var(&flagMaxBytes, "max-bytes", 0, "skip files larger than this (0 = scanwalk default)")
	cmd.Flags().BoolVar(&flagIncremental, "incremental", false, "skip re-scanning files unchanged since the last scan of this tree")
}

func runScan(_ *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return operationalError(fmt.Errorf("scan: resolve path: %w", err))
	}

	eff, err := guardianconfig.Load(flagConfig)
	if err != nil {
		return operationalError(fmt.Errorf("scan: load config: %w", err))
	}
	local, _ := config.LoadLocal(abs)

	mode := types.MaskMode(flagMask)
	if !isExplicitFlag("mask-mode") && eff.MaskMode != "" {
		mode = types.MaskMode(eff.MaskMode)
	}
	if mode == types.MaskPlain && !isExplicitFlag("mask-mode") {
		return operationalError(fmt.Errorf("scan: mask-mode=plain requires an explicit --mask-mode flag, never a config file"))
	}

	rules, err := activeRules(eff, os.Stderr)
	if err != nil {
		return operationalError(fmt.Errorf("scan: load rules: %w", err))
	}
	if local.Disable != nil {
		for _, id := range strings.Split(*local.Disable, ",") {
			rules.Remove(strings.TrimSpace(id))
		}
	}

	threads := flagThreads
	if threads == 0 {
		threads = eff.Threads
	}

	includeGlobs := firstNonEmpty(flagInclude, strings.Join(eff.Include, ","))
	if local.Include != nil && includeGlobs == "" {
		includeGlobs = *local.Include
	}
	excludeGlobs := firstNonEmpty(flagExclude, strings.Join(eff.Ignore, ","))
	if local.Exclude != nil && excludeGlobs == "" {
		excludeGlobs = *local.Exclude
	}
	maxBytes := flagMaxBytes
	if maxBytes == 0 && local.MaxBytes != nil {
		maxBytes = *local.MaxBytes
	}

	start := time.Now()
	var (
		findings     []types.Finding
		filesScanned int
		filesSkipped int
		totalFiles   int
		limitReached bool
	)

	switch {
	case flagStaged, flagSince != "", flagCommit != "":
		repo, gerr := gitscan.Open(abs)
		if gerr != nil {
			return operationalError(fmt.Errorf("scan: %w", gerr))
		}
		var blobs []gitscan.Blob
		switch {
		case flagStaged:
			blobs, err = gitscan.StagedBlobs(repo)
		case flagCommit != "":
			blobs, err = gitscan.CommitBlobs(repo, flagCommit)
		default:
			since, perr := parseSince(flagSince)
			if perr != nil {
				return operationalError(fmt.Errorf("scan: invalid --since %q: %w", flagSince, perr))
			}
			blobs, err = gitscan.SinceBlobs(repo, since)
		}
		if err != nil {
			return operationalError(fmt.Errorf("scan: %w", err))
		}
		sizeLimit := maxBytes
		if sizeLimit == 0 {
			sizeLimit = scanwalk.DefaultMaxFileSize
		}
		for _, b := range blobs {
			if int64(len(b.Data)) > sizeLimit {
				findings = append(findings, scanwalk.OversizeFinding(b.Path))
				filesSkipped++
				continue
			}
			if scanwalk.LooksBinary(b.Data) {
				findings = append(findings, scanwalk.BinaryFinding(b.Path))
				filesSkipped++
				continue
			}
			fs := match.MatchText(b.Path, b.Data, rules, mode)
			for i := range fs {
				fs[i].Path = b.Path
				if b.Git != (types.GitMeta{}) {
					g := b.Git
					fs[i].Git = &g
				}
			}
			findings = append(findings, fs...)
		}
		filesScanned = len(blobs) - filesSkipped
		totalFiles = len(blobs)
	default:
		cfg := core.Config{
			Root:            abs,
			Threads:         threads,
			IncludeGlobs:    includeGlobs,
			ExcludeGlobs:    excludeGlobs,
			MaxBytes:        maxBytes,
			MaskMode:        mode,
			DefaultExcludes: flagDefaultExcludes,
			Incremental:     flagIncremental,
			Rules:           rules,
		}
		res, serr := core.ScanWithStats(cfg)
		if serr != nil {
			return operationalError(fmt.Errorf("scan: %w", serr))
		}
		findings = res.Findings
		filesScanned = res.FilesScanned
		filesSkipped = res.FilesSkipped
		totalFiles = res.TotalFiles
		limitReached = res.LimitReached
	}

	totalFindings := len(findings)
	var baselineLoaded *types.BaselineSnapshot
	if flagBaselinePath != "" {
		snap, berr := baseline.Load(flagBaselinePath)
		if berr != nil {
			return operationalError(fmt.Errorf("scan: %w", berr))
		}
		baselineLoaded = snap
	}
	_, fresh := baseline.Partition(findings, baselineLoaded)
	if baselineLoaded == nil {
		fresh = findings
	}

	if flagWriteBaseline != "" {
		snap := baseline.Build(findings, version, time.Now())
		if werr := baseline.Save(flagWriteBaseline, snap); werr != nil {
			return operationalError(fmt.Errorf("scan: %w", werr))
		}
	}

	duration := time.Since(start)
	opts := report.PrintOptions{
		NoColor: flagNoColor, Duration: duration, FilesScanned: filesScanned,
		TotalFiles: totalFiles, TotalFindings: totalFindings,
	}
	summary := report.ScanSummary{
		ScannedFiles:  filesScanned,
		SkippedFiles:  filesSkipped,
		FindingsCount: totalFindings,
		LimitReached:  limitReached,
		Duration:      duration,
	}
	if err := emitFindings(fresh, opts, summary); err != nil {
		return operationalError(err)
	}

	if flagEvidence != "" {
		if err := writeEvidence(flagEvidence, fresh, limitReached); err != nil {
			return operationalError(fmt.Errorf("scan: %w", err))
		}
	}

	if flagAudit {
		log := audit.NewAuditLog(abs)
		rec := audit.CreateScanRecord(abs, findings, fresh, filesScanned, duration, flagBaselinePath)
		_ = log.LogScan(rec)
	}

	if exceedsThreshold(fresh, flagFailOn) {
		return policyViolation(fmt.Errorf("%d finding(s) at or above severity %q", len(fresh), flagFailOn))
	}
	if limit, ok := failScoreFromEnv(); ok {
		for _, f := range fresh {
			if f.Score >= limit {
				return policyViolation(fmt.Errorf("finding %s:%d scores %d, at or above VEIL_FAIL_SCORE %d", f.Path, f.Line, f.Score, limit))
			}
		}
	}
	return nil
}

// failScoreFromEnv reads the optional VEIL_FAIL_SCORE policy threshold.
func failScoreFromEnv() (int, bool) {
	v := os.Getenv("VEIL_FAIL_SCORE")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// emitFindings renders findings in the format the global flags select,
// JSON/SARIF taking priority over table/text.
func emitFindings(findings []types.Finding, opts report.PrintOptions, summary report.ScanSummary) error {
	switch {
	case flagSARIF:
		return report.WriteSARIF(os.Stdout, findings, version)
	case flagJSON:
		return report.WriteJSON(os.Stdout, findings, summary)
	case flagTable:
		report.PrintTable(os.Stdout, findings, opts)
	default:
		report.PrintText(os.Stdout, findings, opts)
	}
	return nil
}

var severityRank = map[string]int{"low": 0, "medium": 1, "high": 2, "critical": 3}

func exceedsThreshold(findings []types.Finding, failOn string) bool {
	threshold, ok := severityRank[strings.ToLower(failOn)]
	if !ok {
		threshold = severityRank["medium"]
	}
	for _, f := range findings {
		if severityRank[string(f.Severity)] >= threshold {
			return true
		}
	}
	return false
}

// parseSince accepts an RFC 3339 timestamp, a bare YYYY-MM-DD date, or a
// Go duration ("72h") interpreted as that long before now.
func parseSince(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339, YYYY-MM-DD, or a duration")
	}
	return time.Now().Add(-d), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// isExplicitFlag reports whether name was set on the command line, as
// opposed to carrying only its zero-value default.
func isExplicitFlag(name string) bool {
	found := false
	rootCmd.PersistentFlags().Visit(func(f *pflag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// sha256HexOf is used only to pre-compute artifact hashes for run_meta
// before the final zip (which also contains run_meta.json) is assembled.
func sha256HexOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func writeEvidence(path string, findings []types.Finding, limitReached bool) error {
	reportJSON, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return err
	}
	reportHTML := []byte("<html><body><pre>" + string(reportJSON) + "</pre></body></html>")
	cfgTOML := []byte("# effective configuration\n")

	rm := types.RunMeta{
		SchemaVersion: types.RunMetaSchema,
		RunID:         uuid.NewString(),
		GeneratedAt:   time.Now().UTC(),
	}
	rm.Artifacts.ReportJSON = types.ArtifactRef{Path: evidence.NameReportJSON, SHA256: sha256HexOf(reportJSON)}
	rm.Artifacts.ReportHTML = types.ArtifactRef{Path: evidence.NameReportHTML, SHA256: sha256HexOf(reportHTML)}
	rm.Artifacts.EffectiveConfig = types.ArtifactRef{Path: evidence.NameConfigTOML, SHA256: sha256HexOf(cfgTOML)}
	rm.Result.LimitReached = limitReached
	rm.Result.Summary.FindingsCount = len(findings)

	rmBytes, err := json.MarshalIndent(rm, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "veil-evidence-*.zip")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	artifacts := []evidence.Artifact{
		{Name: evidence.NameReportJSON, Data: reportJSON},
		{Name: evidence.NameReportHTML, Data: reportHTML},
		{Name: evidence.NameConfigTOML, Data: cfgTOML},
		{Name: evidence.NameRunMeta, Data: rmBytes},
	}
	if _, err := evidence.Build(tmp, artifacts); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
