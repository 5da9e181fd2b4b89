package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/varalys/veil/internal/types"
)

// PrintOptions controls table rendering and summary stats for PrintTable.
type PrintOptions struct {
	NoColor       bool
	Duration      time.Duration
	FilesScanned  int
	TotalFiles    int // Total files that could be scanned
	TotalFindings int // Total findings before baseline filtering
}

func sortFindings(findings []types.Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Path == findings[j].Path {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].Path < findings[j].Path
	})
}

// PrintText renders findings as columnar text output and emits a
// summary footer containing counts and optional duration/files scanned.
func PrintText(w io.Writer, findings []types.Finding, opts PrintOptions) {
	sortFindings(findings)
	if len(findings) == 0 {
		fmt.Fprintln(w, "No secrets found")
	} else {
		maxRule := 8
		for _, f := range findings {
			if l := len(f.RuleID); l > maxRule {
				maxRule = l
			}
		}
		fmt.Fprintf(w, "Findings: %d\n", len(findings))
		for _, f := range findings {
			sev := f.SeverityLabel()
			if !opts.NoColor {
				sev = colorSeverity(f.Severity)
			}
			fmt.Fprintf(w, "%-9s %-*s %s:%d  %s\n", sev, maxRule, f.RuleID, f.Path, f.Line, f.MaskedSnippet)
		}
	}
	printSummaryFooter(w, findings, opts)
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SevCritical:
		return "\x1b[35mcritical\x1b[0m" // magenta
	case types.SevHigh:
		return "\x1b[31mhigh\x1b[0m" // red
	case types.SevMedium:
		return "\x1b[33mmedium\x1b[0m" // yellow
	default:
		return "\x1b[36mlow\x1b[0m" // cyan
	}
}

// PrintTable renders findings as a formatted table using tablewriter and emits a
// summary footer containing counts and optional duration/files scanned.
func PrintTable(w io.Writer, findings []types.Finding, opts PrintOptions) {
	sortFindings(findings)

	if len(findings) == 0 {
		fmt.Fprintln(w, "No secrets found")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("Severity", "Rule", "File", "Line", "Match", "Score")

		for _, f := range findings {
			sev := f.SeverityLabel()
			if !opts.NoColor {
				sev = colorSeverity(f.Severity)
			}
			_ = table.Append(
				sev,
				f.RuleID,
				f.Path,
				strconv.Itoa(f.Line),
				f.MaskedSnippet,
				strconv.Itoa(f.Score),
			)
		}
		_ = table.Render()
	}

	printSummaryFooter(w, findings, opts)
}

func printSummaryFooter(w io.Writer, findings []types.Finding, opts PrintOptions) {
	var crit, high, med, low int
	for _, f := range findings {
		switch f.Severity {
		case types.SevCritical:
			crit++
		case types.SevHigh:
			high++
		case types.SevMedium:
			med++
		default:
			low++
		}
	}

	if opts.Duration <= 0 && opts.FilesScanned <= 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings: %d (critical: %d, high: %d, medium: %d, low: %d)\n", len(findings), crit, high, med, low)

	if opts.TotalFindings > 0 && opts.TotalFindings > len(findings) {
		fmt.Fprintf(w, "Suppressed by baseline: %d\n", opts.TotalFindings-len(findings))
	}
	if opts.TotalFiles > 0 && opts.TotalFiles > opts.FilesScanned {
		fmt.Fprintf(w, "Files skipped: %d\n", opts.TotalFiles-opts.FilesScanned)
	}
	if opts.Duration > 0 {
		fmt.Fprintf(w, "Scan duration: %.2fs\n", opts.Duration.Seconds())
	}
	if opts.FilesScanned > 0 {
		fmt.Fprintf(w, "Files scanned: %d\n", opts.FilesScanned)
	}
}
