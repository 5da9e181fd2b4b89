package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/varalys/veil/internal/types"
)

// ScanSchemaVersion is the machine-readable scan output schema.
const ScanSchemaVersion = "veil-v1"

// ScanSummary carries the run statistics embedded in the JSON envelope.
type ScanSummary struct {
	ScannedFiles  int
	SkippedFiles  int
	FindingsCount int
	ShownFindings int
	LimitReached  bool
	Duration      time.Duration
}

type jsonSummary struct {
	ScannedFiles   int            `json:"scanned_files"`
	SkippedFiles   int            `json:"skipped_files"`
	FindingsCount  int            `json:"findings_count"`
	ShownFindings  int            `json:"shown_findings"`
	LimitReached   bool           `json:"limit_reached"`
	DurationMS     int64          `json:"duration_ms"`
	SeverityCounts map[string]int `json:"severity_counts"`
}

type jsonFinding struct {
	Path          string         `json:"path"`
	Line          int            `json:"line"`
	MaskedSnippet string         `json:"masked_snippet"`
	RuleID        string         `json:"rule_id"`
	Severity      string         `json:"severity"`
	Score         int            `json:"score"`
	Grade         string         `json:"grade"`
	ContextBefore []string       `json:"context_before,omitempty"`
	ContextAfter  []string       `json:"context_after,omitempty"`
	Git           *types.GitMeta `json:"git,omitempty"`
}

type jsonDocument struct {
	SchemaVersion string        `json:"schemaVersion"`
	Summary       jsonSummary   `json:"summary"`
	Findings      []jsonFinding `json:"findings"`
}

// WriteJSON emits the scan result as the versioned JSON envelope: a summary
// block plus the findings with severity and grade as their canonical
// uppercase labels. Findings are sorted by (path, line) first so repeated
// runs over the same tree produce byte-identical documents.
func WriteJSON(w io.Writer, findings []types.Finding, sum ScanSummary) error {
	sortFindings(findings)

	sevCounts := make(map[string]int)
	out := make([]jsonFinding, 0, len(findings))
	for _, f := range findings {
		sevCounts[f.SeverityLabel()]++
		out = append(out, jsonFinding{
			Path:          f.Path,
			Line:          f.Line,
			MaskedSnippet: f.MaskedSnippet,
			RuleID:        f.RuleID,
			Severity:      f.SeverityLabel(),
			Score:         f.Score,
			Grade:         f.Grade.Label(),
			ContextBefore: f.ContextBefore,
			ContextAfter:  f.ContextAfter,
			Git:           f.Git,
		})
	}

	doc := jsonDocument{
		SchemaVersion: ScanSchemaVersion,
		Summary: jsonSummary{
			ScannedFiles:   sum.ScannedFiles,
			SkippedFiles:   sum.SkippedFiles,
			FindingsCount:  sum.FindingsCount,
			ShownFindings:  len(out),
			LimitReached:   sum.LimitReached,
			DurationMS:     sum.Duration.Milliseconds(),
			SeverityCounts: sevCounts,
		},
		Findings: out,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
