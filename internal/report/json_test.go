package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/varalys/veil/internal/types"
)

func TestWriteJSON_Envelope(t *testing.T) {
	findings := []types.Finding{
		{Path: "b.txt", Line: 2, RuleID: "r2", Severity: types.SevHigh, Score: 80, Grade: types.GradeHigh, MaskedSnippet: "k = <REDACTED>"},
		{Path: "a.txt", Line: 7, RuleID: "r1", Severity: types.SevLow, Score: 0, Grade: types.GradeSafe, MaskedSnippet: "x"},
	}

	var buf bytes.Buffer
	err := WriteJSON(&buf, findings, ScanSummary{
		ScannedFiles:  5,
		SkippedFiles:  1,
		FindingsCount: 2,
		LimitReached:  false,
		Duration:      1500 * time.Millisecond,
	})
	require.NoError(t, err)

	var doc struct {
		SchemaVersion string `json:"schemaVersion"`
		Summary       struct {
			ScannedFiles   int            `json:"scanned_files"`
			SkippedFiles   int            `json:"skipped_files"`
			FindingsCount  int            `json:"findings_count"`
			ShownFindings  int            `json:"shown_findings"`
			LimitReached   bool           `json:"limit_reached"`
			DurationMS     int64          `json:"duration_ms"`
			SeverityCounts map[string]int `json:"severity_counts"`
		} `json:"summary"`
		Findings []struct {
			Path     string `json:"path"`
			Line     int    `json:"line"`
			Severity string `json:"severity"`
			Grade    string `json:"grade"`
		} `json:"findings"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	require.Equal(t, "veil-v1", doc.SchemaVersion)
	require.Equal(t, 5, doc.Summary.ScannedFiles)
	require.Equal(t, 1, doc.Summary.SkippedFiles)
	require.Equal(t, 2, doc.Summary.ShownFindings)
	require.Equal(t, int64(1500), doc.Summary.DurationMS)
	require.Equal(t, map[string]int{"HIGH": 1, "LOW": 1}, doc.Summary.SeverityCounts)

	// sorted by (path, line), labels uppercase, SAFE is a legal grade
	require.Equal(t, "a.txt", doc.Findings[0].Path)
	require.Equal(t, "SAFE", doc.Findings[0].Grade)
	require.Equal(t, "b.txt", doc.Findings[1].Path)
	require.Equal(t, "HIGH", doc.Findings[1].Severity)
}

func TestWriteJSON_EmptyFindingsStillEmitsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil, ScanSummary{}))

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.JSONEq(t, "[]", string(doc["findings"]))
}
