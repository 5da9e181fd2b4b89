package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/varalys/veil/internal/types"
)

func TestPrintTable_NoFindings_ShowsFooter(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, nil, PrintOptions{Duration: 1200 * time.Millisecond, FilesScanned: 10})
	out := buf.String()
	if !strings.Contains(out, "No secrets found") {
		t.Fatalf("expected friendly no-findings message; got: %q", out)
	}
	if !strings.Contains(out, "Files scanned: 10") {
		t.Fatalf("expected footer with files scanned; got: %q", out)
	}
}

func TestPrintTable_WithFindings(t *testing.T) {
	var buf bytes.Buffer
	fs := []types.Finding{{Path: "a.go", Line: 1, MaskedSnippet: "ghp_...xxx", RuleID: "vcs.github.token", Severity: types.SevHigh}}
	PrintTable(&buf, fs, PrintOptions{NoColor: true})
	out := buf.String()
	if !strings.Contains(out, "Findings: 1") {
		t.Fatalf("expected findings header; got: %q", out)
	}
	if !strings.Contains(out, "vcs.github.token") {
		t.Fatalf("expected rule id column; got: %q", out)
	}
}

func TestPrintText_NeverLeaksRawMatch(t *testing.T) {
	var buf bytes.Buffer
	fs := []types.Finding{{Path: "a.go", Line: 1, Match: "ghp_realsecretvalue", MaskedSnippet: "ghp_...alue", RuleID: "vcs.github.token", Severity: types.SevHigh}}
	PrintText(&buf, fs, PrintOptions{NoColor: true})
	if strings.Contains(buf.String(), "ghp_realsecretvalue") {
		t.Fatalf("raw match leaked into rendered output: %q", buf.String())
	}
}
