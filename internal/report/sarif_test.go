// internal/report/sarif_test.go
package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/varalys/veil/internal/types"
)

// Validate core SARIF structure.
func TestWriteSARIF_Golden(t *testing.T) {
	fs := []types.Finding{
		{Path: "a.go", Line: 10, MaskedSnippet: "ghp_...xxxx", RuleID: "vcs.github.token", Severity: types.SevHigh},
		{Path: "b.txt", Line: 5, MaskedSnippet: "eyJ...xxxx", RuleID: "creds.generic.jwt", Severity: types.SevMedium},
	}
	var buf bytes.Buffer
	if err := WriteSARIF(&buf, fs, "0.1.0"); err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc["version"] != "2.1.0" {
		t.Fatalf("expected SARIF 2.1.0, got %v", doc["version"])
	}
	runs, ok := doc["runs"].([]any)
	if !ok || len(runs) != 1 {
		t.Fatalf("expected 1 run")
	}
	run := runs[0].(map[string]any)
	tool := run["tool"].(map[string]any)
	driver := tool["driver"].(map[string]any)
	if rules, ok := driver["rules"].([]any); !ok || len(rules) < 2 {
		t.Fatalf("expected rules with at least 2 entries under tool.driver.rules")
	}
	results := run["results"].([]any)
	if len(results) == 0 {
		t.Fatalf("expected results")
	}
	res := results[0].(map[string]any)
	locs := res["locations"].([]any)
	phys := locs[0].(map[string]any)["physicalLocation"].(map[string]any)
	region := phys["region"].(map[string]any)
	snippet, ok := region["snippet"].(map[string]any)
	if !ok {
		t.Fatalf("expected snippet present")
	}
	if strings, _ := snippet["text"].(string); strings != "ghp_...xxxx" {
		t.Fatalf("expected masked snippet text, got %q", snippet["text"])
	}
}

func TestSevToLevel(t *testing.T) {
	cases := map[types.Severity]string{
		types.SevCritical: "error",
		types.SevHigh:     "error",
		types.SevMedium:   "warning",
		types.SevLow:      "note",
	}
	for sev, want := range cases {
		if got := sevToLevel(sev); got != want {
			t.Fatalf("sevToLevel(%s) = %s, want %s", sev, got, want)
		}
	}
}
