// Package baseline implements fingerprinting and suppression of
// previously-accepted findings across scans.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/varalys/veil/internal/types"
)

// Fingerprint computes the stable identity of a finding: sha256 over
// rule id, path, line, and masked snippet, so that moving a secret to a
// different line (without changing its content) still produces a new
// fingerprint while re-scanning the same line is idempotent.
func Fingerprint(f types.Finding) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", f.RuleID, f.Path, f.Line, f.MaskedSnippet)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// Partition splits findings into suppressed (fingerprint present in
// snapshot) and new. A nil snapshot treats every finding as new.
func Partition(findings []types.Finding, snapshot *types.BaselineSnapshot) (suppressed, fresh []types.Finding) {
	if snapshot == nil {
		return nil, findings
	}
	known := make(map[string]bool, len(snapshot.Entries))
	for _, e := range snapshot.Entries {
		known[e.Fingerprint] = true
	}
	for _, f := range findings {
		if known[Fingerprint(f)] {
			suppressed = append(suppressed, f)
		} else {
			fresh = append(fresh, f)
		}
	}
	return suppressed, fresh
}

// Build converts findings into a persistable snapshot.
func Build(findings []types.Finding, toolVersion string, now time.Time) types.BaselineSnapshot {
	entries := make([]types.BaselineEntry, 0, len(findings))
	for _, f := range findings {
		entries = append(entries, types.BaselineEntry{
			Fingerprint: Fingerprint(f),
			RuleID:      f.RuleID,
			Path:        f.Path,
			Line:        f.Line,
			Severity:    f.Severity,
		})
	}
	return types.BaselineSnapshot{
		Schema:      types.BaselineSchema,
		GeneratedAt: now.UTC(),
		ToolVersion: toolVersion,
		Entries:     entries,
	}
}

// Save writes snapshot as pretty JSON to path.
func Save(path string, snapshot types.BaselineSnapshot) error {
	b, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("baseline: marshal: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("baseline: write %s: %w", path, err)
	}
	return nil
}

// Load reads and validates a snapshot from path, rejecting any schema
// other than veil.baseline.v1.
func Load(path string) (*types.BaselineSnapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("baseline: read %s: %w", path, err)
	}
	var snap types.BaselineSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("baseline: parse %s: %w", path, err)
	}
	if snap.Schema != types.BaselineSchema {
		return nil, fmt.Errorf("baseline: %s: unsupported schema %q (want %q)", path, snap.Schema, types.BaselineSchema)
	}
	return &snap, nil
}

// UXCase names the three observable baseline outcomes the CLI surfaces.
type UXCase string

const (
	CaseNoFindings  UXCase = "no_findings"
	CaseAllSuppress UXCase = "all_suppressed"
	CaseSomeNew     UXCase = "some_new"
)

// Classify picks the UX case for a baseline run.
func Classify(hadBaseline bool, suppressed, fresh []types.Finding) UXCase {
	switch {
	case len(suppressed) == 0 && len(fresh) == 0:
		return CaseNoFindings
	case hadBaseline && len(fresh) == 0:
		return CaseAllSuppress
	default:
		return CaseSomeNew
	}
}
