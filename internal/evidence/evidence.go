// Package evidence assembles and verifies tamper-evident evidence packs:
// a ZIP of the scan's report artifacts plus a run-meta manifest carrying
// a SHA-256 for each one.
package evidence

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/varalys/veil/internal/types"
)

// Artifact is one file to include in the pack, already rendered to bytes.
type Artifact struct {
	Name string // entry name inside the zip, e.g. "report.json"
	Data []byte
}

const (
	NameReportHTML  = "report.html"
	NameReportJSON  = "report.json"
	NameConfigTOML  = "effective_config.toml"
	NameRunMeta     = "run_meta.json"
	NameBaselineKey = "baseline.json"
)

// sha256Hex returns the lowercase hex SHA-256 of b.
func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Build writes a deflate ZIP to w containing every artifact, and returns
// the SHA-256 of each by entry name so the caller can populate run_meta.
func Build(w io.Writer, artifacts []Artifact) (map[string]string, error) {
	zw := zip.NewWriter(w)
	hashes := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: a.Name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("evidence: create entry %s: %w", a.Name, err)
		}
		if _, err := fw.Write(a.Data); err != nil {
			return nil, fmt.Errorf("evidence: write entry %s: %w", a.Name, err)
		}
		hashes[a.Name] = sha256Hex(a.Data)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("evidence: close zip: %w", err)
	}
	return hashes, nil
}

// Limits bounds pack verification so a hostile or corrupt archive cannot
// exhaust memory or disk.
type Limits struct {
	MaxZipBytes   int64
	MaxEntryBytes int64
	MaxTotalBytes int64
	MaxFiles      int
}

// DefaultLimits mirrors the documented defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxZipBytes:   500 << 20,
		MaxEntryBytes: 200 << 20,
		MaxTotalBytes: 1 << 30,
		MaxFiles:      64,
	}
}

// Status is the outcome of verifying a pack.
type Status string

const (
	StatusOk              Status = "Ok"
	StatusPolicyViolation Status = "PolicyViolation"
)

// VerifyOptions parameterizes policy checks layered on top of the
// structural/hash verification.
type VerifyOptions struct {
	Limits              Limits
	RequireComplete     bool
	FailOnFindings      bool
	FindingsThreshold   int
	ExpectRunMetaSHA256 string
}

// Report is what verification returns on success (or PolicyViolation);
// hard structural failures, token leakage included, return an error
// instead.
type Report struct {
	Status       Status
	RunMeta      types.RunMeta
	FindingsUsed int
}

// tokenLeakRe matches credential material that must never appear inside a
// pack: token query/fragment parameters and Authorization headers carrying
// a bearer value of 16+ token characters.
var tokenLeakRe = regexp.MustCompile(`(?i)#token=|\?token=|authorization:\s*bearer\s+[A-Za-z0-9._~-]{16,}`)

// Verify runs the full ordered check list against the zip at path.
func Verify(path string, opts VerifyOptions) (Report, error) {
	lim := opts.Limits
	if lim == (Limits{}) {
		lim = DefaultLimits()
	}

	info, err := os.Stat(path)
	if err != nil {
		return Report{}, fmt.Errorf("evidence: stat %s: %w", path, err)
	}
	if info.Size() > lim.MaxZipBytes {
		return Report{}, fmt.Errorf("evidence: zip exceeds max_zip_bytes (%d > %d)", info.Size(), lim.MaxZipBytes)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return Report{}, fmt.Errorf("evidence: open zip: %w", err)
	}
	defer zr.Close()

	if len(zr.File) > lim.MaxFiles {
		return Report{}, fmt.Errorf("evidence: entry count %d exceeds max_files %d", len(zr.File), lim.MaxFiles)
	}

	entries := make(map[string][]byte)
	seen := make(map[string]bool)
	var total int64

	for _, zf := range zr.File {
		name := zf.Name
		if isMacMetadata(name) {
			continue
		}
		if err := checkZipSlip(name); err != nil {
			return Report{}, err
		}
		if seen[name] {
			return Report{}, fmt.Errorf("evidence: duplicate entry %q", name)
		}
		seen[name] = true

		if int64(zf.UncompressedSize64) > lim.MaxEntryBytes {
			return Report{}, fmt.Errorf("evidence: entry %q exceeds max_entry_bytes", name)
		}
		total += int64(zf.UncompressedSize64)
		if total > lim.MaxTotalBytes {
			return Report{}, fmt.Errorf("evidence: running total exceeds max_total_bytes")
		}

		rc, err := zf.Open()
		if err != nil {
			return Report{}, fmt.Errorf("evidence: open entry %q: %w", name, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, lim.MaxEntryBytes+1))
		rc.Close()
		if err != nil {
			return Report{}, fmt.Errorf("evidence: read entry %q: %w", name, err)
		}
		entries[name] = data

		if excerpt, leaked := scanForTokenLeak(data); leaked {
			return Report{}, fmt.Errorf("evidence: token leakage in %q: %s", name, excerpt)
		}
	}

	for _, required := range []string{NameRunMeta, NameReportJSON, NameReportHTML, NameConfigTOML} {
		if _, ok := entries[required]; !ok {
			return Report{}, fmt.Errorf("evidence: missing required entry %q", required)
		}
	}

	runMetaBytes := entries[NameRunMeta]
	var rm types.RunMeta
	if err := json.Unmarshal(runMetaBytes, &rm); err != nil {
		return Report{}, fmt.Errorf("evidence: parse run_meta.json: %w", err)
	}
	if !strings.HasPrefix(rm.SchemaVersion, "veil-pro-run-meta-v1") && !strings.HasPrefix(rm.SchemaVersion, "veil-v1") {
		return Report{}, fmt.Errorf("evidence: unsupported run-meta schemaVersion %q", rm.SchemaVersion)
	}

	if opts.ExpectRunMetaSHA256 != "" {
		if got := sha256Hex(runMetaBytes); got != opts.ExpectRunMetaSHA256 {
			return Report{}, fmt.Errorf("evidence: run_meta.json sha256 mismatch: got %s want %s", got, opts.ExpectRunMetaSHA256)
		}
	}

	if err := checkArtifactHash(entries, NameReportHTML, rm.Artifacts.ReportHTML.SHA256); err != nil {
		return Report{}, err
	}
	if err := checkArtifactHash(entries, NameReportJSON, rm.Artifacts.ReportJSON.SHA256); err != nil {
		return Report{}, err
	}
	if err := checkArtifactHash(entries, NameConfigTOML, rm.Artifacts.EffectiveConfig.SHA256); err != nil {
		return Report{}, err
	}
	if rm.Artifacts.Baseline != nil {
		if err := checkArtifactHash(entries, NameBaselineKey, rm.Artifacts.Baseline.SHA256); err != nil {
			return Report{}, err
		}
	}

	status := StatusOk
	if opts.RequireComplete && rm.Result.LimitReached {
		status = StatusPolicyViolation
	}
	if opts.FailOnFindings && rm.Result.Summary.FindingsCount > opts.FindingsThreshold {
		status = StatusPolicyViolation
	}

	return Report{Status: status, RunMeta: rm, FindingsUsed: rm.Result.Summary.FindingsCount}, nil
}

func checkArtifactHash(entries map[string][]byte, name, expected string) error {
	if expected == "" {
		return nil
	}
	data, ok := entries[name]
	if !ok {
		return fmt.Errorf("evidence: %q declared in run_meta but absent from archive", name)
	}
	if got := sha256Hex(data); got != expected {
		return fmt.Errorf("evidence: %q sha256 mismatch: got %s want %s", name, got, expected)
	}
	return nil
}

func isMacMetadata(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || path.Base(name) == ".DS_Store"
}

func checkZipSlip(name string) error {
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return fmt.Errorf("evidence: unsafe entry path %q", name)
	}
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return fmt.Errorf("evidence: unsafe entry path %q", name)
		}
	}
	return nil
}

// scanForTokenLeak reports the first leak match in data, returning a
// truncated excerpt so the caller never echoes the full credential.
func scanForTokenLeak(data []byte) (string, bool) {
	loc := tokenLeakRe.FindIndex(data)
	if loc == nil {
		return "", false
	}
	end := loc[0] + 40
	if end > len(data) {
		end = len(data)
	}
	return string(data[loc[0]:end]) + "...", true
}
