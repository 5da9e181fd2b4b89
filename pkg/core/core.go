// Package core is a small, stable facade over veil's internal scan
// pipeline for external integrations: a narrow surface third-party tools
// can depend on without importing internal packages directly.
package core

import (
	"context"
	"path/filepath"

	"github.com/varalys/veil/internal/ignore"
	"github.com/varalys/veil/internal/match"
	cache "github.com/varalys/veil/internal/scancache"
	"github.com/varalys/veil/internal/scanwalk"
	"github.com/varalys/veil/internal/types"
	"github.com/varalys/veil/internal/veilrules"
)

// Config controls a scan. It mirrors scanwalk.Config's knobs plus the
// masking mode applied to every finding's snippet.
type Config struct {
	Root            string
	Threads         int
	IncludeGlobs    string
	ExcludeGlobs    string
	MaxBytes        int64
	MaskMode        types.MaskMode
	DefaultExcludes bool
	MaxFindings     int

	// Incremental, when true, skips re-scanning files whose content hash
	// matches the previous scan of Root and reuses that run's findings.
	Incremental bool

	// Rules overrides the built-in rule set when non-nil, for callers that
	// layer pack, config, or remote rules on top of the defaults.
	Rules *veilrules.Set
}

// Finding is veil's line-level scan result.
type Finding = types.Finding

func (c Config) toScanwalk() scanwalk.Config {
	cfg := scanwalk.Config{
		Root:            c.Root,
		Threads:         c.Threads,
		MaxFileSize:     c.MaxBytes,
		DefaultExcludes: c.DefaultExcludes,
		MaxFindings:     c.MaxFindings,
	}
	if c.IncludeGlobs != "" {
		cfg.IncludeGlobs = []string{c.IncludeGlobs}
	}
	if c.ExcludeGlobs != "" {
		cfg.ExcludeGlobs = []string{c.ExcludeGlobs}
	}
	return cfg
}

// Scan runs the built-in rule set over cfg.Root and returns every finding,
// stably sorted by (path, line).
func Scan(cfg Config) ([]Finding, error) {
	result, err := ScanWithStats(cfg)
	if err != nil {
		return nil, err
	}
	return result.Findings, nil
}

// Result carries a scan's findings plus the execution statistics external
// callers commonly want (files scanned, limit-reached flag).
type Result struct {
	Findings     []Finding
	FilesScanned int
	FilesSkipped int
	TotalFiles   int
	LimitReached bool
}

// ScanWithStats runs a scan and returns the full Result, including
// statistics Scan discards.
func ScanWithStats(cfg Config) (Result, error) {
	mode := cfg.MaskMode
	if mode == "" {
		mode = types.MaskRedact
	}
	rules := cfg.Rules
	if rules == nil {
		rules = veilrules.Builtin()
	}

	var ign ignore.Matcher
	if m, err := ignore.Load(filepath.Join(cfg.Root, ".veilignore")); err == nil {
		ign = m
	}

	process := func(relPath string, data []byte) []types.Finding {
		return match.MatchText(relPath, data, rules, mode)
	}

	swCfg := cfg.toScanwalk()
	var db *cache.DB
	if cfg.Incremental {
		db, _ = cache.Load(cfg.Root)
		swCfg.Cache = db
	}

	res, err := scanwalk.Run(context.Background(), swCfg, ign, process)
	if err != nil {
		return Result{}, err
	}
	if cfg.Incremental {
		_ = cache.Save(cfg.Root, db)
	}
	return Result{
		Findings:     res.Findings,
		FilesScanned: res.ScannedFiles,
		FilesSkipped: res.SkippedFiles,
		TotalFiles:   res.TotalFiles,
		LimitReached: res.LimitReached,
	}, nil
}

// DetectorIDs returns the built-in rule ids, for callers that want to
// report or filter on what veil can detect without importing veilrules.
func DetectorIDs() []string {
	return veilrules.Builtin().SortedIDs()
}
