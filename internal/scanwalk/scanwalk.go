// Package scanwalk enumerates a filesystem tree and drives the parallel
// per-file scan pool: glob/ignore filtering, binary/oversize detection,
// and best-effort-under-parallelism global finding-limit enforcement.
package scanwalk

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"github.com/varalys/veil/internal/ignore"
	"github.com/varalys/veil/internal/types"
	"golang.org/x/sync/errgroup"
)

// Synthetic rule ids emitted directly by the walker rather than the line
// matcher.
const (
	RuleMaxFileSize = "MAX_FILE_SIZE"
	RuleBinaryFile  = "BINARY_FILE"
)

// DefaultMaxFileSize is the per-file size ceiling before a synthetic
// skip-finding is emitted instead of scanning the file.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

var defaultExcludeDirs = map[string]bool{
	".git": true, "node_modules": true, "target": true, "vendor": true,
	"dist": true, "build": true, "out": true, ".venv": true, "venv": true,
	"__pycache__": true, "coverage": true, "bin": true, "obj": true,
}

func isDefaultDirExcluded(name string) bool {
	return defaultExcludeDirs[name] || strings.HasPrefix(name, ".git")
}

// Config controls enumeration and per-file handling.
type Config struct {
	Root            string
	IncludeGlobs    []string
	ExcludeGlobs    []string
	MaxFileSize     int64
	Threads         int
	DefaultExcludes bool
	MaxFindings     int // 0 = unlimited
	Cache           FileCache
}

// FileCache lets Run skip re-scanning a file whose content hasn't changed
// since a prior run, reusing the findings recorded for it then.
type FileCache interface {
	Get(relPath string, data []byte) (findings []types.Finding, ok bool)
	Put(relPath string, data []byte, findings []types.Finding)
}

func (c Config) maxFileSize() int64 {
	if c.MaxFileSize > 0 {
		return c.MaxFileSize
	}
	return DefaultMaxFileSize
}

func (c Config) threads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.GOMAXPROCS(0)
}

// Result summarizes one scan invocation.
type Result struct {
	Findings     []types.Finding
	TotalFiles   int
	ScannedFiles int
	SkippedFiles int
	LimitReached bool
}

// file is one enumerated candidate awaiting the parallel pool.
type file struct {
	relPath string
	absPath string
	size    int64
}

// enumerate walks cfg.Root sequentially, applying glob and ignore filters,
// and returns the ordered candidate list the parallel pool will process.
func enumerate(cfg Config, ign ignore.Matcher) ([]file, error) {
	var out []file
	err := filepath.WalkDir(cfg.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if cfg.DefaultExcludes && p != cfg.Root && isDefaultDirExcluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(cfg.Root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !allowedByGlobs(rel, cfg.IncludeGlobs, cfg.ExcludeGlobs) {
			return nil
		}
		if ign != nil && ign.Match(rel) {
			return nil
		}
		info, infoErr := d.Info()
		var size int64
		if infoErr == nil {
			size = info.Size()
		}
		out = append(out, file{relPath: rel, absPath: p, size: size})
		return nil
	})
	return out, err
}

// ReadFn loads one file's bytes for scanning. Exists as a seam for blob
// sources other than the local filesystem (git tree/index objects).
type ReadFn func(f file) ([]byte, error)

// ProcessFn runs the rule set against one file's content and returns its
// findings, already in file-line order.
type ProcessFn func(relPath string, data []byte) []types.Finding

// Run enumerates cfg.Root then fans the candidates out across a bounded
// worker pool, respecting the global finding limit: each
// worker checks the shared counter before scanning a file and, if its
// own additions would overrun the budget, truncates its own findings to
// the remaining room. Overshoot across concurrent workers is accepted;
// the returned result never exceeds the configured limit.
func Run(ctx context.Context, cfg Config, ign ignore.Matcher, process ProcessFn) (Result, error) {
	return run(ctx, cfg, ign, readLocalFile, process)
}

func run(ctx context.Context, cfg Config, ign ignore.Matcher, read ReadFn, process ProcessFn) (Result, error) {
	candidates, err := enumerate(cfg, ign)
	if err != nil {
		return Result{}, err
	}

	var (
		findingCount int64
		limitReached int32
		scanned      int64
		skipped      int64
		mu           sync.Mutex
		all          []types.Finding
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.threads())

	for _, f := range candidates {
		f := f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			if cfg.MaxFindings > 0 && atomic.LoadInt64(&findingCount) >= int64(cfg.MaxFindings) {
				atomic.StoreInt32(&limitReached, 1)
				return nil
			}

			if f.size > cfg.maxFileSize() {
				atomic.AddInt64(&skipped, 1)
				mu.Lock()
				all = append(all, OversizeFinding(f.relPath))
				mu.Unlock()
				return nil
			}

			data, readErr := read(f)
			if readErr != nil {
				atomic.AddInt64(&skipped, 1)
				return nil
			}
			if LooksBinary(data) {
				atomic.AddInt64(&skipped, 1)
				mu.Lock()
				all = append(all, BinaryFinding(f.relPath))
				mu.Unlock()
				return nil
			}

			if cfg.Cache != nil {
				if cached, ok := cfg.Cache.Get(f.relPath, data); ok {
					atomic.AddInt64(&scanned, 1)
					mu.Lock()
					all = append(all, cached...)
					mu.Unlock()
					return nil
				}
			}

			atomic.AddInt64(&scanned, 1)
			findings := process(f.relPath, data)
			for i := range findings {
				findings[i].Path = f.relPath
			}
			if cfg.Cache != nil {
				cfg.Cache.Put(f.relPath, data, findings)
			}

			newTotal := atomic.AddInt64(&findingCount, int64(len(findings)))
			if cfg.MaxFindings > 0 && newTotal > int64(cfg.MaxFindings) {
				atomic.StoreInt32(&limitReached, 1)
				overrun := int(newTotal - int64(cfg.MaxFindings))
				keep := len(findings) - overrun
				if keep < 0 {
					keep = 0
				}
				findings = findings[:keep]
			}

			mu.Lock()
			all = append(all, findings...)
			mu.Unlock()
			return nil
		})
	}
	if werr := g.Wait(); werr != nil && werr != context.Canceled {
		return Result{}, werr
	}

	return Result{
		Findings:     all,
		TotalFiles:   len(candidates),
		ScannedFiles: int(scanned),
		SkippedFiles: int(skipped),
		LimitReached: atomic.LoadInt32(&limitReached) == 1,
	}, nil
}

// OversizeFinding is the synthetic skip-finding for a file exceeding
// max_file_size; also emitted by the git scanning modes.
func OversizeFinding(path string) types.Finding {
	return types.Finding{
		Path: path, Line: 0, RuleID: RuleMaxFileSize,
		Severity: types.SevHigh, Score: 100, Grade: types.GradeCritical,
		MaskedSnippet: "(file exceeds max_file_size)",
	}
}

// BinaryFinding is the synthetic skip-finding for binary content.
func BinaryFinding(path string) types.Finding {
	return types.Finding{
		Path: path, Line: 0, RuleID: RuleBinaryFile,
		Severity: types.SevMedium, Score: 0, Grade: types.GradeSafe,
		MaskedSnippet: "(binary file skipped)",
	}
}

// LooksBinary reports whether the first 8 KiB contain a zero byte or fail
// to decode as UTF-8; either marks the content binary and unscannable.
func LooksBinary(b []byte) bool {
	const sniffLen = 8 << 10
	n := len(b)
	if n > sniffLen {
		n = sniffLen
	}
	head := b[:n]
	for _, c := range head {
		if c == 0 {
			return true
		}
	}
	return !isValidUTF8Prefix(head)
}

// isValidUTF8Prefix reports whether head decodes cleanly as UTF-8. A
// truncated multi-byte sequence at the very end (a sniff-window artifact,
// not a real encoding error) is tolerated.
func isValidUTF8Prefix(head []byte) bool {
	for len(head) > 0 {
		r, size := utf8.DecodeRune(head)
		if r == utf8.RuneError && size <= 1 {
			if len(head) <= utf8.UTFMax {
				return true
			}
			return false
		}
		head = head[size:]
	}
	return true
}

func readLocalFile(f file) ([]byte, error) {
	return os.ReadFile(f.absPath)
}

func allowedByGlobs(rel string, include, exclude []string) bool {
	if len(include) > 0 && !matchAnyGlob(rel, include) {
		return false
	}
	if len(exclude) > 0 && matchAnyGlob(rel, exclude) {
		return false
	}
	return true
}

func matchAnyGlob(rel string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}
