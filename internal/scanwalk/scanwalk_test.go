package scanwalk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/varalys/veil/internal/types"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// processEveryLine emits one finding per line, enough to exercise limit
// accounting without a real rule set.
func processEveryLine(relPath string, data []byte) []types.Finding {
	var out []types.Finding
	for i, n := 0, 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			n++
			out = append(out, types.Finding{Path: relPath, Line: n, RuleID: "test.every_line", Severity: types.SevLow})
		}
	}
	return out
}

func TestRun_BinarySkip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bin.dat", []byte{0x48, 0x65, 0x6C, 0x6C, 0x6F, 0x00, 0x42, 0x69, 0x6E})

	res, err := Run(context.Background(), Config{Root: dir}, nil, processEveryLine)
	require.NoError(t, err)
	require.Equal(t, 1, res.SkippedFiles)
	require.Equal(t, 0, res.ScannedFiles)
	require.Len(t, res.Findings, 1)
	require.Equal(t, RuleBinaryFile, res.Findings[0].RuleID)
	require.Equal(t, types.GradeSafe, res.Findings[0].Grade)
}

func TestRun_OversizeSyntheticFinding(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.txt", make([]byte, 2048))

	res, err := Run(context.Background(), Config{Root: dir, MaxFileSize: 1024}, nil, processEveryLine)
	require.NoError(t, err)
	require.Equal(t, 1, res.SkippedFiles)
	require.Len(t, res.Findings, 1)
	require.Equal(t, RuleMaxFileSize, res.Findings[0].RuleID)
	require.Equal(t, 100, res.Findings[0].Score)
	require.Equal(t, types.GradeCritical, res.Findings[0].Grade)
}

func TestRun_FindingLimitNeverExceeded(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		writeFile(t, dir, filepath.Join("src", string(rune('a'+i))+".txt"), []byte("one\ntwo\nthree\nfour\nfive"))
	}

	const limit = 7
	res, err := Run(context.Background(), Config{Root: dir, MaxFindings: limit, Threads: 4}, nil, processEveryLine)
	require.NoError(t, err)
	require.True(t, res.LimitReached)
	require.LessOrEqual(t, len(res.Findings), limit)
}

func TestRun_DefaultExcludesSkipVendorDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.txt", []byte("hello"))
	writeFile(t, dir, filepath.Join("node_modules", "dep.txt"), []byte("hello"))
	writeFile(t, dir, filepath.Join(".git", "config"), []byte("hello"))

	res, err := Run(context.Background(), Config{Root: dir, DefaultExcludes: true}, nil, processEveryLine)
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalFiles)
	require.Equal(t, "keep.txt", res.Findings[0].Path)
}

func TestRun_GlobFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", []byte("x"))
	writeFile(t, dir, "b.txt", []byte("x"))

	res, err := Run(context.Background(), Config{Root: dir, IncludeGlobs: []string{"**/*.go"}}, nil, processEveryLine)
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalFiles)
	require.Equal(t, "a.go", res.Findings[0].Path)

	res, err = Run(context.Background(), Config{Root: dir, ExcludeGlobs: []string{"**/*.go"}}, nil, processEveryLine)
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalFiles)
	require.Equal(t, "b.txt", res.Findings[0].Path)
}

func TestLooksBinary(t *testing.T) {
	require.True(t, LooksBinary([]byte{'a', 0x00, 'b'}))
	require.True(t, LooksBinary([]byte{0xFF, 0xFE, 0x00, 0x41}))
	require.False(t, LooksBinary([]byte("plain utf-8 text\nwith lines")))
	require.False(t, LooksBinary([]byte("日本語のテキスト")))
}

type memCache struct {
	entries map[string][]types.Finding
	hits    int
}

func (c *memCache) Get(relPath string, data []byte) ([]types.Finding, bool) {
	fs, ok := c.entries[relPath]
	if ok {
		c.hits++
	}
	return fs, ok
}

func (c *memCache) Put(relPath string, data []byte, findings []types.Finding) {
	c.entries[relPath] = findings
}

func TestRun_CacheSplicesPriorFindings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("one"))

	cache := &memCache{entries: map[string][]types.Finding{}}
	cfg := Config{Root: dir, Cache: cache}

	first, err := Run(context.Background(), cfg, nil, processEveryLine)
	require.NoError(t, err)
	require.Len(t, first.Findings, 1)
	require.Zero(t, cache.hits)

	second, err := Run(context.Background(), cfg, nil, func(string, []byte) []types.Finding {
		t.Fatal("process must not run on a cache hit")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, cache.hits)
	require.Equal(t, first.Findings, second.Findings)
}
