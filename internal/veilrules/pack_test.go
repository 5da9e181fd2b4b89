package veilrules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadPackLexicographicOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10_first.toml", `
[[rules]]
id = "custom.a"
pattern = "AAA"
description = "a"
severity = "low"
`)
	writeFile(t, dir, "20_second.toml", `
[[rules]]
id = "custom.b"
pattern = "BBB"
description = "b"
severity = "high"
`)

	set := NewSet()
	require.NoError(t, LoadPack(set, dir))
	require.Equal(t, []string{"custom.a", "custom.b"}, set.IDs())
}

func TestLoadPackManifestOrderOverridesLexicographic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zzz.toml", `
[[rules]]
id = "custom.z"
pattern = "ZZZ"
description = "z"
severity = "low"
`)
	writeFile(t, dir, "aaa.toml", `
[[rules]]
id = "custom.a"
pattern = "AAA"
description = "a"
severity = "low"
`)
	writeFile(t, dir, "00_manifest.toml", `files = ["zzz.toml", "aaa.toml"]`)

	set := NewSet()
	require.NoError(t, LoadPack(set, dir))
	require.Equal(t, []string{"custom.z", "custom.a"}, set.IDs())
}

func TestLoadPackDuplicateIdIsHardError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.toml", `
[[rules]]
id = "dup"
pattern = "AAA"
description = "a"
severity = "low"
`)
	writeFile(t, dir, "b.toml", `
[[rules]]
id = "dup"
pattern = "BBB"
description = "b"
severity = "low"
`)

	set := NewSet()
	err := LoadPack(set, dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate rule id")
}

func TestLoadPackInvalidRegexIsHardError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.toml", `
[[rules]]
id = "bad"
pattern = "("
description = "a"
severity = "low"
`)

	set := NewSet()
	err := LoadPack(set, dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad")
}

func TestLoadPackUnknownSeverityIsHardError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.toml", `
[[rules]]
id = "bad-sev"
pattern = "AAA"
description = "a"
severity = "extreme"
`)

	set := NewSet()
	err := LoadPack(set, dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown severity")
}

func TestLoadRemoteMergesIntoExistingSet(t *testing.T) {
	set := Builtin()
	before := set.Len()

	remote := []byte(`
[[rules]]
id = "remote.custom"
pattern = "REMOTE_[A-Z]+"
description = "remote rule"
severity = "medium"
`)
	require.NoError(t, LoadRemote(set, remote, "https://example.com/rules.toml"))
	require.Equal(t, before+1, set.Len())

	r, ok := set.Get("remote.custom")
	require.True(t, ok)
	require.Nil(t, r.Validator)
}

func TestLoadPackOverridesBuiltinById(t *testing.T) {
	set := Builtin()
	var anID string
	for _, id := range set.IDs() {
		anID = id
		break
	}

	dir := t.TempDir()
	writeFile(t, dir, "override.toml", `
[[rules]]
id = "`+anID+`"
pattern = "OVERRIDDEN"
description = "overridden"
severity = "critical"
`)
	require.NoError(t, LoadPack(set, dir))
	r, ok := set.Get(anID)
	require.True(t, ok)
	require.Equal(t, "OVERRIDDEN", r.Regex.String())
}
