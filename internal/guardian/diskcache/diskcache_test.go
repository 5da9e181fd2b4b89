package diskcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/varalys/veil/internal/types"
)

func TestWriteThenRead(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	require.NoError(t, s.Write("npm:left-pad:1.3.0", []byte(`{"hello":"world"}`)))

	hit, err := s.Read("npm:left-pad:1.3.0")
	require.NoError(t, err)
	require.Equal(t, SourcePrimary, hit.Source)
	require.False(t, hit.Migrated)
	require.JSONEq(t, `{"hello":"world"}`, string(hit.Data))

	// the v1 path should exist on disk at the normalized key.
	_, err = os.Stat(filepath.Join(root, "vulns", "v1", NormalizeKey("npm:left-pad:1.3.0")+".json"))
	require.NoError(t, err)
}

func TestReadMiss(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Read("nope")
	require.ErrorIs(t, err, ErrMiss)
}

func TestLegacyMigration(t *testing.T) {
	root := t.TempDir()
	legacyDir := filepath.Join(root, "vulns")
	require.NoError(t, os.MkdirAll(legacyDir, 0o755))
	key := NormalizeKey("rust:serde:1.0.193")
	require.NoError(t, os.WriteFile(filepath.Join(legacyDir, key+".json"), []byte(`{"legacy":true}`), 0o644))

	s := NewStore(root)
	hit, err := s.Read("rust:serde:1.0.193")
	require.NoError(t, err)
	require.Equal(t, SourceLegacy, hit.Source)
	require.True(t, hit.Migrated)

	// the legacy bytes come back stamped into the v1 envelope.
	var env types.CacheEntry[json.RawMessage]
	require.NoError(t, json.Unmarshal(hit.Data, &env))
	require.Equal(t, 1, env.Meta.Schema)
	require.Equal(t, "rust:serde:1.0.193", env.Meta.Key)
	require.Equal(t, "legacy_migration", env.Meta.Source)
	require.NotZero(t, env.Meta.FetchedAt)
	require.JSONEq(t, `{"legacy":true}`, string(env.Payload))

	// second read now comes from the migrated v1 file, envelope intact.
	hit2, err := s.Read("rust:serde:1.0.193")
	require.NoError(t, err)
	require.Equal(t, SourcePrimary, hit2.Source)
	require.False(t, hit2.Migrated)
	require.Equal(t, hit.Data, hit2.Data)
}

func TestLegacyMigrationKeepsExistingEnvelope(t *testing.T) {
	root := t.TempDir()
	legacyDir := filepath.Join(root, "vulns")
	require.NoError(t, os.MkdirAll(legacyDir, 0o755))
	key := NormalizeKey("npm:left-pad:1.3.0")
	legacy := `{"meta":{"schema":0,"key":"npm:left-pad:1.3.0","fetched_at_unix":1700000000,"ttl_seconds":3600,"etag":"\"v9\""},"payload":{"advisories":[]}}`
	require.NoError(t, os.WriteFile(filepath.Join(legacyDir, key+".json"), []byte(legacy), 0o644))

	s := NewStore(root)
	hit, err := s.Read("npm:left-pad:1.3.0")
	require.NoError(t, err)
	require.True(t, hit.Migrated)

	var env types.CacheEntry[json.RawMessage]
	require.NoError(t, json.Unmarshal(hit.Data, &env))
	require.Equal(t, 1, env.Meta.Schema)
	require.Equal(t, "legacy_migration", env.Meta.Source)
	require.Equal(t, int64(1700000000), env.Meta.FetchedAt)
	require.Equal(t, `"v9"`, env.Meta.ETag)
	require.JSONEq(t, `{"advisories":[]}`, string(env.Payload))
}

func TestEnsureV1DirQuarantinesConflictingFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vulns"), 0o755))
	// place a regular file where the v1 directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(root, "vulns", "v1"), []byte("not a directory"), 0o644))

	var quarantined string
	s := NewStore(root)
	s.OnConflict = func(path string) { quarantined = path }

	require.NoError(t, s.Write("pkg", []byte(`{}`)))
	require.NotEmpty(t, quarantined)
	info, err := os.Stat(quarantined)
	require.NoError(t, err)
	require.False(t, info.IsDir())

	info, err = os.Stat(filepath.Join(root, "vulns", "v1"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNormalizeKeyStableAndSafe(t *testing.T) {
	require.Equal(t, "npm_left-pad_1.3.0", NormalizeKey("npm:left-pad:1.3.0"))

	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	norm := NormalizeKey(long)
	require.LessOrEqual(t, len(norm), 64+1+16)

	// keys differing only in a substituted character must not collide.
	require.NotEqual(t, NormalizeKey("foo:bar"), NormalizeKey("foo_bar"))
}
