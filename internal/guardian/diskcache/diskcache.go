// Package diskcache is the versioned on-disk store backing the Guardian
// advisory cache: key normalization, atomic writes, advisory file locking,
// and migration of pre-versioning cache files into the v1 envelope.
package diskcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/varalys/veil/internal/filelock"
	"github.com/varalys/veil/internal/types"
	"lukechampine.com/blake3"
)

// ErrMiss is returned by Read when no entry (current or legacy) exists for
// the key.
var ErrMiss = errors.New("diskcache: miss")

// Source identifies which on-disk location satisfied a Read.
type Source string

const (
	SourcePrimary Source = "primary"
	SourceLegacy  Source = "legacy"
)

// Hit is the result of a successful Read.
type Hit struct {
	Data     []byte
	Source   Source
	Migrated bool
}

// Store roots a versioned cache at <root>/vulns/v1/<normalized_key>.json,
// consulting <root>/vulns/<normalized_key>.json as a legacy fallback for
// entries written before the v1 envelope existed.
type Store struct {
	Root string

	// OnConflict, if set, is called when the v1 directory path is occupied
	// by a stray file and must be quarantined (spec's "record the conflict
	// in metrics").
	OnConflict func(quarantinePath string)
}

// NewStore builds a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

var allowedKeyChar = regexp.MustCompile(`^[A-Za-z0-9._-]$`)

// NormalizeKey maps an arbitrary cache key to a filesystem-safe basename.
// Every character outside [A-Za-z0-9._-] becomes "_"; if any substitution
// happened, or the result exceeds 128 bytes, the prefix is truncated to 64
// bytes and suffixed with "-" plus the first 16 hex chars of
// blake3(original key), preventing collisions like "foo:bar" vs "foo_bar".
func NormalizeKey(key string) string {
	out := make([]byte, len(key))
	substituted := false
	for i := 0; i < len(key); i++ {
		c := key[i]
		if allowedKeyChar.MatchString(string(c)) {
			out[i] = c
		} else {
			out[i] = '_'
			substituted = true
		}
	}
	normalized := string(out)
	if !substituted && len(normalized) <= 128 {
		return normalized
	}
	prefix := normalized
	if len(prefix) > 64 {
		prefix = prefix[:64]
	}
	sum := blake3.Sum256([]byte(key))
	return fmt.Sprintf("%s-%x", prefix, sum[:8])
}

func (s *Store) v1Dir() string     { return filepath.Join(s.Root, "vulns", "v1") }
func (s *Store) legacyDir() string { return filepath.Join(s.Root, "vulns") }
func (s *Store) v1Path(key string) string {
	return filepath.Join(s.v1Dir(), NormalizeKey(key)+".json")
}
func (s *Store) legacyPath(key string) string {
	return filepath.Join(s.legacyDir(), NormalizeKey(key)+".json")
}

// ensureV1Dir creates the v1 directory, quarantining a conflicting file in
// its place first (spec's "hostile or stale" directory-path conflict).
func (s *Store) ensureV1Dir() error {
	dir := s.v1Dir()
	info, err := os.Stat(dir)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		quarantine := fmt.Sprintf("%s.corrupt_dirs_conflict.%d", dir, time.Now().UnixNano())
		if err := os.Rename(dir, quarantine); err != nil {
			return fmt.Errorf("diskcache: quarantine conflicting %s: %w", dir, err)
		}
		if s.OnConflict != nil {
			s.OnConflict(quarantine)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Read loads the cached bytes for key, preferring the v1 location and
// falling back to (and migrating) a legacy pre-v1 file. Returns ErrMiss if
// neither exists.
func (s *Store) Read(key string) (Hit, error) {
	if err := s.ensureV1Dir(); err != nil {
		return Hit{}, err
	}
	v1 := s.v1Path(key)

	lock, err := filelock.AcquireShared(v1 + ".lock")
	if err != nil {
		return Hit{}, err
	}
	data, readErr := os.ReadFile(v1)
	lock.Release()
	if readErr == nil {
		return Hit{Data: data, Source: SourcePrimary}, nil
	}
	if !os.IsNotExist(readErr) {
		return Hit{}, readErr
	}

	legacy := s.legacyPath(key)
	legacyLock, err := filelock.AcquireShared(legacy + ".lock")
	if err != nil {
		return Hit{}, err
	}
	legacyData, legacyErr := os.ReadFile(legacy)
	legacyLock.Release()
	if legacyErr != nil {
		if os.IsNotExist(legacyErr) {
			return Hit{}, ErrMiss
		}
		return Hit{}, legacyErr
	}

	stamped := stampLegacyEnvelope(key, legacyData)
	if err := s.Write(key, stamped); err != nil {
		return Hit{}, fmt.Errorf("diskcache: migrate legacy entry: %w", err)
	}
	return Hit{Data: stamped, Source: SourceLegacy, Migrated: true}, nil
}

// legacyTTLSeconds is the ttl_seconds stamped onto migrated entries, one
// day, matching the fetcher's default freshness window.
const legacyTTLSeconds = 24 * 60 * 60

// stampLegacyEnvelope rewrites a pre-versioning cache file into the v1
// envelope: schema_version 1, source "legacy_migration". A legacy file
// that already carries an envelope keeps its payload, etag, and fetch
// time; a bare payload is wrapped whole, timestamped now.
func stampLegacyEnvelope(key string, data []byte) []byte {
	var env types.CacheEntry[json.RawMessage]
	if err := json.Unmarshal(data, &env); err != nil || len(env.Payload) == 0 {
		env = types.CacheEntry[json.RawMessage]{Payload: json.RawMessage(data)}
	}
	env.Meta.Schema = 1
	env.Meta.Key = key
	env.Meta.Source = "legacy_migration"
	if env.Meta.FetchedAt == 0 {
		env.Meta.FetchedAt = time.Now().Unix()
	}
	if env.Meta.TTLSecond == 0 {
		env.Meta.TTLSecond = legacyTTLSeconds
	}
	stamped, err := json.Marshal(env)
	if err != nil {
		return data
	}
	return stamped
}

// Write persists data for key through the atomic rename protocol, guarded
// by an exclusive non-blocking lock.
func (s *Store) Write(key string, data []byte) error {
	if err := s.ensureV1Dir(); err != nil {
		return err
	}
	target := s.v1Path(key)

	lock, err := filelock.Acquire(target + ".lock")
	if err != nil {
		return err
	}
	defer lock.Release()

	return atomicWrite(target, data)
}

// atomicWrite writes data to a uniquely-named temp file in target's
// directory, fsyncs it, then renames it over target so no reader ever
// observes a partial file. Temp-name collisions (vanishingly rare, since
// the name embeds pid+nanos) are retried up to 3 times.
func atomicWrite(target string, data []byte) error {
	dir := filepath.Dir(target)
	base := filepath.Base(target)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp.%d.%d", base, os.Getpid(), time.Now().UnixNano()))
		f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if os.IsExist(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("diskcache: create tmp: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("diskcache: write tmp: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("diskcache: fsync tmp: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(tmp)
			return err
		}
		if err := os.Rename(tmp, target); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("diskcache: rename: %w", err)
		}
		return nil
	}
	return fmt.Errorf("diskcache: could not create unique tmp file: %w", lastErr)
}
