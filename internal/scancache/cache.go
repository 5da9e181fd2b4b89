// Package cache lets repeat scans of the same tree skip files whose
// content hasn't changed, reusing the findings recorded for them last time.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/varalys/veil/internal/types"
)

// Entry is one file's last-seen content hash and the findings it produced.
type Entry struct {
	Hash     string          `json:"hash"`
	Findings []types.Finding `json:"findings"`
}

// DB maps a tree's relative file paths to their cached scan outcome. Safe
// for concurrent use by scanwalk's worker pool.
type DB struct {
	mu      sync.Mutex
	Entries map[string]Entry `json:"entries"`
}

func dbPath(root string) string {
	gitDir := filepath.Join(root, ".git")
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		return filepath.Join(gitDir, "veil_scan_cache.json")
	}
	return filepath.Join(root, ".veil_scan_cache.json")
}

// Load reads the cache for root, returning an empty DB (not an error the
// caller needs to act on) if no cache file exists yet.
func Load(root string) (*DB, error) {
	data, err := os.ReadFile(dbPath(root))
	if err != nil {
		return &DB{Entries: map[string]Entry{}}, err
	}
	var db DB
	if err := json.Unmarshal(data, &db); err != nil {
		return &DB{Entries: map[string]Entry{}}, err
	}
	if db.Entries == nil {
		db.Entries = map[string]Entry{}
	}
	return &db, nil
}

// Save persists db for root, replacing any previous cache.
func Save(root string, db *DB) error {
	db.mu.Lock()
	data, err := json.MarshalIndent(db, "", "  ")
	db.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(dbPath(root), data, 0o644)
}

// Get returns the findings cached for relPath if data's hash still matches
// what was stored for it.
func (db *DB) Get(relPath string, data []byte) ([]types.Finding, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	e, ok := db.Entries[relPath]
	if !ok || e.Hash != Hash(data) {
		return nil, false
	}
	return e.Findings, true
}

// Put records findings as the scan outcome for relPath's current content.
func (db *DB) Put(relPath string, data []byte, findings []types.Finding) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Entries[relPath] = Entry{Hash: Hash(data), Findings: findings}
}

// Hash is a fast, non-cryptographic fingerprint of file content, good
// enough for change detection between scans. Never used for anything
// security-sensitive: baseline fingerprints use SHA-256 for that.
func Hash(b []byte) string {
	sum := xxhash.Sum64(b)
	var buf [16]byte
	const hexDigits = "0123456789abcdef"
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[sum&0xF]
		sum >>= 4
	}
	return string(buf[:])
}
