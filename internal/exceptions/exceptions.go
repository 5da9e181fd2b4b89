// Package exceptions implements the TOML-backed exception registry that
// lets a reviewer mark a specific finding as accepted risk without
// suppressing the whole rule.
package exceptions

import (
	"encoding/base32"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/varalys/veil/internal/filelock"
	"github.com/varalys/veil/internal/types"
	"lukechampine.com/blake3"
)

var findingIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// FindingID derives the stable identifier an exception is keyed on: a BLAKE3
// digest over rule id, path, the match's line/column span, and the BLAKE3 of
// the whitespace-trimmed capture, rendered as "fx_" plus lowercase unpadded
// base32. Distinct from the baseline fingerprint: the span and raw capture
// participate here, the masked snippet does not.
func FindingID(f types.Finding) types.FindingId {
	capture := blake3.Sum256([]byte(strings.TrimSpace(f.Match)))

	h := blake3.New(32, nil)
	h.Write([]byte(f.RuleID))
	h.Write([]byte{0})
	h.Write([]byte(f.Path))
	h.Write([]byte{0})
	for _, n := range []int{f.Line, f.StartCol, f.Line, f.EndCol} {
		h.Write([]byte(strconv.Itoa(n)))
		h.Write([]byte{0})
	}
	h.Write(capture[:])

	sum := h.Sum(nil)
	return types.FindingId("fx_" + strings.ToLower(findingIDEncoding.EncodeToString(sum)))
}

// Load reads the registry at path under a shared non-blocking lock.
// A missing file is not itself an error at this layer; callers decide
// whether that is fatal (mutating commands) or a soft empty registry
// (non-mutating commands), per strict-mode rules.
func Load(path string) (*types.ExceptionRegistry, error) {
	lock, err := filelock.AcquireShared(path + ".lock")
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("exceptions: read %s: %w", path, err)
	}
	var reg types.ExceptionRegistry
	if err := toml.Unmarshal(b, &reg); err != nil {
		return nil, fmt.Errorf("exceptions: parse %s: %w", path, err)
	}
	if reg.Version != types.ExceptionRegistrySchema {
		return nil, fmt.Errorf("exceptions: %s: unsupported version %d (want %d)", path, reg.Version, types.ExceptionRegistrySchema)
	}
	return &reg, nil
}

// Save writes the registry to path under an exclusive non-blocking lock,
// via the atomic tmp-file+rename protocol, with exceptions in canonical
// (id-ascending) order.
func Save(path string, reg types.ExceptionRegistry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("exceptions: create %s: %w", dir, err)
		}
	}
	lock, err := filelock.Acquire(path + ".lock")
	if err != nil {
		return err
	}
	defer lock.Release()

	sort.Slice(reg.Exceptions, func(i, j int) bool {
		return reg.Exceptions[i].ID < reg.Exceptions[j].ID
	})

	b, err := toml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("exceptions: marshal: %w", err)
	}
	return atomicWrite(path, b)
}

func atomicWrite(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp.%d.%d", path, os.Getpid(), time.Now().UnixNano())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("exceptions: create tmp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("exceptions: write tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("exceptions: fsync tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("exceptions: rename: %w", err)
	}
	return nil
}

// Check returns the exception state for id as of now.
func Check(reg *types.ExceptionRegistry, id types.FindingId, now time.Time) types.ExceptionState {
	if reg == nil {
		return types.ExceptionNotExcepted
	}
	for _, e := range reg.Exceptions {
		if e.ID != id {
			continue
		}
		if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
			return types.ExceptionExpired
		}
		return types.ExceptionActive
	}
	return types.ExceptionNotExcepted
}

// Add inserts or replaces the exception for id.
func Add(reg *types.ExceptionRegistry, exc types.Exception) {
	for i, e := range reg.Exceptions {
		if e.ID == exc.ID {
			reg.Exceptions[i] = exc
			return
		}
	}
	reg.Exceptions = append(reg.Exceptions, exc)
}

// Remove drops the exception for id, reporting whether anything changed.
func Remove(reg *types.ExceptionRegistry, id types.FindingId) bool {
	for i, e := range reg.Exceptions {
		if e.ID == id {
			reg.Exceptions = append(reg.Exceptions[:i], reg.Exceptions[i+1:]...)
			return true
		}
	}
	return false
}

// Cleanup drops every expired exception as of now and returns how many
// were removed.
func Cleanup(reg *types.ExceptionRegistry, now time.Time) int {
	kept := reg.Exceptions[:0]
	removed := 0
	for _, e := range reg.Exceptions {
		if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	reg.Exceptions = kept
	return removed
}
