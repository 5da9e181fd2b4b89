package veilrules

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/varalys/veil/internal/types"
)

// packManifest is the optional 00_manifest.toml steering a pack directory's
// file load order.
type packManifest struct {
	Files []string `toml:"files"`
}

// packFile is the [[rules]] table shape every pack .toml file contains.
type packFile struct {
	Rules []packRule `toml:"rules"`
}

type packRule struct {
	ID          string   `toml:"id"`
	Pattern     string   `toml:"pattern"`
	Description string   `toml:"description"`
	Severity    string   `toml:"severity"`
	Category    string   `toml:"category"`
	Tags        []string `toml:"tags"`
	Placeholder string   `toml:"placeholder"`
}

// remoteAllowedFields restricts what a remote rule file may declare: it may
// never define a validator, since validators are native-code predicates.
// packRule has no validator field at all, so remote and local packs share
// this same decoding path; the restriction is structural, not a runtime check.

// LoadPack loads every rule file in a directory into dst, in manifest order
// if 00_manifest.toml exists and lists files, else in lexicographic .toml
// order. Duplicate ids across files loaded by the same call are a hard
// error, since a pack is expected to be internally consistent.
func LoadPack(dst *Set, dir string) error {
	names, err := packFileOrder(dir)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("veilrules: read pack file %s: %w", path, err)
		}
		var pf packFile
		if err := toml.Unmarshal(b, &pf); err != nil {
			return fmt.Errorf("veilrules: parse pack file %s: %w", path, err)
		}
		for _, pr := range pf.Rules {
			if seen[pr.ID] {
				return fmt.Errorf("veilrules: duplicate rule id %q in pack %s", pr.ID, dir)
			}
			seen[pr.ID] = true
			rule, err := buildRule(pr)
			if err != nil {
				return fmt.Errorf("veilrules: pack file %s: %w", path, err)
			}
			if err := dst.Add(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadRemote merges rules fetched over HTTPS into dst. Remote rules are
// structurally incapable of declaring a validator (packRule has no such
// field), satisfying the "remote rules may not declare validators"
// constraint by construction.
func LoadRemote(dst *Set, data []byte, sourceLabel string) error {
	var pf packFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("veilrules: parse remote rules from %s: %w", sourceLabel, err)
	}
	for _, pr := range pf.Rules {
		rule, err := buildRule(pr)
		if err != nil {
			return fmt.Errorf("veilrules: remote rules from %s: %w", sourceLabel, err)
		}
		if err := dst.Add(rule); err != nil {
			return err
		}
	}
	return nil
}

// ApplyOverride inserts or replaces the rule for id from the given fields,
// the same validation and compile path LoadPack uses. It is the entry
// point config-layer rule overrides use to mutate a Set built
// from Builtin()+LoadPack.
func ApplyOverride(dst *Set, id, pattern, severity, description string, tags []string) error {
	rule, err := buildRule(packRule{ID: id, Pattern: pattern, Description: description, Severity: severity, Tags: tags})
	if err != nil {
		return fmt.Errorf("veilrules: config override: %w", err)
	}
	return dst.Add(rule)
}

func packFileOrder(dir string) ([]string, error) {
	manifestPath := filepath.Join(dir, "00_manifest.toml")
	if b, err := os.ReadFile(manifestPath); err == nil {
		var m packManifest
		if err := toml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("veilrules: parse manifest %s: %w", manifestPath, err)
		}
		if len(m.Files) > 0 {
			return m.Files, nil
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("veilrules: read manifest %s: %w", manifestPath, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("veilrules: read pack dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".toml" || e.Name() == "00_manifest.toml" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

var validSeverities = map[string]types.Severity{
	"low":      types.SevLow,
	"medium":   types.SevMedium,
	"high":     types.SevHigh,
	"critical": types.SevCritical,
}

func buildRule(pr packRule) (*Rule, error) {
	if pr.ID == "" {
		return nil, fmt.Errorf("rule has empty id")
	}
	if pr.Pattern == "" {
		return nil, fmt.Errorf("rule %q has empty pattern", pr.ID)
	}
	re, err := regexp.Compile(pr.Pattern)
	if err != nil {
		return nil, fmt.Errorf("rule %q has invalid pattern %q: %w", pr.ID, pr.Pattern, err)
	}
	sev, ok := validSeverities[pr.Severity]
	if !ok {
		return nil, fmt.Errorf("rule %q has unknown severity %q", pr.ID, pr.Severity)
	}
	return &Rule{
		ID:          pr.ID,
		Regex:       re,
		Description: pr.Description,
		Severity:    sev,
		BaseScore:   sev.DefaultScore(),
		Category:    pr.Category,
		Tags:        pr.Tags,
		Placeholder: pr.Placeholder,
	}, nil
}
