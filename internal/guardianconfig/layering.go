// Package guardianconfig implements the three-tier TOML configuration
// layering (user -> org -> repo) that produces veil's effective rule and
// scan configuration, distinct from the ambient YAML convenience config in
// internal/veilconfig.
package guardianconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
)

// RuleOverride is one [rules.<id>] entry a config layer may declare.
type RuleOverride struct {
	Pattern     string   `toml:"pattern"`
	Severity    string   `toml:"severity"`
	Description string   `toml:"description"`
	Tags        []string `toml:"tags"`
}

// File is the on-disk shape of one org/user/repo TOML layer.
type File struct {
	Include  []string                `toml:"include"`
	Ignore   []string                `toml:"ignore"`
	Threads  *int                    `toml:"threads"`
	MaskMode *string                 `toml:"mask_mode"`
	Rules    map[string]RuleOverride `toml:"rules"`
}

// Effective is the merged configuration after applying all layers in
// User -> Org -> Repo order (later overrides earlier).
type Effective struct {
	Include  []string
	Ignore   []string
	Threads  int
	MaskMode string
	Rules    map[string]RuleOverride
}

// loadMode controls whether a missing/unreadable file at a given path is
// fatal (strict, for explicit paths from an env var) or silently skipped
// (soft, for conventional fallback locations).
type loadMode int

const (
	strict loadMode = iota
	soft
)

func load(path string, mode loadMode) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && mode == soft {
			return nil, nil
		}
		return nil, fmt.Errorf("guardianconfig: read %s: %w", path, err)
	}
	var f File
	if err := toml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("guardianconfig: parse %s: %w", path, err)
	}
	if err := Validate(f); err != nil {
		return nil, fmt.Errorf("guardianconfig: %s: %w", path, err)
	}
	return &f, nil
}

// resolveOrgLayer follows the org-layer fallback chain: explicit env (strict)
// -> XDG/HOME veil/org.toml (soft) -> /etc/veil/org.toml (soft) -> legacy
// VEIL_ORG_RULES path (soft).
func resolveOrgLayer() (*File, error) {
	if p := os.Getenv("VEIL_ORG_CONFIG"); p != "" {
		return load(p, strict)
	}
	if base := xdgConfigHome(); base != "" {
		if f, err := load(filepath.Join(base, "veil", "org.toml"), soft); err != nil {
			return nil, err
		} else if f != nil {
			return f, nil
		}
	}
	if f, err := load("/etc/veil/org.toml", soft); err != nil {
		return nil, err
	} else if f != nil {
		return f, nil
	}
	if p := os.Getenv("VEIL_ORG_RULES"); p != "" {
		return load(p, soft)
	}
	return nil, nil
}

// resolveUserLayer: explicit env (strict) else XDG veil/veil.toml (soft).
func resolveUserLayer() (*File, error) {
	if p := os.Getenv("VEIL_USER_CONFIG"); p != "" {
		return load(p, strict)
	}
	if base := xdgConfigHome(); base != "" {
		return load(filepath.Join(base, "veil", "veil.toml"), soft)
	}
	return nil, nil
}

// resolveRepoLayer: explicit path (strict) or default ./veil.toml (soft).
func resolveRepoLayer(explicitPath string) (*File, error) {
	if explicitPath != "" {
		return load(explicitPath, strict)
	}
	return load("veil.toml", soft)
}

func xdgConfigHome() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return base
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config")
}

// Load resolves and merges the User -> Org -> Repo layers into the
// effective configuration. repoConfigPath, if non-empty, is used as an
// explicit (strict) repo config path instead of the "./veil.toml" default.
func Load(repoConfigPath string) (Effective, error) {
	eff := Effective{Threads: 0, MaskMode: "redact", Rules: map[string]RuleOverride{}}

	user, err := resolveUserLayer()
	if err != nil {
		return Effective{}, err
	}
	org, err := resolveOrgLayer()
	if err != nil {
		return Effective{}, err
	}
	repo, err := resolveRepoLayer(repoConfigPath)
	if err != nil {
		return Effective{}, err
	}

	for _, layer := range []*File{user, org, repo} {
		merge(&eff, layer)
	}
	return eff, nil
}

func merge(eff *Effective, f *File) {
	if f == nil {
		return
	}
	eff.Include = append(eff.Include, f.Include...)
	eff.Ignore = append(eff.Ignore, f.Ignore...)
	if f.Threads != nil {
		eff.Threads = *f.Threads
	}
	if f.MaskMode != nil {
		eff.MaskMode = *f.MaskMode
	}
	for id, override := range f.Rules {
		eff.Rules[id] = override
	}
}

var validSeverityStrings = map[string]bool{
	"low": true, "medium": true, "high": true, "critical": true,
}

// Validate rejects malformed configuration files: empty
// patterns, uncompilable regex, unknown severity strings, and
// mask_mode=plain in any layer.
func Validate(f File) error {
	if f.MaskMode != nil && *f.MaskMode == "plain" {
		return fmt.Errorf("mask_mode=plain is not permitted in config files")
	}
	for id, r := range f.Rules {
		if r.Pattern == "" {
			return fmt.Errorf("rule %q has empty pattern", id)
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("rule %q has invalid pattern %q: %w", id, r.Pattern, err)
		}
		if r.Severity != "" && !validSeverityStrings[r.Severity] {
			return fmt.Errorf("rule %q has unknown severity %q", id, r.Severity)
		}
	}
	return nil
}

