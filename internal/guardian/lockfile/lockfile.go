// Package lockfile parses dependency lockfiles into a sorted, deduplicated
// list of PackageRef values for the Guardian advisory lookup. Each parser
// targets one ecosystem's on-disk format; ParseFile dispatches by filename.
package lockfile

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/varalys/veil/internal/types"
	"gopkg.in/yaml.v3"
)

// ParseFile dispatches to the parser matching name's base filename.
func ParseFile(name string, data []byte) ([]types.PackageRef, error) {
	switch filepath.Base(name) {
	case "Cargo.lock":
		return ParseCargoLock(data)
	case "package-lock.json":
		return ParsePackageLockJSON(data)
	case "yarn.lock":
		return ParseYarnLock(data)
	case "pnpm-lock.yaml":
		return ParsePnpmLock(data)
	default:
		return nil, fmt.Errorf("lockfile: unrecognized lockfile %q", name)
	}
}

func dedupeSort(refs []types.PackageRef) []types.PackageRef {
	seen := make(map[types.PackageRef]bool, len(refs))
	out := make([]types.PackageRef, 0, len(refs))
	for _, r := range refs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ecosystem != out[j].Ecosystem {
			return out[i].Ecosystem < out[j].Ecosystem
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// --- Cargo.lock ---

type cargoLock struct {
	Package []struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

// ParseCargoLock extracts every package from a Cargo.lock TOML document.
func ParseCargoLock(data []byte) ([]types.PackageRef, error) {
	var doc cargoLock
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("lockfile: parse Cargo.lock: %w", err)
	}
	refs := make([]types.PackageRef, 0, len(doc.Package))
	for _, p := range doc.Package {
		if p.Name == "" || p.Version == "" {
			continue
		}
		refs = append(refs, types.PackageRef{Ecosystem: types.EcosystemRust, Name: p.Name, Version: p.Version})
	}
	return dedupeSort(refs), nil
}

// --- package-lock.json ---

type npmPackageEntry struct {
	Version  string `json:"version"`
	Link     bool   `json:"link"`
	Resolved string `json:"resolved"`
}

type npmDependencyEntry struct {
	Version      string                        `json:"version"`
	Dependencies map[string]npmDependencyEntry `json:"dependencies"`
}

type npmLock struct {
	Packages     map[string]npmPackageEntry    `json:"packages"`
	Dependencies map[string]npmDependencyEntry `json:"dependencies"`
}

var versionStartsDigit = regexp.MustCompile(`^\d`)

// ParsePackageLockJSON extracts PackageRefs from package-lock.json. It
// prefers the npm v7+ "packages" map (keyed by node_modules path) and falls
// back to the npm v1 recursive "dependencies" tree when "packages" is absent
// or empty. Entries whose version is not a literal version (a git/url/file
// ref) are dropped.
func ParsePackageLockJSON(data []byte) ([]types.PackageRef, error) {
	var doc npmLock
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("lockfile: parse package-lock.json: %w", err)
	}

	var refs []types.PackageRef
	if len(doc.Packages) > 0 {
		for key, entry := range doc.Packages {
			if key == "" || entry.Link {
				continue
			}
			name := npmNameFromPath(key)
			if name == "" || !versionStartsDigit.MatchString(entry.Version) {
				continue
			}
			refs = append(refs, types.PackageRef{Ecosystem: types.EcosystemNpm, Name: name, Version: entry.Version})
		}
		return dedupeSort(refs), nil
	}

	for name, entry := range doc.Dependencies {
		collectNpmV1(name, entry, &refs)
	}
	return dedupeSort(refs), nil
}

func collectNpmV1(name string, entry npmDependencyEntry, out *[]types.PackageRef) {
	if versionStartsDigit.MatchString(entry.Version) {
		*out = append(*out, types.PackageRef{Ecosystem: types.EcosystemNpm, Name: name, Version: entry.Version})
	}
	for childName, child := range entry.Dependencies {
		collectNpmV1(childName, child, out)
	}
}

// npmNameFromPath extracts the package name from an npm v7+ "packages" key,
// which is a node_modules-relative path; the name is the path component
// after the final "node_modules/", keeping any scope prefix.
func npmNameFromPath(key string) string {
	idx := strings.LastIndex(key, "node_modules/")
	if idx < 0 {
		return ""
	}
	return key[idx+len("node_modules/"):]
}

// --- yarn.lock ---

// ParseYarnLock detects Berry (YAML) vs Classic (stanza) format and
// dispatches accordingly.
func ParseYarnLock(data []byte) ([]types.PackageRef, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err == nil {
		if _, ok := doc["__metadata"]; ok {
			return parseYarnBerry(doc)
		}
	}
	return parseYarnClassic(data)
}

var yarnProtocolSkip = []string{"workspace:", "patch:", "portal:", "link:", "file:"}

func parseYarnBerry(doc map[string]interface{}) ([]types.PackageRef, error) {
	var refs []types.PackageRef
	for key, v := range doc {
		if key == "__metadata" {
			continue
		}
		entry, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		if hasYarnProtocol(key) {
			continue
		}
		version, _ := entry["version"].(string)
		if version == "" {
			continue
		}
		for _, descriptor := range strings.Split(key, ", ") {
			name := yarnNameFromDescriptor(descriptor)
			if name == "" {
				continue
			}
			refs = append(refs, types.PackageRef{Ecosystem: types.EcosystemNpm, Name: name, Version: version})
		}
	}
	return dedupeSort(refs), nil
}

func hasYarnProtocol(key string) bool {
	for _, descriptor := range strings.Split(key, ", ") {
		for _, proto := range yarnProtocolSkip {
			if strings.Contains(descriptor, "@"+proto) || strings.Contains(descriptor, ":"+proto) {
				return true
			}
		}
	}
	return false
}

// yarnNameFromDescriptor extracts the package name from a Berry descriptor
// like "left-pad@npm:1.3.0" or "@babel/core@npm:^7.0.0", finding the "@"
// that separates name from range while skipping a leading scope "@".
func yarnNameFromDescriptor(descriptor string) string {
	descriptor = strings.TrimSpace(descriptor)
	scoped := strings.HasPrefix(descriptor, "@")
	search := descriptor
	if scoped {
		search = descriptor[1:]
	}
	idx := strings.Index(search, "@")
	if idx < 0 {
		return ""
	}
	name := search[:idx]
	if scoped {
		name = "@" + name
	}
	return name
}

// parseYarnClassic is a stanza-based parser for the Classic yarn.lock
// format: header lines ending in ":" list comma-separated selectors
// (respecting double-quoted commas), followed by indented "version \"x\""
// lines.
func parseYarnClassic(data []byte) ([]types.PackageRef, error) {
	var refs []types.PackageRef
	lines := strings.Split(string(data), "\n")
	var pendingSelectors []string
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			if strings.HasSuffix(trimmed, ":") {
				header := strings.TrimSuffix(trimmed, ":")
				pendingSelectors = splitYarnSelectors(header)
			}
			continue
		}
		if pendingSelectors == nil {
			continue
		}
		if strings.HasPrefix(trimmed, "version ") {
			version := strings.Trim(strings.TrimPrefix(trimmed, "version "), `"`)
			for _, sel := range pendingSelectors {
				name := yarnClassicName(sel)
				if name == "" {
					continue
				}
				refs = append(refs, types.PackageRef{Ecosystem: types.EcosystemNpm, Name: name, Version: version})
			}
			pendingSelectors = nil
		}
	}
	return dedupeSort(refs), nil
}

// splitYarnSelectors splits a Classic header line on commas, respecting
// commas embedded inside double-quoted selectors.
func splitYarnSelectors(header string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for _, r := range header {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == ',' && !inQuote:
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, strings.TrimSpace(cur.String()))
	}
	return out
}

// yarnClassicName extracts the package name from a Classic selector such as
// `left-pad@^1.3.0` or `"@babel/core@^7.0.0"`, finding the "@" that follows
// an optional leading scope.
func yarnClassicName(selector string) string {
	selector = strings.Trim(selector, `"`)
	scoped := strings.HasPrefix(selector, "@")
	search := selector
	if scoped {
		search = selector[1:]
	}
	idx := strings.Index(search, "@")
	if idx < 0 {
		return ""
	}
	name := search[:idx]
	if scoped {
		name = "@" + name
	}
	return name
}

// --- pnpm-lock.yaml ---

type pnpmLock struct {
	Packages  map[string]interface{} `yaml:"packages"`
	Snapshots map[string]interface{} `yaml:"snapshots"`
}

var peerSuffix = regexp.MustCompile(`\([^()]*\)$`)

var pnpmSkipPrefixes = []string{"file:", "link:", "workspace:"}

// ParsePnpmLock extracts PackageRefs from both the v5/v6 "packages" map
// (slash-form keys) and the v9 "packages"/"snapshots" maps (at-form keys),
// stripping any trailing peer-dependency hash suffix.
func ParsePnpmLock(data []byte) ([]types.PackageRef, error) {
	var doc pnpmLock
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("lockfile: parse pnpm-lock.yaml: %w", err)
	}
	var refs []types.PackageRef
	for key := range doc.Packages {
		if ref, ok := pnpmParseKey(key); ok {
			refs = append(refs, ref)
		}
	}
	for key := range doc.Snapshots {
		if ref, ok := pnpmParseKey(key); ok {
			refs = append(refs, ref)
		}
	}
	return dedupeSort(refs), nil
}

func pnpmParseKey(key string) (types.PackageRef, bool) {
	key = peerSuffix.ReplaceAllString(key, "")
	for _, skip := range pnpmSkipPrefixes {
		if strings.Contains(key, skip) {
			return types.PackageRef{}, false
		}
	}
	if strings.HasPrefix(key, "/") {
		return pnpmParseSlashForm(strings.TrimPrefix(key, "/"))
	}
	return pnpmParseAtForm(key)
}

// pnpmParseSlashForm handles v5/v6 keys: "/pkg/version" or
// "/@scope/pkg/version".
func pnpmParseSlashForm(rest string) (types.PackageRef, bool) {
	if strings.HasPrefix(rest, "@") {
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) < 3 {
			return types.PackageRef{}, false
		}
		name := parts[0] + "/" + parts[1]
		return types.PackageRef{Ecosystem: types.EcosystemNpm, Name: name, Version: parts[2]}, true
	}
	idx := strings.LastIndex(rest, "/")
	if idx < 0 {
		return types.PackageRef{}, false
	}
	return types.PackageRef{Ecosystem: types.EcosystemNpm, Name: rest[:idx], Version: rest[idx+1:]}, true
}

// pnpmParseAtForm handles v9 keys: "pkg@version" or "@scope/pkg@version".
func pnpmParseAtForm(key string) (types.PackageRef, bool) {
	scoped := strings.HasPrefix(key, "@")
	search := key
	if scoped {
		search = key[1:]
	}
	idx := strings.LastIndex(search, "@")
	if idx < 0 {
		return types.PackageRef{}, false
	}
	name := search[:idx]
	if scoped {
		name = "@" + name
	}
	version := search[idx+1:]
	if name == "" || version == "" {
		return types.PackageRef{}, false
	}
	return types.PackageRef{Ecosystem: types.EcosystemNpm, Name: name, Version: version}, true
}
