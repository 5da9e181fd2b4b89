// Package redact performs in-place, regex-driven text replacement used by
// the one remediation veil permits: inserting an ignore-comment on an
// offending line. It never deletes or rewrites secret values itself.
package redact

import (
	"os"
	"regexp"
)

// Replacement pairs a compiled pattern with its replacement text, applied
// via Pattern.ReplaceAll semantics.
type Replacement struct {
	Pattern *regexp.Regexp
	Replace string
}

// apply runs every replacement over content in order and reports whether
// the result differs from the input.
func apply(content []byte, reps []Replacement) ([]byte, bool) {
	out := content
	for _, r := range reps {
		out = r.Pattern.ReplaceAll(out, []byte(r.Replace))
	}
	return out, string(out) != string(content)
}

// WouldChange reports whether applying reps to the file at path would
// alter its contents, without writing anything.
func WouldChange(path string, reps []Replacement) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	_, changed := apply(content, reps)
	return changed, nil
}

// Apply rewrites the file at path in place if reps would change it,
// preserving the original file mode. A no-op call (content already
// matches the desired form) returns changed=false without writing.
func Apply(path string, reps []Replacement) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, changed := apply(content, reps)
	if !changed {
		return false, nil
	}
	if err := os.WriteFile(path, out, info.Mode()); err != nil {
		return false, err
	}
	return true, nil
}
