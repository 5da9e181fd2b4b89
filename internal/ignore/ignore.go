// Package ignore implements a small subset of .gitignore semantics for
// veil's .veilignore files: comments, blank lines, trailing-slash
// directory patterns, and glob patterns.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether a relative path should be excluded from scanning.
type Matcher interface {
	Match(path string) bool
}

type rule struct {
	pattern string
	dirOnly bool
	isGlob  bool
}

type matcher struct {
	rules []rule
}

// Load reads an ignore file at path. A missing file yields an empty,
// always-false matcher rather than an error, since ignore files are
// optional at every layer they're consulted.
func Load(path string) (Matcher, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &matcher{}, nil
		}
		return nil, err
	}
	defer f.Close()

	m := &matcher{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		r := rule{pattern: trimmed}
		if strings.HasSuffix(r.pattern, "/") {
			r.dirOnly = true
			r.pattern = strings.TrimSuffix(r.pattern, "/")
		}
		r.isGlob = strings.ContainsAny(r.pattern, "*?[")
		m.rules = append(m.rules, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Match reports whether relPath is excluded by any loaded rule.
func (m *matcher) Match(relPath string) bool {
	if m == nil {
		return false
	}
	p := filepath.ToSlash(relPath)
	base := filepath.Base(p)
	for _, r := range m.rules {
		if r.dirOnly {
			if pathHasDirComponent(p, r.pattern) {
				return true
			}
			continue
		}
		if r.isGlob {
			if ok, _ := doublestar.Match(r.pattern, p); ok {
				return true
			}
			if ok, _ := doublestar.Match(r.pattern, base); ok {
				return true
			}
			continue
		}
		if p == r.pattern || base == r.pattern || strings.HasPrefix(p, r.pattern+"/") {
			return true
		}
	}
	return false
}

func pathHasDirComponent(p, name string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == name {
			return true
		}
	}
	return false
}

// SubstringMatcher implements the `[core].ignore` config layer: any
// configured substring appearing anywhere in the path excludes it.
type SubstringMatcher struct {
	Substrings []string
}

// Match reports whether relPath contains any configured substring.
func (s SubstringMatcher) Match(relPath string) bool {
	for _, sub := range s.Substrings {
		if sub != "" && strings.Contains(relPath, sub) {
			return true
		}
	}
	return false
}

// Combine layers several matchers; a path is excluded if any matches.
func Combine(matchers ...Matcher) Matcher {
	return combined{matchers: matchers}
}

type combined struct{ matchers []Matcher }

func (c combined) Match(relPath string) bool {
	for _, m := range c.matchers {
		if m != nil && m.Match(relPath) {
			return true
		}
	}
	return false
}
