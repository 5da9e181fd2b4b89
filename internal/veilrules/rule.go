package veilrules

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/varalys/veil/internal/types"
)

// Validator is an optional per-rule predicate run against a raw match
// before it is kept. A rule with no validator keeps every regex match.
type Validator func(capture string) bool

// Rule is an immutable compiled detection entity. Ids are unique within
// an active rule set; the regex is compiled once at load time.
type Rule struct {
	ID                 string
	Regex              *regexp.Regexp
	Description        string
	Severity           types.Severity
	BaseScore          int
	Category           string
	Tags               []string
	ContextLinesBefore uint8
	ContextLinesAfter  uint8
	Validator          Validator
	Placeholder        string // overrides the default "<REDACTED>" when non-empty
}

// Set is an id-keyed, order-preserving collection of rules. Iteration
// order is insertion order: built-in, then pack files in manifest order,
// then config-defined, which is also the order findings report per line.
type Set struct {
	order []string
	byID  map[string]*Rule
}

// NewSet builds an empty rule set.
func NewSet() *Set {
	return &Set{byID: make(map[string]*Rule)}
}

// Add inserts or overrides a rule by id. Later calls win, per the
// built-in -> pack -> config -> remote merge order.
func (s *Set) Add(r *Rule) error {
	if r.ID == "" {
		return fmt.Errorf("veilrules: rule has empty id")
	}
	if r.Regex == nil {
		return fmt.Errorf("veilrules: rule %q has no compiled regex", r.ID)
	}
	if _, exists := s.byID[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	s.byID[r.ID] = r
	return nil
}

// Remove deletes a rule by id, used to apply config-level disables.
func (s *Set) Remove(id string) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns the rule for an id, if present.
func (s *Set) Get(id string) (*Rule, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Ordered returns rules in registration order (built-in, pack, config).
func (s *Set) Ordered() []*Rule {
	out := make([]*Rule, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// IDs returns all rule ids in registration order.
func (s *Set) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len reports how many rules are active.
func (s *Set) Len() int { return len(s.order) }

// SortedIDs returns a copy of the rule ids sorted lexicographically,
// useful for `rules list` rendering independent of load order.
func (s *Set) SortedIDs() []string {
	ids := s.IDs()
	sort.Strings(ids)
	return ids
}

// compile is a small helper used by builtin.go to build a Rule and panic
// at init time on an uncompilable built-in pattern (a bug, never user input).
func compile(id, pattern, description string, sev types.Severity, category string, tags []string, preCtx uint8, v Validator) *Rule {
	re, err := regexp.Compile(pattern)
	if err != nil {
		panic(fmt.Sprintf("veilrules: built-in rule %q has invalid pattern: %v", id, err))
	}
	return &Rule{
		ID:                 id,
		Regex:              re,
		Description:        description,
		Severity:           sev,
		BaseScore:          sev.DefaultScore(),
		Category:           category,
		Tags:               tags,
		ContextLinesBefore: preCtx,
		Validator:          v,
	}
}
