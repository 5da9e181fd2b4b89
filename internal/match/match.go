package match

import (
	"strings"

	"github.com/varalys/veil/internal/types"
	"github.com/varalys/veil/internal/veilrules"
)

// ignoreMarker is the inline directive recognized in any comment syntax:
// a bare "veil:ignore" suppresses every rule on the line; "veil:ignore=ID"
// suppresses only that rule id.
const ignoreMarker = "veil:ignore"

// inlineIgnore reports whether the line carries a blanket suppression and,
// if scoped, which single rule id is suppressed.
func inlineIgnore(line string) (blanket bool, onlyID string) {
	idx := strings.Index(line, ignoreMarker)
	if idx < 0 {
		return false, ""
	}
	rest := line[idx+len(ignoreMarker):]
	if strings.HasPrefix(rest, "=") {
		id := strings.TrimSpace(rest[1:])
		for i, r := range id {
			if r == ' ' || r == '\t' {
				id = id[:i]
				break
			}
		}
		return false, id
	}
	return true, ""
}

// candidate is one kept (rule, raw match) pair on a line, prior to snippet
// construction and scoring.
type candidate struct {
	rule  *veilrules.Rule
	start int
	end   int
	text  string
}

// MatchLine runs every rule in rules against line (in registration order,
// non-overlapping per rule) and returns the findings for that single line.
// contextBefore holds the most recent buffered lines preceding this one
// (trimmed per-rule to ContextLinesBefore when constructing each Finding).
func MatchLine(line string, rules *veilrules.Set, mode types.MaskMode, contextBefore []string) []types.Finding {
	blanket, onlyID := inlineIgnore(line)
	if blanket {
		return nil
	}

	var kept []candidate
	for _, rule := range rules.Ordered() {
		if onlyID != "" && rule.ID == onlyID {
			continue
		}
		locs := rule.Regex.FindAllStringIndex(line, -1)
		for _, loc := range locs {
			text := line[loc[0]:loc[1]]
			if rule.Validator != nil && !rule.Validator(text) {
				continue
			}
			kept = append(kept, candidate{rule: rule, start: loc[0], end: loc[1], text: text})
		}
	}
	if len(kept) == 0 {
		return nil
	}

	spans := make([]types.MaskSpan, 0, len(kept))
	for _, c := range kept {
		spans = append(spans, types.MaskSpan{
			Start:       c.start,
			End:         c.end,
			Placeholder: c.rule.Placeholder,
			Priority:    priorityFor(c.rule),
			RuleID:      c.rule.ID,
		})
	}
	snippet := renderSnippet(line, spans, mode)

	findings := make([]types.Finding, 0, len(kept))
	for _, c := range kept {
		before := lastN(contextBefore, int(c.rule.ContextLinesBefore))
		score := Score(c.rule, line, before)
		findings = append(findings, types.Finding{
			RawLine:       line,
			StartCol:      c.start,
			EndCol:        c.end,
			Match:         c.text,
			MaskedSnippet: snippet,
			RuleID:        c.rule.ID,
			Severity:      c.rule.Severity,
			Score:         score,
			Grade:         types.GradeForScore(score),
			ContextBefore: before,
		})
	}
	return findings
}

// MatchText runs MatchLine over every line of data (plus StructuredFindings
// for JSON/YAML files), in strictly increasing line order, stamping each
// finding's 1-based Line number as it goes. This is the scanwalk.ProcessFn
// every scan command wires up.
func MatchText(path string, data []byte, rules *veilrules.Set, mode types.MaskMode) []types.Finding {
	lines := strings.Split(string(data), "\n")
	var out []types.Finding
	for i, line := range lines {
		for _, f := range MatchLine(line, rules, mode, lines[:i]) {
			f.Line = i + 1
			out = append(out, f)
		}
	}
	out = append(out, StructuredFindings(path, data, rules, mode)...)
	return out
}

// priorityFor assigns the category-based span priority. Priority is
// metadata only; it never changes which spans get masked.
func priorityFor(r *veilrules.Rule) int {
	p := types.PriorityOther
	switch r.Category {
	case "generic":
		p = types.PriorityOther
	case "data":
		p = types.PriorityPII
	case "observability":
		p = types.PriorityObservability
	default:
		p = types.PrioritySecret
	}
	for _, t := range r.Tags {
		if t == "pii" {
			p = types.PriorityPII
		}
	}
	if r.Category == "observability" {
		p += types.PriorityLogPackBonus
	}
	return p
}

func lastN(lines []string, n int) []string {
	if n <= 0 || len(lines) == 0 {
		return nil
	}
	if len(lines) <= n {
		out := make([]string, len(lines))
		copy(out, lines)
		return out
	}
	out := make([]string, n)
	copy(out, lines[len(lines)-n:])
	return out
}
