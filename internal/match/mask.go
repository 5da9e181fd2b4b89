// Package match implements the line-level matcher and masker: running a
// rule set against one line of text, merging overlapping spans, rendering
// the shared masked snippet, and scoring/grading the kept matches.
package match

import (
	"sort"
	"strings"

	"github.com/varalys/veil/internal/types"
)

const defaultPlaceholder = "<REDACTED>"

// mergeSpans sorts spans by start and fuses overlapping or contained
// ranges. Spans that merely touch (a.End == b.Start) are NOT merged,
// so two adjacent secrets still produce two adjacent placeholders.
func mergeSpans(spans []types.MaskSpan) []types.MaskSpan {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]types.MaskSpan, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []types.MaskSpan{sorted[0]}
	for _, next := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if next.Start < cur.End {
			if next.End > cur.End {
				cur.End = next.End
			}
			if next.Priority > cur.Priority {
				cur.Priority = next.Priority
				cur.Placeholder = next.Placeholder
				cur.RuleID = next.RuleID
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// renderSnippet applies mode to line using the merged spans, producing the
// single masked snippet shared by every finding on that line.
func renderSnippet(line string, spans []types.MaskSpan, mode types.MaskMode) string {
	if mode == types.MaskPlain || len(spans) == 0 {
		return line
	}
	merged := mergeSpans(spans)

	var b strings.Builder
	last := 0
	for _, sp := range merged {
		if sp.Start > len(line) {
			continue
		}
		end := sp.End
		if end > len(line) {
			end = len(line)
		}
		b.WriteString(line[last:sp.Start])
		b.WriteString(placeholderFor(line[sp.Start:end], sp, mode))
		last = end
	}
	if last < len(line) {
		b.WriteString(line[last:])
	}
	return b.String()
}

func placeholderFor(secret string, sp types.MaskSpan, mode types.MaskMode) string {
	switch mode {
	case types.MaskPartial:
		return partialMask(secret)
	default: // Redact
		if sp.Placeholder != "" {
			return sp.Placeholder
		}
		return defaultPlaceholder
	}
}

// partialMask keeps the first 4 and last 4 Unicode scalars of secret,
// joined by "...". Secrets of 4 runes or fewer become "****".
func partialMask(secret string) string {
	runes := []rune(secret)
	if len(runes) <= 4 {
		return "****"
	}
	return string(runes[:4]) + "..." + string(runes[len(runes)-4:])
}
