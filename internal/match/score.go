package match

import (
	"strings"

	"github.com/varalys/veil/internal/veilrules"
)

var lowerModifiers = []string{"test", "example", "sample", "dummy", "mock"}
var higherModifiers = []string{"prod", "production", "secret", "credential", "key", "password"}

var tagWeights = map[string]int{
	"critical": 20,
	"pii":      10,
	"low_risk": -10,
}

// Score applies the context modifiers and tag weights to a rule's base
// score, clamped to [0, 100].
func Score(rule *veilrules.Rule, line string, context []string) int {
	score := rule.BaseScore
	if score == 0 {
		score = rule.Severity.DefaultScore()
	}

	haystack := strings.ToLower(strings.Join(append([]string{line}, context...), "\n"))
	if containsAny(haystack, lowerModifiers) {
		score -= 10
	}
	if containsAny(haystack, higherModifiers) {
		score += 10
	}
	for _, tag := range rule.Tags {
		score += tagWeights[tag]
	}

	return clamp(score, 0, 100)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
