package veilrules

import "math"

// shannonEntropy computes the Shannon entropy, in bits per character, of s.
// Used as the validator for the generic high-entropy-token rule so a bare
// token-shaped string near a secret-ish keyword is only kept when it also
// looks random rather than, say, a sentence or a UUID-free identifier.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	count := map[rune]int{}
	for _, r := range s {
		count[r]++
	}
	h := 0.0
	n := float64(len(s))
	for _, c := range count {
		p := float64(c) / n
		h += -p * math.Log2(p)
	}
	return h
}

// entropyValidator keeps a candidate only if it is reasonably random and
// not absurdly long (guards against matching whole base64 file blobs).
func entropyValidator(capture string) bool {
	return len(capture) <= 200 && shannonEntropy(capture) >= 4.0
}

func init() {
	for _, r := range builtinRules {
		if r.ID == "creds.generic.high_entropy_token" {
			r.Validator = entropyValidator
		}
	}
}
