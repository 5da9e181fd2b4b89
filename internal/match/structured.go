package match

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/varalys/veil/internal/types"
	"github.com/varalys/veil/internal/veilrules"
	"gopkg.in/yaml.v3"
)

// fieldRef is one key/value pair lifted out of a structured document,
// with the 1-based line its value sits on.
type fieldRef struct {
	keyPath string
	value   string
	line    int
}

// StructuredFindings complements the line matcher for JSON/YAML files: it
// extracts key/value fields (which may span formatting the line matcher
// would miss, e.g. pretty-printed nested values) and re-runs the same
// rule set against each value as if it were its own line. No separate
// per-provider key heuristics are kept; the Rule regex/validator pairs
// do the work twice.
func StructuredFindings(path string, data []byte, rules *veilrules.Set, mode types.MaskMode) []types.Finding {
	lower := strings.ToLower(path)
	var fields []fieldRef
	switch {
	case strings.HasSuffix(lower, ".json"):
		fields = jsonFields(data)
	case strings.HasSuffix(lower, ".yml"), strings.HasSuffix(lower, ".yaml"):
		fields = yamlFields(data)
	default:
		return nil
	}

	var out []types.Finding
	for _, f := range fields {
		val := strings.Trim(strings.TrimSpace(f.value), `"'`)
		if val == "" {
			continue
		}
		for _, finding := range MatchLine(val, rules, mode, []string{f.keyPath}) {
			finding.Path = path
			finding.Line = f.line
			out = append(out, finding)
		}
	}
	return out
}

// jsonFieldRe pulls the first "key": value pair off a line. encoding/json
// carries no position information, so once the document is known to be
// valid JSON a per-line pass recovers line numbers for the values.
var jsonFieldRe = regexp.MustCompile(`"((?:[^"\\]|\\.)+)"\s*:\s*(.+?)\s*,?\s*$`)

func jsonFields(data []byte) []fieldRef {
	if !json.Valid(data) {
		return nil
	}
	var out []fieldRef
	for i, line := range strings.Split(string(data), "\n") {
		m := jsonFieldRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, fieldRef{keyPath: m[1], value: m[2], line: i + 1})
	}
	return out
}

// yamlFields decodes the document into yaml.Node form, which tracks
// positions natively, and collects every scalar reachable under a mapping
// key as a dotted key path.
func yamlFields(data []byte) []fieldRef {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil
	}
	var out []fieldRef
	collectScalars(&root, "", &out)
	return out
}

func collectScalars(n *yaml.Node, prefix string, out *[]fieldRef) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			collectScalars(c, prefix, out)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			collectScalars(n.Content[i+1], key, out)
		}
	case yaml.ScalarNode:
		if prefix != "" {
			*out = append(*out, fieldRef{keyPath: prefix, value: n.Value, line: n.Line})
		}
	case yaml.AliasNode:
		// anchors are expanded at their definition site; nothing new here
	}
}
