// internal/report/sarif.go
package report

import (
	"encoding/json"
	"io"

	"github.com/varalys/veil/internal/types"
)

type sarif struct {
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations"`
	RuleIndex int          `json:"ruleIndex,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt    `json:"artifactLocation"`
	Region           sarifRegion `json:"region"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int           `json:"startLine"`
	Snippet   *sarifSnippet `json:"snippet,omitempty"`
}

type sarifSnippet struct {
	Text string `json:"text"`
}

type sarifRule struct {
	ID           string        `json:"id"`
	ShortDesc    *sarifMessage `json:"shortDescription,omitempty"`
	Help         *sarifMessage `json:"help,omitempty"`
	DefaultLevel string        `json:"defaultConfiguration,omitempty"`
}

func sevToLevel(s types.Severity) string {
	switch s {
	case types.SevCritical, types.SevHigh:
		return "error"
	case types.SevMedium:
		return "warning"
	default:
		return "note"
	}
}

// WriteSARIF writes findings as SARIF 2.1.0 to the provided writer.
// Snippets carry each finding's already-masked text, never the raw match.
func WriteSARIF(w io.Writer, findings []types.Finding, toolVersion string) error {
	run := sarifRun{Tool: sarifTool{Driver: sarifDriver{Name: "veil", Version: toolVersion}}}
	ruleIndex := map[string]int{}
	for _, f := range findings {
		if _, ok := ruleIndex[f.RuleID]; !ok {
			ruleIndex[f.RuleID] = len(run.Tool.Driver.Rules)
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
				ID:        f.RuleID,
				ShortDesc: &sarifMessage{Text: f.RuleID + " detection"},
				Help:      &sarifMessage{Text: "Secret-like token detected. Review and rotate if valid."},
			})
		}
	}
	for _, f := range findings {
		idx := ruleIndex[f.RuleID]
		run.Results = append(run.Results, sarifResult{
			RuleID:    f.RuleID,
			RuleIndex: idx,
			Level:     sevToLevel(f.Severity),
			Message:   sarifMessage{Text: f.RuleID + " detected"},
			Locations: []sarifLoc{{
				PhysicalLocation: sarifPhys{
					ArtifactLocation: sarifArt{URI: f.Path},
					Region:           sarifRegion{StartLine: f.Line, Snippet: &sarifSnippet{Text: f.MaskedSnippet}},
				},
			}},
		})
	}
	doc := sarif{Version: "2.1.0", Runs: []sarifRun{run}}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
