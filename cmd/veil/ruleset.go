package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/varalys/veil/internal/guardianconfig"
	"github.com/varalys/veil/internal/veilrules"
)

var (
	flagRulesDir string
	flagRulesURL string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRulesDir, "rules-dir", "", "directory of rule-pack TOML files layered over the built-ins")
	rootCmd.PersistentFlags().StringVar(&flagRulesURL, "rules-url", "", "HTTPS URL of a remote rule file layered over packs (soft failure)")
}

// activeRules assembles the rule set for this invocation in layering
// order: built-ins, then the pack directory, then config-defined
// overrides, then remote rules. Later layers override by id. A remote
// fetch failure is soft (warned, not fatal); everything else is hard.
func activeRules(eff guardianconfig.Effective, warn io.Writer) (*veilrules.Set, error) {
	s := veilrules.Builtin()

	if flagRulesDir != "" {
		if err := veilrules.LoadPack(s, flagRulesDir); err != nil {
			return nil, err
		}
	}

	for id, o := range eff.Rules {
		if err := veilrules.ApplyOverride(s, id, o.Pattern, o.Severity, o.Description, o.Tags); err != nil {
			return nil, err
		}
	}

	if flagRulesURL != "" {
		if err := mergeRemoteRules(s, flagRulesURL); err != nil {
			fmt.Fprintf(warn, "warning: remote rules skipped: %v\n", err)
		}
	}

	return s, nil
}

// mergeRemoteRules fetches and merges a remote rule file. Only HTTPS
// sources are accepted; remote rules can never declare validators.
func mergeRemoteRules(s *veilrules.Set, url string) error {
	if !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("remote rules require an https:// URL, got %q", url)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote rules fetch: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return veilrules.LoadRemote(s, data, url)
}

// loadActiveRules is the convenience path for commands that have not
// already loaded the layered config themselves.
func loadActiveRules(warn io.Writer) (*veilrules.Set, error) {
	eff, err := guardianconfig.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	return activeRules(eff, warn)
}
