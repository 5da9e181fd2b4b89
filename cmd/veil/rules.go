package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{Use: "rules", Short: "Inspect the active rule set"}
	rootCmd.AddCommand(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every rule id, severity, and category",
		RunE:  runRulesList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "explain <rule-id>",
		Short: "Print a rule's full detail",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesExplain,
	})
}

func runRulesList(_ *cobra.Command, _ []string) error {
	rules, err := loadActiveRules(os.Stderr)
	if err != nil {
		return operationalError(fmt.Errorf("rules list: %w", err))
	}
	for _, id := range rules.SortedIDs() {
		r, _ := rules.Get(id)
		fmt.Printf("%-36s %-8s %-14s %s\n", r.ID, r.Severity.Label(), r.Category, r.Description)
	}
	return nil
}

func runRulesExplain(_ *cobra.Command, args []string) error {
	rules, err := loadActiveRules(os.Stderr)
	if err != nil {
		return operationalError(fmt.Errorf("rules explain: %w", err))
	}
	r, ok := rules.Get(args[0])
	if !ok {
		return operationalError(fmt.Errorf("rules explain: unknown rule id %q", args[0]))
	}
	fmt.Printf("id:          %s\n", r.ID)
	fmt.Printf("description: %s\n", r.Description)
	fmt.Printf("severity:    %s\n", r.Severity.Label())
	fmt.Printf("category:    %s\n", r.Category)
	fmt.Printf("base score:  %d\n", r.BaseScore)
	fmt.Printf("pattern:     %s\n", r.Regex.String())
	if len(r.Tags) > 0 {
		fmt.Printf("tags:        %s\n", strings.Join(r.Tags, ", "))
	}
	if r.ContextLinesBefore > 0 {
		fmt.Printf("context:     %d line(s) before\n", r.ContextLinesBefore)
	}
	if r.Validator != nil {
		fmt.Println("validator:   yes")
	}
	return nil
}
