package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/varalys/veil/internal/match"
	"github.com/varalys/veil/internal/types"
)

func init() {
	cmd := &cobra.Command{
		Use:   "mask <paths...>",
		Short: "Print a masked copy of one or more files to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMask,
	}
	rootCmd.AddCommand(cmd)
}

func runMask(_ *cobra.Command, args []string) error {
	mode := types.MaskMode(flagMask)
	if mode == "" {
		mode = types.MaskRedact
	}
	rules, err := loadActiveRules(os.Stderr)
	if err != nil {
		return operationalError(fmt.Errorf("mask: load rules: %w", err))
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return operationalError(fmt.Errorf("mask: %w", err))
		}
		if len(args) > 1 {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "==> %s <==\n", path)
		}
		lines := strings.Split(string(data), "\n")
		for j, line := range lines {
			findings := match.MatchLine(line, rules, mode, lines[:j])
			if len(findings) > 0 {
				fmt.Fprintln(out, findings[0].MaskedSnippet)
			} else {
				fmt.Fprintln(out, line)
			}
		}
	}
	return nil
}
