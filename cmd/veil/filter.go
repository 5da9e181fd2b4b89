package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/varalys/veil/internal/match"
	"github.com/varalys/veil/internal/types"
)

func init() {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Mask secrets in a text stream read from stdin, writing the masked stream to stdout",
		RunE:  runFilter,
	}
	rootCmd.AddCommand(cmd)
}

// runFilter masks stdin line by line, writing the shared masked snippet for
// every line regardless of whether any rule matched, so piped output stays
// line-aligned with the input.
func runFilter(_ *cobra.Command, _ []string) error {
	mode := types.MaskMode(flagMask)
	if mode == "" {
		mode = types.MaskRedact
	}
	rules, err := loadActiveRules(os.Stderr)
	if err != nil {
		return operationalError(fmt.Errorf("filter: load rules: %w", err))
	}

	var buffered []string
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for sc.Scan() {
		line := sc.Text()
		findings := match.MatchLine(line, rules, mode, buffered)
		if len(findings) > 0 {
			fmt.Fprintln(out, findings[0].MaskedSnippet)
		} else {
			fmt.Fprintln(out, line)
		}
		buffered = append(buffered, line)
	}
	if err := sc.Err(); err != nil {
		return operationalError(fmt.Errorf("filter: %w", err))
	}
	return nil
}
