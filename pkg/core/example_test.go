package core_test

import (
	"fmt"
	"os"

	"github.com/varalys/veil/pkg/core"
)

// ExampleScan demonstrates how to perform a simple scan of a directory.
func ExampleScan() {
	cfg := core.Config{
		Root:         ".",         // scan the current directory
		Threads:      4,           // number of concurrent workers
		IncludeGlobs: "*.go",      // only scan Go files (optional)
		MaxBytes:     1024 * 1024, // skip files larger than 1MB
	}

	findings, err := core.Scan(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		return
	}

	if len(findings) == 0 {
		fmt.Println("No secrets found.")
	} else {
		fmt.Printf("Found %d secrets.\n", len(findings))
	}
}

// ExampleScanWithStats shows how to run a scan and retrieve execution statistics.
func ExampleScanWithStats() {
	cfg := core.Config{Root: "test/integration/fixtures"}

	result, err := core.ScanWithStats(cfg)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Scanned %d of %d files\n", result.FilesScanned, result.TotalFiles)
	fmt.Printf("Found %d secrets\n", len(result.Findings))
	if result.LimitReached {
		fmt.Println("Warning: finding limit reached")
	}
}
