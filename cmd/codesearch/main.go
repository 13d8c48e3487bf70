// Command codesearch is the batch CLI for the core indexing and hybrid
// search engine, replacing the teacher's cmd/indexer flag-based binary
// with cobra subcommands (SPEC_FULL.md §1): index, search, clean, stats.
package main

import (
	"fmt"
	"os"

	"github.com/iasik/codesearch/cmd/codesearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
