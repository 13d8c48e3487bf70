package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iasik/codesearch/internal/collection"
	"github.com/iasik/codesearch/internal/metadata"
	"github.com/iasik/codesearch/internal/search"
)

var (
	searchLimit  int
	searchFilter string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [path] <query>",
	Short: "Run a hybrid dense+sparse query against a project's collection",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchFilter, "filter", "", "post-filter expression (spec.md §6.3 grammar)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	projectPath := "."
	query := args[0]
	if len(args) == 2 {
		projectPath = args[0]
		query = args[1]
	}
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	mgr, err := loadGlobalConfig()
	if err != nil {
		return err
	}
	cfg := mgr.Get()

	meta, err := metadata.Load(absPath)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	collectionName := ""
	isHybrid := false
	if meta != nil {
		collectionName = meta.CollectionName
		isHybrid = meta.IsHybrid
	} else {
		collectionName, err = collection.Name(absPath, collection.DetectGitIdentifier(absPath), false)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
	}

	emb, store, err := buildProviders(cfg)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer emb.Close()
	defer store.Close()

	searcher := search.NewSearcher(emb, store)
	results, degraded, err := searcher.Search(context.Background(), collectionName, query, searchLimit, searchFilter, isHybrid)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if searchJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"results":      results,
			"degradedMode": degraded,
		})
	}

	if degraded {
		fmt.Println("(dense-only mode: collection has no sparse vectors)")
	}
	for i, r := range results {
		fmt.Printf("%d. %s:%d-%d (score %.6f)\n", i+1, r.Row.RelativePath, r.Row.StartLine, r.Row.EndLine, r.Score)
		fmt.Println(trimPreview(r.Row.Content))
		fmt.Println()
	}
	return nil
}

func trimPreview(content string) string {
	const maxLen = 240
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}
