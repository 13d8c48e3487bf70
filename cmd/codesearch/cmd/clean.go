package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iasik/codesearch/internal/collection"
	"github.com/iasik/codesearch/internal/hashcache"
	"github.com/iasik/codesearch/internal/metadata"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Drop a project's collection and local cache, so the next index run starts fresh",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	projectPath := "."
	if len(args) == 1 {
		projectPath = args[0]
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
		return fmt.Errorf("clean: %w", err)
	}
	collectionName := ""
	if meta != nil {
		collectionName = meta.CollectionName
	} else {
		collectionName, err = collection.Name(absPath, collection.DetectGitIdentifier(absPath), false)
		if err != nil {
			return fmt.Errorf("clean: %w", err)
		}
	}

	_, store, err := buildProviders(cfg)
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	defer store.Close()

	if err := store.DropCollection(context.Background(), collectionName); err != nil {
		return fmt.Errorf("clean: drop collection %q: %w", collectionName, err)
	}

	cache, err := hashcache.Load(absPath, collectionName)
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	cache.Clear()
	if err := cache.Save(); err != nil {
		return fmt.Errorf("clean: %w", err)
	}

	fmt.Fprintf(os.Stdout, "dropped collection %q and cleared local cache for %s\n", collectionName, absPath)
	return nil
}
