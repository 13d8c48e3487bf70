package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iasik/codesearch/internal/metadata"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats [path]",
	Short: "Print the committed ProjectMetadata for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	projectPath := "."
	if len(args) == 1 {
		projectPath = args[0]
	}
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	meta, err := metadata.Load(absPath)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if meta == nil {
		return fmt.Errorf("stats: %s has not been indexed yet (no .context/project.json)", absPath)
	}

	if statsJSON {
		return json.NewEncoder(os.Stdout).Encode(meta)
	}

	fmt.Printf("Project:        %s\n", meta.ProjectPath)
	fmt.Printf("Collection:     %s\n", meta.CollectionName)
	fmt.Printf("Hybrid:         %v\n", meta.IsHybrid)
	fmt.Printf("Model:          %s\n", meta.EmbeddingModel)
	fmt.Printf("Dimension:      %d\n", meta.EmbeddingDimension)
	fmt.Printf("Indexed files:  %d\n", meta.IndexedFileCount)
	fmt.Printf("Total chunks:   %d\n", meta.TotalChunks)
	fmt.Printf("Created:        %s\n", meta.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Printf("Last indexed:   %s\n", meta.LastIndexed.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
