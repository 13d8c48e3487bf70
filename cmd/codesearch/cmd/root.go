// Package cmd wires the codesearch CLI's cobra commands, grounded on
// tOgg1-code-organization's cmd/co/cmd/root.go structure (a package-level
// rootCmd, an init() per subcommand file registering itself via
// AddCommand, Execute() as the single entrypoint main calls).
package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "codesearch",
	Short: "Index a repository and answer natural-language queries against it",
	Long: `codesearch maintains a durable, queryable representation of a
source-code repository in a remote vector store and answers
natural-language queries by combining dense and sparse retrieval.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the global config file (default: $CODESEARCH_CONFIG or ~/.context/config.yaml)")
}
