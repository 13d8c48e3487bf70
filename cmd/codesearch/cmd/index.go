package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iasik/codesearch/internal/collection"
	"github.com/iasik/codesearch/internal/config"
	"github.com/iasik/codesearch/internal/indexer"
)

var (
	indexClean   bool
	indexHybrid  bool
	indexWorkers int
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Bring the vector store's collection for a project into agreement with the working tree",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexClean, "clean", false, "drop the collection and hash cache before indexing (full reindex)")
	indexCmd.Flags().BoolVar(&indexHybrid, "hybrid", false, "index with dense and sparse vectors for hybrid search")
	indexCmd.Flags().IntVar(&indexWorkers, "workers", 4, "chunking worker pool size")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	projectPath := "."
	if len(args) == 1 {
		projectPath = args[0]
	}
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logSlog := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	mgr, err := loadGlobalConfig()
	if err != nil {
		return err
	}
	cfg := mgr.Get()

	lock, err := indexer.Acquire(absPath)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer lock.Release()

	logsDir := config.LogsDir()
	idxLogger, err := indexer.NewIndexLogger(logsDir, absPath)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer idxLogger.Close()
	_ = indexer.PruneOldLogs(logsDir, indexer.DefaultLogRetention)

	emb, store, err := buildProviders(cfg)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer emb.Close()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logSlog.Info("received signal, finishing in-flight batch and exiting")
		cancel()
	}()

	if _, err := emb.DetectDimension(ctx, "codesearch dimension probe"); err != nil {
		return fmt.Errorf("index: detect embedding dimension: %w", err)
	}

	overrides, err := config.LoadProjectOverrides(absPath)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	progressCh := make(chan indexer.Event, 16)
	printer := indexer.NewLivePrinter()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range progressCh {
			fmt.Println(printer.Print(evt))
		}
	}()

	ctrl := indexer.New(emb, store, overrides.EffectiveChunking(cfg.Chunking.ToChunkerConfig()), idxLogger, indexer.NewProgressReporter(progressCh), logSlog)

	opts := indexer.Options{
		Clean:             indexClean,
		Hybrid:            indexHybrid,
		GitRepoIdentifier: collection.DetectGitIdentifier(absPath),
		WorkerCount:       indexWorkers,
	}

	summary, err := ctrl.IndexProject(ctx, absPath, overrides, opts)
	close(progressCh)
	<-done
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	printIndexSummary(summary)
	if summary.Status == indexer.StatusFailed {
		return fmt.Errorf("index: run failed")
	}
	return nil
}

func printIndexSummary(s *indexer.RunSummary) {
	fmt.Println("\n=== Indexing Complete ===")
	fmt.Printf("Status: %s\n", s.Status)
	fmt.Printf("Files indexed: %d\n", s.IndexedFiles)
	fmt.Printf("Files unchanged: %d\n", s.SkippedUnchanged)
	fmt.Printf("Files deleted: %d\n", s.Deleted)
	fmt.Printf("Chunks indexed: %d\n", s.TotalChunks)
	fmt.Printf("Verification: expected=%d observed=%d\n", s.Verification.Expected, s.Verification.Observed)
	fmt.Printf("Duration: %s\n", s.Duration)

	if len(s.Failures) > 0 {
		fmt.Printf("Failures: %d\n", len(s.Failures))
		for _, f := range s.Failures {
			fmt.Printf("  - %s: %s\n", f.Path, f.Reason)
		}
	}
}
