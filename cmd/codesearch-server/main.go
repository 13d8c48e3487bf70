// Command codesearch-server is the thin HTTP retrieval daemon
// (SPEC_FULL.md §4), adapted from the teacher's cmd/retrieval-tool: it
// health-checks its embedder and vector store with a startup retry loop,
// then serves POST /retrieve against one project's collection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iasik/codesearch/internal/collection"
	"github.com/iasik/codesearch/internal/config"
	"github.com/iasik/codesearch/internal/metadata"

	"github.com/iasik/codesearch/internal/api"
	"github.com/iasik/codesearch/internal/embedder"
	"github.com/iasik/codesearch/internal/search"
	"github.com/iasik/codesearch/internal/vectordb"
)

func main() {
	projectPath := flag.String("project", ".", "project root whose collection this daemon serves")
	port := flag.Int("port", 8089, "HTTP listen port")
	configPath := flag.String("config", "", "path to the global config file")
	flag.Parse()

	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	logger.Info("starting codesearch retrieval daemon")

	absPath, err := filepath.Abs(*projectPath)
	if err != nil {
		logger.Error("resolve project path", "error", err)
		os.Exit(1)
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	mgr := config.NewManager(path)
	if err := mgr.Load(); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := mgr.Get()

	logger.Info("configuration loaded",
		"port", *port,
		"embedding_provider", cfg.Embedding.Provider,
		"vectordb_provider", cfg.VectorDB.Provider)

	meta, err := metadata.Load(absPath)
	if err != nil {
		logger.Error("failed to load project metadata", "error", err)
		os.Exit(1)
	}
	collectionName := ""
	isHybrid := false
	if meta != nil {
		collectionName = meta.CollectionName
		isHybrid = meta.IsHybrid
	} else {
		collectionName, err = collection.Name(absPath, collection.DetectGitIdentifier(absPath), false)
		if err != nil {
			logger.Error("failed to derive collection name", "error", err)
			os.Exit(1)
		}
		logger.Warn("project has not been indexed yet; serving an empty collection", "collection", collectionName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	emb, err := embedder.NewProvider(cfg.Embedding.ToProviderConfig())
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	defer emb.Close()
	waitHealthy(ctx, logger, "embedder", cfg.Embedding.Endpoint, emb.Health)

	store, err := vectordb.NewProvider(cfg.VectorDB.ToProviderConfig())
	if err != nil {
		logger.Error("failed to create vectordb", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	waitHealthy(ctx, logger, "vectordb", cfg.VectorDB.Endpoint, store.Health)

	searcher := search.NewSearcher(emb, store)
	server := api.NewServer(mgr, collectionName, isHybrid, searcher, logger)

	if err := server.Start(ctx, *port); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// waitHealthy retries a health probe up to 30 times at 1s intervals,
// mirroring the teacher's cmd/retrieval-tool startup loop for both its
// embedder and vectordb dependencies.
func waitHealthy(ctx context.Context, logger *slog.Logger, name, endpoint string, probe func(context.Context) error) {
	logger.Info(fmt.Sprintf("waiting for %s...", name), "endpoint", endpoint)
	for i := 0; i < 30; i++ {
		if err := probe(ctx); err == nil {
			logger.Info(fmt.Sprintf("%s connected", name), "endpoint", endpoint)
			return
		} else if i == 29 {
			logger.Error(fmt.Sprintf("%s health check failed after retries", name), "error", err)
			os.Exit(1)
		}
		select {
		case <-ctx.Done():
			os.Exit(0)
		case <-time.After(time.Second):
		}
	}
}
