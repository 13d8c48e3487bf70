package cmd

import (
	"fmt"

	"github.com/iasik/codesearch/internal/config"
	"github.com/iasik/codesearch/internal/embedder"
	"github.com/iasik/codesearch/internal/vectordb"
)

// loadGlobalConfig resolves configPath (falling back to config.DefaultPath)
// and loads it, mirroring the teacher's cmd/indexer.main config.LoadFromEnv
// call.
func loadGlobalConfig() (*config.Manager, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	mgr := config.NewManager(path)
	if err := mgr.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return mgr, nil
}

// buildProviders constructs the embedder and vectordb providers the
// teacher's main() builds inline; factored out here since index, search,
// and stats all need the same pair.
func buildProviders(cfg *config.GlobalConfig) (embedder.Provider, vectordb.Provider, error) {
	emb, err := embedder.NewProvider(cfg.Embedding.ToProviderConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("create embedder: %w", err)
	}

	store, err := vectordb.NewProvider(cfg.VectorDB.ToProviderConfig())
	if err != nil {
		emb.Close()
		return nil, nil, fmt.Errorf("create vectordb: %w", err)
	}

	return emb, store, nil
}
