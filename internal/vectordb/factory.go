// Package vectordb provides a factory for creating vector database providers.
package vectordb

import "fmt"

// NewProvider creates a vector database provider from a fully-resolved
// Config. Qdrant is the only backend wired at this version.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "qdrant":
		return NewQdrantClient(cfg)

	default:
		return nil, fmt.Errorf("unknown vectordb provider: %s (supported: qdrant)", cfg.Provider)
	}
}

// MustNewProvider creates a provider or panics on failure.
func MustNewProvider(cfg Config) Provider {
	provider, err := NewProvider(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to create vectordb provider: %v", err))
	}
	return provider
}
