// Package embedder provides a factory for creating embedding providers.
package embedder

import "fmt"

// NewProvider creates an embedding provider from a fully-resolved Config.
// It has no dependency on internal/config so that package can depend on
// embedder.Config instead of the other way around.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaEmbedder(cfg)

	case "openai":
		return NewOpenAIEmbedder(cfg)

	case "dashscope", "alibaba":
		return NewDashScopeEmbedder(cfg)

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: ollama, openai, dashscope)", cfg.Provider)
	}
}

// MustNewProvider creates a provider or panics on failure.
// Use this only in initialization code where failure is fatal.
func MustNewProvider(cfg Config) Provider {
	provider, err := NewProvider(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedding provider: %v", err))
	}
	return provider
}
