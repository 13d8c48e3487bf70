package embedder

import "testing"

func TestNewProvider_UnknownProviderErrors(t *testing.T) {
	_, err := NewProvider(Config{Provider: "not-a-real-provider"})
	if err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}

func TestNewProvider_Ollama(t *testing.T) {
	p, err := NewProvider(Config{Provider: "ollama", Model: "nomic-embed-text", Endpoint: "http://localhost:11434"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if _, ok := p.(*OllamaEmbedder); !ok {
		t.Fatalf("expected *OllamaEmbedder, got %T", p)
	}
}

func TestNewProvider_OpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewProvider(Config{Provider: "openai", Model: "text-embedding-3-small"})
	if err == nil {
		t.Fatal("expected an error when no API key is configured")
	}
}

func TestNewProvider_DashScopeAlias(t *testing.T) {
	p, err := NewProvider(Config{Provider: "alibaba", Model: "text-embedding-v3", Endpoint: "https://example.test", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if _, ok := p.(*DashScopeEmbedder); !ok {
		t.Fatalf("expected *DashScopeEmbedder, got %T", p)
	}
}
