package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManager_Load_MissingFileAppliesDefaults(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err := mgr.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := mgr.Get()
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("expected default embedding provider ollama, got %q", cfg.Embedding.Provider)
	}
	if cfg.VectorDB.Provider != "qdrant" {
		t.Errorf("expected default vectordb provider qdrant, got %q", cfg.VectorDB.Provider)
	}
	if cfg.Chunking.MaxChunkChars == 0 {
		t.Errorf("expected default chunking config to be applied")
	}
}

func TestManager_Load_ParsesYAMLAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
embedding:
  provider: openai
  model: text-embedding-3-small
  endpoint: https://api.openai.com/v1
vectordb:
  provider: qdrant
  endpoint: localhost:6334
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mgr := NewManager(path)
	if err := mgr.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := mgr.Get()
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("expected embedding provider openai, got %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected model text-embedding-3-small, got %q", cfg.Embedding.Model)
	}
}

func TestManager_Load_RejectsInvalidProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "embedding:\n  provider: not-a-real-provider\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mgr := NewManager(path)
	if err := mgr.Load(); err == nil {
		t.Fatal("expected Load to reject an invalid embedding provider")
	}
}

func TestManager_Load_RejectsBadChunkingBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "chunking:\n  min_chunk_chars: 500\n  max_chunk_chars: 100\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mgr := NewManager(path)
	if err := mgr.Load(); err == nil {
		t.Fatal("expected Load to reject min_chunk_chars >= max_chunk_chars")
	}
}

func TestManager_Reload_NotifiesOnChangeListeners(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("embedding:\n  provider: ollama\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mgr := NewManager(path)
	if err := mgr.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	notified := false
	mgr.OnChange(func(cfg *GlobalConfig) { notified = true })

	if err := os.WriteFile(path, []byte("embedding:\n  provider: openai\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if !notified {
		t.Error("expected OnChange listener to be notified after Reload")
	}
	if mgr.Get().Embedding.Provider != "openai" {
		t.Errorf("expected reloaded provider openai, got %q", mgr.Get().Embedding.Provider)
	}
}

func TestEmbeddingConfig_APIKeyFromEnv(t *testing.T) {
	t.Setenv("CODESEARCH_TEST_API_KEY", "secret-value")
	e := EmbeddingConfig{APIKeyEnv: "CODESEARCH_TEST_API_KEY"}
	if got := e.APIKey(); got != "secret-value" {
		t.Errorf("expected secret-value, got %q", got)
	}

	empty := EmbeddingConfig{}
	if got := empty.APIKey(); got != "" {
		t.Errorf("expected empty API key when APIKeyEnv is unset, got %q", got)
	}
}

func TestLogsDir_ReturnsPathUnderHome(t *testing.T) {
	dir := LogsDir()
	if dir == "" {
		t.Fatal("expected a non-empty logs directory")
	}
	if filepath.Base(dir) != "logs" {
		t.Errorf("expected logs dir to end in 'logs', got %q", dir)
	}
}
