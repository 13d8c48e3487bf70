// Package config loads GlobalConfig and per-project ProjectOverrides
// (SPEC_FULL.md §3): the teacher's multi-tenant daemon config folded down
// to single-project operation, one filesystem root per invocation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/iasik/codesearch/internal/chunker"
	"github.com/iasik/codesearch/internal/embedder"
	"github.com/iasik/codesearch/internal/vectordb"
)

// GlobalConfig is the per-user, provider-level configuration: embedding,
// vector store, default chunking, cache location, and logging. Loaded
// from $CODESEARCH_CONFIG or ~/.context/config.yaml.
type GlobalConfig struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	VectorDB  VectorDBConfig  `yaml:"vectordb"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig is the on-disk shape of embedder.Config: it carries an
// environment variable name rather than a literal API key so config files
// stay safe to commit, and is converted via ToProviderConfig at the
// composition root.
type EmbeddingConfig struct {
	Provider             string `yaml:"provider"`
	Model                string `yaml:"model"`
	Endpoint             string `yaml:"endpoint"`
	APIKeyEnv            string `yaml:"api_key_env,omitempty"`
	Dimensions           int    `yaml:"dimensions,omitempty"`
	ProviderBatchCeiling int    `yaml:"provider_batch_ceiling,omitempty"`
	ResponseShape        string `yaml:"response_shape,omitempty"`
	TimeoutSeconds       int    `yaml:"timeout_seconds,omitempty"`
}

// APIKey resolves the configured environment variable, or "" if unset.
func (e EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// ToProviderConfig converts the on-disk shape to embedder.Config.
func (e EmbeddingConfig) ToProviderConfig() embedder.Config {
	return embedder.Config{
		Provider:             e.Provider,
		Model:                e.Model,
		Endpoint:             e.Endpoint,
		APIKey:               e.APIKey(),
		Dimensions:           e.Dimensions,
		ProviderBatchCeiling: e.ProviderBatchCeiling,
		ResponseShape:        embedder.ResponseShape(e.ResponseShape),
		TimeoutSeconds:       e.TimeoutSeconds,
	}
}

// VectorDBConfig is the on-disk shape of vectordb.Config.
type VectorDBConfig struct {
	Provider       string `yaml:"provider"`
	Endpoint       string `yaml:"endpoint"`
	APIKeyEnv      string `yaml:"api_key_env,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// APIKey resolves the configured environment variable, or "" if unset.
func (v VectorDBConfig) APIKey() string {
	if v.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(v.APIKeyEnv)
}

// ToProviderConfig converts the on-disk shape to vectordb.Config.
func (v VectorDBConfig) ToProviderConfig() vectordb.Config {
	return vectordb.Config{
		Provider:       v.Provider,
		Endpoint:       v.Endpoint,
		APIKey:         v.APIKey(),
		TimeoutSeconds: v.TimeoutSeconds,
	}
}

// ChunkingConfig is the on-disk shape of chunker.Config.
type ChunkingConfig struct {
	MaxChunkChars    int  `yaml:"max_chunk_chars"`
	WindowChars      int  `yaml:"window_chars"`
	OverlapChars     int  `yaml:"overlap_chars"`
	MinChunkChars    int  `yaml:"min_chunk_chars"`
	MergeSmallChunks bool `yaml:"merge_small_chunks"`
}

// ToChunkerConfig converts the on-disk shape to chunker.Config.
func (c ChunkingConfig) ToChunkerConfig() chunker.Config {
	return chunker.Config{
		MaxChunkChars:    c.MaxChunkChars,
		WindowChars:      c.WindowChars,
		OverlapChars:     c.OverlapChars,
		MinChunkChars:    c.MinChunkChars,
		MergeSmallChunks: c.MergeSmallChunks,
	}
}

// CacheConfig locates the global cache directory (spec.md §6.5 covers
// logs). No oversized-chunk report is written there.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig controls the operational slog stream (not the per-run
// IndexLogger, which is unconditional per spec.md §6.5).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Manager owns the loaded GlobalConfig and supports SIGHUP-style hot
// reload via registered OnChange callbacks, mirroring the teacher's
// config.Manager.
type Manager struct {
	configPath string

	mu       sync.RWMutex
	config   *GlobalConfig
	onChange []func(*GlobalConfig)
}

// NewManager creates a Manager for the config file at configPath.
func NewManager(configPath string) *Manager {
	return &Manager{configPath: configPath}
}

// Load reads and parses the configuration file, applying defaults and
// validating the result.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := GlobalConfig{}
			applyDefaults(&cfg)
			m.config = &cfg
			return nil
		}
		return fmt.Errorf("config: read %s: %w", m.configPath, err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", m.configPath, err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return fmt.Errorf("config: invalid %s: %w", m.configPath, err)
	}

	m.config = &cfg
	return nil
}

// Reload re-reads the config file and notifies every OnChange listener.
func (m *Manager) Reload() error {
	if err := m.Load(); err != nil {
		return err
	}
	cfg := m.Get()
	for _, fn := range m.onChange {
		fn(cfg)
	}
	return nil
}

// Get returns the currently loaded configuration.
func (m *Manager) Get() *GlobalConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnChange registers a callback invoked after every successful Reload.
func (m *Manager) OnChange(fn func(*GlobalConfig)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// DefaultPath resolves $CODESEARCH_CONFIG, falling back to
// ~/.context/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("CODESEARCH_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".context/config.yaml"
	}
	return filepath.Join(home, ".context", "config.yaml")
}

// LogsDir resolves <home>/.context/logs, the IndexLogger's fixed location
// (spec.md §6.5) — distinct from Cache.Dir, which is configurable.
func LogsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".context", "logs")
	}
	return filepath.Join(home, ".context", "logs")
}

// LoadGlobal loads the configuration at DefaultPath (or $CODESEARCH_CONFIG).
func LoadGlobal() (*Manager, error) {
	m := NewManager(DefaultPath())
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func applyDefaults(cfg *GlobalConfig) {
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Endpoint == "" {
		cfg.Embedding.Endpoint = "http://localhost:11434"
	}
	if cfg.Embedding.ProviderBatchCeiling == 0 {
		cfg.Embedding.ProviderBatchCeiling = 32
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}

	if cfg.VectorDB.Provider == "" {
		cfg.VectorDB.Provider = "qdrant"
	}
	if cfg.VectorDB.Endpoint == "" {
		cfg.VectorDB.Endpoint = "localhost:6334"
	}
	if cfg.VectorDB.TimeoutSeconds == 0 {
		cfg.VectorDB.TimeoutSeconds = 30
	}

	defaults := chunker.DefaultConfig()
	if cfg.Chunking.MaxChunkChars == 0 {
		cfg.Chunking.MaxChunkChars = defaults.MaxChunkChars
	}
	if cfg.Chunking.WindowChars == 0 {
		cfg.Chunking.WindowChars = defaults.WindowChars
	}
	if cfg.Chunking.OverlapChars == 0 {
		cfg.Chunking.OverlapChars = defaults.OverlapChars
	}
	if cfg.Chunking.MinChunkChars == 0 {
		cfg.Chunking.MinChunkChars = defaults.MinChunkChars
	}

	if cfg.Cache.Dir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Cache.Dir = filepath.Join(home, ".context", "cache")
		} else {
			cfg.Cache.Dir = ".context/cache"
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *GlobalConfig) error {
	validEmbeddingProviders := map[string]bool{"ollama": true, "openai": true, "dashscope": true, "alibaba": true}
	if !validEmbeddingProviders[cfg.Embedding.Provider] {
		return fmt.Errorf("invalid embedding provider: %s", cfg.Embedding.Provider)
	}

	validVectorDBProviders := map[string]bool{"qdrant": true}
	if !validVectorDBProviders[cfg.VectorDB.Provider] {
		return fmt.Errorf("invalid vectordb provider: %s", cfg.VectorDB.Provider)
	}

	if cfg.Chunking.MinChunkChars >= cfg.Chunking.MaxChunkChars {
		return fmt.Errorf("min_chunk_chars must be less than max_chunk_chars")
	}

	return nil
}
