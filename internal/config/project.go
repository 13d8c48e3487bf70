package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iasik/codesearch/internal/chunker"
	"github.com/iasik/codesearch/internal/walker"
)

// ProjectOverrides is the direct generalization of the teacher's
// ProjectConfig (SPEC_FULL.md §3): include/exclude patterns and chunking
// overrides scoped to the one project at <projectPath>/.context/config.yaml,
// with the teacher's ProjectID replaced by the derived CollectionName.
type ProjectOverrides struct {
	IncludeExtensions []string          `yaml:"include_extensions,omitempty"`
	ExcludePaths      []string          `yaml:"exclude_paths,omitempty"`
	Chunking          ChunkingOverrides `yaml:"chunking,omitempty"`
	MaxFileBytes      int64             `yaml:"max_file_bytes,omitempty"`
}

// ChunkingOverrides holds per-project overrides of the global ChunkingConfig;
// a zero field means "use the global value."
type ChunkingOverrides struct {
	MaxChunkChars int `yaml:"max_chunk_chars,omitempty"`
	WindowChars   int `yaml:"window_chars,omitempty"`
	OverlapChars  int `yaml:"overlap_chars,omitempty"`
	MinChunkChars int `yaml:"min_chunk_chars,omitempty"`
}

// defaultIncludeExtensions lists common source-language extensions plus
// markdown; languages without a syntax-aware chunker fall back to the
// window chunker. Config formats are not included.
var defaultIncludeExtensions = []string{
	".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs",
	".java", ".rs", ".rb", ".php", ".c", ".cpp", ".h", ".hpp",
	".cs", ".swift", ".kt", ".scala", ".md", ".markdown",
}

var defaultExcludePaths = []string{
	".git/", "node_modules/", "vendor/", ".context/",
}

func projectConfigPath(projectPath string) string {
	return filepath.Join(projectPath, ".context", "config.yaml")
}

// LoadProjectOverrides reads <projectPath>/.context/config.yaml. It
// returns a zero-value ProjectOverrides (with defaults applied), not an
// error, when no such file exists — overrides are optional.
func LoadProjectOverrides(projectPath string) (*ProjectOverrides, error) {
	data, err := os.ReadFile(projectConfigPath(projectPath))
	if err != nil {
		if os.IsNotExist(err) {
			o := &ProjectOverrides{}
			applyProjectDefaults(o)
			return o, nil
		}
		return nil, fmt.Errorf("config: read project overrides: %w", err)
	}

	var o ProjectOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("config: parse project overrides: %w", err)
	}
	applyProjectDefaults(&o)
	return &o, nil
}

func applyProjectDefaults(o *ProjectOverrides) {
	if len(o.IncludeExtensions) == 0 {
		o.IncludeExtensions = defaultIncludeExtensions
	}
	if len(o.ExcludePaths) == 0 {
		o.ExcludePaths = defaultExcludePaths
	}
}

// EffectiveChunking applies this project's overrides on top of global,
// mirroring the teacher's ProjectConfig.GetEffectiveChunking.
func (o *ProjectOverrides) EffectiveChunking(global chunker.Config) chunker.Config {
	result := global
	if o.Chunking.MaxChunkChars > 0 {
		result.MaxChunkChars = o.Chunking.MaxChunkChars
	}
	if o.Chunking.WindowChars > 0 {
		result.WindowChars = o.Chunking.WindowChars
	}
	if o.Chunking.OverlapChars > 0 {
		result.OverlapChars = o.Chunking.OverlapChars
	}
	if o.Chunking.MinChunkChars > 0 {
		result.MinChunkChars = o.Chunking.MinChunkChars
	}
	return result
}

// WalkerOptions builds the walker.Options this project's FileWalker pass
// should use, normalizing include extensions to the lowercase
// leading-dot form walker.Options expects.
func (o *ProjectOverrides) WalkerOptions() walker.Options {
	exts := make([]string, len(o.IncludeExtensions))
	for i, e := range o.IncludeExtensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[i] = e
	}
	return walker.Options{
		IncludeExtensions: exts,
		ExcludePatterns:   o.ExcludePaths,
		MaxFileBytes:      o.MaxFileBytes,
	}
}
