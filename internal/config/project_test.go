package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iasik/codesearch/internal/chunker"
)

func TestLoadProjectOverrides_MissingFileAppliesDefaults(t *testing.T) {
	root := t.TempDir()
	o, err := LoadProjectOverrides(root)
	if err != nil {
		t.Fatalf("LoadProjectOverrides failed: %v", err)
	}
	if len(o.IncludeExtensions) == 0 {
		t.Error("expected default include extensions to be applied")
	}
	if len(o.ExcludePaths) == 0 {
		t.Error("expected default exclude paths to be applied")
	}
}

func TestLoadProjectOverrides_ParsesYAML(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".context")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := `
include_extensions:
  - .go
  - .md
exclude_paths:
  - vendor/
chunking:
  max_chunk_chars: 4000
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	o, err := LoadProjectOverrides(root)
	if err != nil {
		t.Fatalf("LoadProjectOverrides failed: %v", err)
	}
	if len(o.IncludeExtensions) != 2 {
		t.Errorf("expected 2 include extensions, got %d", len(o.IncludeExtensions))
	}
	if len(o.ExcludePaths) != 1 || o.ExcludePaths[0] != "vendor/" {
		t.Errorf("expected overridden exclude paths, got %v", o.ExcludePaths)
	}
	if o.Chunking.MaxChunkChars != 4000 {
		t.Errorf("expected max_chunk_chars override 4000, got %d", o.Chunking.MaxChunkChars)
	}
}

func TestProjectOverrides_EffectiveChunking(t *testing.T) {
	global := chunker.DefaultConfig()
	o := &ProjectOverrides{Chunking: ChunkingOverrides{MaxChunkChars: 9999}}

	effective := o.EffectiveChunking(global)
	if effective.MaxChunkChars != 9999 {
		t.Errorf("expected override to apply, got %d", effective.MaxChunkChars)
	}
	if effective.WindowChars != global.WindowChars {
		t.Errorf("expected non-overridden fields to fall back to global, got %d", effective.WindowChars)
	}
}

func TestProjectOverrides_WalkerOptions(t *testing.T) {
	o := &ProjectOverrides{
		IncludeExtensions: []string{".go"},
		ExcludePaths:      []string{"vendor/"},
		MaxFileBytes:      1024,
	}

	opts := o.WalkerOptions()
	if len(opts.IncludeExtensions) != 1 || opts.IncludeExtensions[0] != ".go" {
		t.Errorf("expected include extensions to carry through, got %v", opts.IncludeExtensions)
	}
	if opts.MaxFileBytes != 1024 {
		t.Errorf("expected max file bytes to carry through, got %d", opts.MaxFileBytes)
	}
}
