package chunker

import (
	"path/filepath"
	"strings"
)

// Factory selects the right Chunker for a file based on its detected
// language: tree-sitter for every language with a wired grammar, heading
// splitting for markdown, and the character window for everything else.
type Factory struct {
	treeSitter *TreeSitterChunker
	markdown   *MarkdownChunker
	window     *WindowChunker
}

// NewFactory creates a new chunker factory from a shared Config.
func NewFactory(cfg Config) *Factory {
	window := NewWindowChunker(cfg)
	return &Factory{
		treeSitter: NewTreeSitterChunker(cfg, window),
		markdown:   NewMarkdownChunker(cfg),
		window:     window,
	}
}

// GetChunker returns the appropriate chunker for a file based on its
// detected language.
func (f *Factory) GetChunker(filePath string) Chunker {
	lang := DetectLanguage(filePath)

	switch lang {
	case "markdown":
		return f.markdown
	case "go", "javascript", "typescript", "python":
		return f.treeSitter
	default:
		return f.window
	}
}

// GetChunkerByStrategy returns a chunker by explicit strategy name, used by
// per-project config overrides.
func (f *Factory) GetChunkerByStrategy(strategy string) Chunker {
	switch strategy {
	case "syntax":
		return f.treeSitter
	case "heading":
		return f.markdown
	case "window", "fixed":
		return f.window
	default:
		return f.window
	}
}

// DetectLanguage detects the programming language from a file extension.
func DetectLanguage(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))

	languages := map[string]string{
		".go":       "go",
		".md":       "markdown",
		".markdown": "markdown",
		".py":       "python",
		".js":       "javascript",
		".ts":       "typescript",
		".jsx":      "javascript",
		".tsx":      "typescript",
		".mjs":      "javascript",
		".cjs":      "javascript",
		".java":     "java",
		".rs":       "rust",
		".rb":       "ruby",
		".php":      "php",
		".c":        "c",
		".cpp":      "cpp",
		".h":        "c",
		".hpp":      "cpp",
		".cs":       "csharp",
		".swift":    "swift",
		".kt":       "kotlin",
		".scala":    "scala",
		".sql":      "sql",
		".sh":       "shell",
		".bash":     "shell",
		".zsh":      "shell",
		".yaml":     "yaml",
		".yml":      "yaml",
		".json":     "json",
		".xml":      "xml",
		".html":     "html",
		".css":      "css",
		".scss":     "scss",
		".less":     "less",
		".vue":      "vue",
		".svelte":   "svelte",
	}

	if lang, ok := languages[ext]; ok {
		return lang
	}
	return "text"
}

// ExtractModule extracts a module/package name from a file path, using the
// immediate parent directory.
func ExtractModule(filePath string) string {
	dir := filepath.Dir(filePath)
	if dir == "." {
		return ""
	}

	parts := strings.Split(dir, string(filepath.Separator))
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return ""
}
