// Package chunker splits source files into semantically meaningful chunks
// for embedding and retrieval. Each chunk is a contiguous, 1-based inclusive
// line range whose content is the exact file substring between its
// boundaries after line-ending normalization.
package chunker

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Chunker defines the interface for all chunking strategies.
type Chunker interface {
	// Chunk splits content into chunks covering the whole file.
	Chunk(content []byte, metadata FileMetadata) ([]Chunk, error)

	// Name returns the chunking strategy name.
	Name() string
}

// FileMetadata describes the file being chunked.
type FileMetadata struct {
	// Relative file path within the project, forward-slash normalized.
	FilePath string

	// Programming language, as detected from the file extension.
	Language string

	// Module/package name, derived from the containing directory.
	Module string

	// CollectionName the chunk will be written into.
	CollectionName string
}

// Chunk is a contiguous slice of one file.
type Chunk struct {
	// ID is stable, derived from collection + path + line range + hash.
	ID string

	Content string

	// Symbol is the declaration name (function, class, heading, ...), or
	// empty for window/file-level chunks.
	Symbol string

	// SymbolType categorizes Symbol (function, method, struct, heading,
	// "window", "file", ...).
	SymbolType string

	// StartLine, EndLine are 1-based and inclusive.
	StartLine int
	EndLine   int

	TokenCount  int
	ContentHash string

	FilePath       string
	Language       string
	Module         string
	CollectionName string

	// Metadata carries any additional JSON-serializable key/values a
	// caller wants attached to the stored row (spec.md §3.1).
	Metadata map[string]any
}

// Config holds chunking parameters shared by all strategies.
type Config struct {
	// MaxChunkChars caps a syntax-aware chunk's content length:
	// declarations exceeding it are subdivided at line boundaries, and a
	// single line longer than the cap stays one chunk. The window fallback
	// is bounded by WindowChars instead, and the markdown chunker does not
	// apply this cap.
	MaxChunkChars int

	// WindowChars/OverlapChars parametrize the character-window fallback.
	WindowChars  int
	OverlapChars int

	// MinChunkChars: syntax nodes smaller than this are merged into an
	// adjacent chunk rather than kept standalone (mirrors the teacher's
	// MergeSmallChunks behavior, expressed in characters instead of an
	// estimated token count).
	MinChunkChars int

	// MergeSmallChunks toggles the merge behavior above.
	MergeSmallChunks bool
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxChunkChars:    3200, // ~800 tokens at ~4 chars/token
		WindowChars:      2000,
		OverlapChars:     200,
		MinChunkChars:    120,
		MergeSmallChunks: true,
	}
}

// GenerateChunkID creates a deterministic ID for a chunk (spec.md §3.1:
// derived from collection + relativePath + startLine + endLine + hash).
func GenerateChunkID(collectionName, filePath string, startLine, endLine int, contentHash string) string {
	hashPrefix := contentHash
	if len(hashPrefix) > 16 {
		hashPrefix = hashPrefix[:16]
	}
	return fmt.Sprintf("%s:%s:%d-%d:%s", collectionName, filePath, startLine, endLine, hashPrefix)
}

// HashContent returns the SHA-256 hex digest of content.
func HashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h)
}

// EstimateTokens is a rough token-count heuristic (~4 chars/token for
// code) that fills Chunk.TokenCount; nothing depends on it for correctness.
func EstimateTokens(content string) int {
	return len(content) / 4
}

// Line pairs a 1-indexed line number with its content.
type Line struct {
	Number  int
	Content string
}

// SplitIntoLines splits content into lines while preserving line numbers.
func SplitIntoLines(content string) []Line {
	rawLines := normalizeLines(content)
	lines := make([]Line, len(rawLines))
	for i, l := range rawLines {
		lines[i] = Line{Number: i + 1, Content: l}
	}
	return lines
}

// JoinLines combines lines back into content.
func JoinLines(lines []Line) string {
	strs := make([]string, len(lines))
	for i, l := range lines {
		strs[i] = l.Content
	}
	return strings.Join(strs, "\n")
}

// normalizeLines splits content on '\n' after stripping '\r', so chunk line
// boundaries are stable regardless of the file's original line endings.
func normalizeLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.Split(content, "\n")
}

// extractLines returns the 1-indexed inclusive [start, end] line range,
// clamped to the available lines.
func extractLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

// isBlank reports whether content has no non-whitespace characters.
func isBlank(content string) bool {
	return strings.TrimSpace(content) == ""
}
