package chunker

import (
	"path/filepath"
	"strings"
)

// WindowChunker implements the character-window fallback (spec.md §4.2):
// a sliding window of Config.WindowChars characters with Config.OverlapChars
// overlap, aligned to the nearest newline. It is used whenever a syntax
// parser is unavailable for the file's language, returns an error, or the
// extension is unrecognized.
type WindowChunker struct {
	config Config
}

// NewWindowChunker creates a new character-window chunker.
func NewWindowChunker(cfg Config) *WindowChunker {
	return &WindowChunker{config: cfg}
}

// Name returns the chunking strategy name.
func (w *WindowChunker) Name() string {
	return "window"
}

// Chunk splits content into overlapping character windows.
func (w *WindowChunker) Chunk(content []byte, metadata FileMetadata) ([]Chunk, error) {
	text := strings.Join(normalizeLines(string(content)), "\n")
	if isBlank(text) {
		return nil, nil
	}

	windowChars := w.config.WindowChars
	if windowChars <= 0 {
		windowChars = DefaultConfig().WindowChars
	}
	overlapChars := w.config.OverlapChars
	if overlapChars < 0 || overlapChars >= windowChars {
		overlapChars = DefaultConfig().OverlapChars
	}

	if len(text) <= windowChars {
		return w.singleChunk(text, metadata), nil
	}

	lineOffsets := lineStartOffsets(text)

	var chunks []Chunk
	pos := 0
	for pos < len(text) {
		end := pos + windowChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = alignToNewline(text, pos, end)
		}
		if end <= pos {
			end = len(text)
		}

		chunkText := text[pos:end]
		if !isBlank(chunkText) {
			startLine := lineForOffset(lineOffsets, pos)
			endLine := lineForOffset(lineOffsets, max(end-1, pos))
			chunks = append(chunks, w.makeChunk(chunkText, startLine, endLine, metadata))
		}

		if end >= len(text) {
			break
		}
		next := end - overlapChars
		if next <= pos {
			next = end
		} else if nl := strings.LastIndexByte(text[pos:next], '\n'); nl >= 0 {
			next = pos + nl + 1
		}
		pos = next
	}

	return chunks, nil
}

func (w *WindowChunker) singleChunk(content string, metadata FileMetadata) []Chunk {
	endLine := strings.Count(strings.TrimRight(content, "\n"), "\n") + 1
	return []Chunk{w.makeChunk(content, 1, endLine, metadata)}
}

func (w *WindowChunker) makeChunk(content string, startLine, endLine int, metadata FileMetadata) Chunk {
	trimmed := strings.TrimRight(content, "\n")
	contentHash := HashContent(trimmed)
	symbol := strings.TrimSuffix(filepath.Base(metadata.FilePath), filepath.Ext(metadata.FilePath))

	return Chunk{
		ID:             GenerateChunkID(metadata.CollectionName, metadata.FilePath, startLine, endLine, contentHash),
		Content:        trimmed,
		Symbol:         symbol,
		SymbolType:     "window",
		StartLine:      startLine,
		EndLine:        endLine,
		TokenCount:     EstimateTokens(trimmed),
		ContentHash:    contentHash,
		FilePath:       metadata.FilePath,
		Language:       metadata.Language,
		Module:         metadata.Module,
		CollectionName: metadata.CollectionName,
	}
}

// lineStartOffsets returns the byte offset of the first character of each
// line, in ascending order; lineStartOffsets[i] is the offset of line i+1.
func lineStartOffsets(text string) []int {
	offsets := []int{0}
	for i, c := range text {
		if c == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// lineForOffset returns the 1-based line number containing byte offset pos.
func lineForOffset(offsets []int, pos int) int {
	lo, hi := 0, len(offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if offsets[mid] <= pos {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

// alignToNewline pulls end back to just past the last newline inside
// text[start:end], so windows don't split mid-line; a window holding no
// newline (one line longer than the window) keeps its end.
func alignToNewline(text string, start, end int) int {
	if i := strings.LastIndexByte(text[start:end], '\n'); i >= 0 {
		return start + i + 1
	}
	return end
}
