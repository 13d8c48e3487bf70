package chunker

import (
	"regexp"
	"strings"
)

// MarkdownChunker implements heading-based chunking for Markdown files.
type MarkdownChunker struct {
	config Config
}

// NewMarkdownChunker creates a new Markdown chunker.
func NewMarkdownChunker(cfg Config) *MarkdownChunker {
	return &MarkdownChunker{config: cfg}
}

// Name returns the chunker strategy name.
func (m *MarkdownChunker) Name() string {
	return "heading"
}

// mdSection represents a section of a markdown document.
type mdSection struct {
	heading   string
	level     int
	startLine int
	endLine   int
	content   string
}

// headingPattern matches markdown headings.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Chunk splits Markdown content at heading boundaries.
func (m *MarkdownChunker) Chunk(content []byte, metadata FileMetadata) ([]Chunk, error) {
	if isBlank(string(content)) {
		return nil, nil
	}

	lines := normalizeLines(string(content))
	sections := m.extractSections(lines)

	if len(sections) == 0 {
		return m.chunkAsFile(content, metadata), nil
	}

	if m.config.MergeSmallChunks {
		sections = m.mergeSmallSections(sections)
	}

	chunks := make([]Chunk, 0, len(sections))
	for _, sec := range sections {
		if isBlank(sec.content) {
			continue
		}
		contentHash := HashContent(sec.content)
		chunks = append(chunks, Chunk{
			ID:             GenerateChunkID(metadata.CollectionName, metadata.FilePath, sec.startLine, sec.endLine, contentHash),
			Content:        sec.content,
			Symbol:         sec.heading,
			SymbolType:     "heading",
			StartLine:      sec.startLine,
			EndLine:        sec.endLine,
			TokenCount:     EstimateTokens(sec.content),
			ContentHash:    contentHash,
			FilePath:       metadata.FilePath,
			Language:       "markdown",
			Module:         metadata.Module,
			CollectionName: metadata.CollectionName,
		})
	}

	return chunks, nil
}

// extractSections extracts sections from markdown lines.
func (m *MarkdownChunker) extractSections(lines []string) []mdSection {
	sections := make([]mdSection, 0)
	var current *mdSection

	for i, line := range lines {
		lineNum := i + 1

		if matches := headingPattern.FindStringSubmatch(line); matches != nil {
			level := len(matches[1])
			heading := matches[2]

			if current != nil {
				current.endLine = lineNum - 1
				sections = append(sections, *current)
			}

			current = &mdSection{
				heading:   heading,
				level:     level,
				startLine: lineNum,
				content:   line,
			}
		} else if current != nil {
			current.content += "\n" + line
		} else {
			current = &mdSection{
				heading:   "(intro)",
				level:     0,
				startLine: lineNum,
				content:   line,
			}
		}
	}

	if current != nil {
		current.endLine = len(lines)
		sections = append(sections, *current)
	}

	return sections
}

// mergeSmallSections merges sections below MinChunkChars into the previous
// kept section; a small section with no kept section before it (such as a
// short intro blurb) is prepended to the following section instead.
func (m *MarkdownChunker) mergeSmallSections(sections []mdSection) []mdSection {
	if len(sections) <= 1 {
		return sections
	}

	minChars := m.config.MinChunkChars
	if minChars <= 0 {
		return sections
	}

	result := make([]mdSection, 0, len(sections))

	for i, sec := range sections {
		switch {
		case len(sec.content) < minChars && len(result) > 0:
			prev := &result[len(result)-1]
			prev.content += "\n\n" + sec.content
			prev.endLine = sec.endLine
		case len(sec.content) < minChars && i < len(sections)-1:
			next := &sections[i+1]
			next.content = sec.content + "\n\n" + next.content
			next.startLine = sec.startLine
		default:
			result = append(result, sec)
		}
	}

	return result
}

// chunkAsFile returns the entire file as a single chunk, used when
// extractSections yields no section at all (text before the first heading,
// or in a file without headings, becomes an "(intro)" section instead).
func (m *MarkdownChunker) chunkAsFile(content []byte, metadata FileMetadata) []Chunk {
	contentStr := string(content)
	contentHash := HashContent(contentStr)

	symbol := metadata.FilePath
	for _, line := range normalizeLines(contentStr) {
		if matches := headingPattern.FindStringSubmatch(line); matches != nil {
			symbol = matches[2]
			break
		}
	}

	endLine := strings.Count(contentStr, "\n") + 1
	return []Chunk{{
		ID:             GenerateChunkID(metadata.CollectionName, metadata.FilePath, 1, endLine, contentHash),
		Content:        contentStr,
		Symbol:         symbol,
		SymbolType:     "document",
		StartLine:      1,
		EndLine:        endLine,
		TokenCount:     EstimateTokens(contentStr),
		ContentHash:    contentHash,
		FilePath:       metadata.FilePath,
		Language:       "markdown",
		Module:         metadata.Module,
		CollectionName: metadata.CollectionName,
	}}
}
