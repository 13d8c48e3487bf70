package chunker

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TreeSitterChunker is the syntax-aware strategy (spec.md §4.2): it parses
// a file into a tree-sitter tree and emits chunks aligned to top-level or
// nested declarations, subdividing declarations over MaxChunkChars at
// statement boundaries and merging declarations under MinChunkChars into
// their neighbor.
type TreeSitterChunker struct {
	config   Config
	fallback *WindowChunker
}

// NewTreeSitterChunker creates a new syntax-aware chunker. fallback handles
// any file whose language isn't supported or whose parse fails.
func NewTreeSitterChunker(cfg Config, fallback *WindowChunker) *TreeSitterChunker {
	return &TreeSitterChunker{config: cfg, fallback: fallback}
}

// Name returns the chunking strategy name.
func (c *TreeSitterChunker) Name() string {
	return "syntax"
}

// SupportedLanguages lists the languages with a tree-sitter grammar wired
// in. Anything else falls back to the character-window strategy.
func SupportedLanguages() []string {
	return []string{"go", "javascript", "typescript", "python"}
}

func languageFor(lang string) (*sitter.Language, bool) {
	switch lang {
	case "go":
		return golang.GetLanguage(), true
	case "javascript":
		return javascript.GetLanguage(), true
	case "typescript":
		return typescript.GetLanguage(), true
	case "python":
		return python.GetLanguage(), true
	default:
		return nil, false
	}
}

// interestingNodeTypes maps tree-sitter node types to a human chunk-type
// label, per language. Only these nodes become standalone chunks; their
// descendants are not recursed into once matched.
func interestingNodeTypes(lang string) map[string]string {
	switch lang {
	case "go":
		return map[string]string{
			"function_declaration": "function",
			"method_declaration":   "method",
			"type_declaration":     "type",
		}
	case "python":
		return map[string]string{
			"function_definition": "function",
			"class_definition":    "class",
		}
	case "javascript", "typescript":
		return map[string]string{
			"function_declaration":   "function",
			"method_definition":      "method",
			"class_declaration":      "class",
			"interface_declaration":  "interface",
			"type_alias_declaration": "type",
		}
	default:
		return nil
	}
}

// Chunk parses content with tree-sitter and emits declaration-aligned
// chunks, falling back to the character window when parsing isn't possible
// or yields nothing.
func (c *TreeSitterChunker) Chunk(content []byte, metadata FileMetadata) ([]Chunk, error) {
	if isBlank(string(content)) {
		return nil, nil
	}

	tsLang, ok := languageFor(metadata.Language)
	if !ok {
		return c.fallback.Chunk(content, metadata)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(tsLang)
	defer parser.Close()

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return c.fallback.Chunk(content, metadata)
	}
	defer tree.Close()

	interesting := interestingNodeTypes(metadata.Language)
	var raw []rawSymbol
	c.walk(tree.RootNode(), content, interesting, &raw)

	if len(raw) == 0 {
		return c.fallback.Chunk(content, metadata)
	}

	lines := normalizeLines(string(content))
	raw = mergeAdjacentLineRanges(raw)
	raw = c.mergeSmall(raw)

	chunks := make([]Chunk, 0, len(raw))
	for _, sym := range raw {
		chunks = append(chunks, c.subdivide(sym, lines, metadata)...)
	}
	return chunks, nil
}

type rawSymbol struct {
	name      string
	kind      string
	startLine int
	endLine   int
}

// walk traverses the AST depth-first, collecting one rawSymbol per
// interesting node and not recursing into a node once it matches (its
// body belongs to that one chunk).
func (c *TreeSitterChunker) walk(node *sitter.Node, source []byte, interesting map[string]string, out *[]rawSymbol) {
	if node == nil {
		return
	}
	if kind, ok := interesting[node.Type()]; ok {
		*out = append(*out, rawSymbol{
			name:      symbolName(node, source),
			kind:      kind,
			startLine: int(node.StartPoint().Row) + 1,
			endLine:   int(node.EndPoint().Row) + 1,
		})
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		c.walk(node.Child(i), source, interesting, out)
	}
}

func symbolName(node *sitter.Node, source []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier", "type_identifier", "property_identifier", "field_identifier":
			return child.Content(source)
		case "type_spec":
			if name := symbolName(child, source); name != "" {
				return name
			}
		}
	}
	return ""
}

// mergeAdjacentLineRanges implements the tie-break rule (spec.md §4.2):
// when a declaration begins on the same line the previous one ends, the
// previous chunk's endLine is pulled back so ranges are non-overlapping in
// line space.
func mergeAdjacentLineRanges(symbols []rawSymbol) []rawSymbol {
	for i := 1; i < len(symbols); i++ {
		if symbols[i].startLine <= symbols[i-1].endLine {
			symbols[i-1].endLine = symbols[i].startLine - 1
			if symbols[i-1].endLine < symbols[i-1].startLine {
				symbols[i-1].endLine = symbols[i-1].startLine
			}
		}
	}
	return symbols
}

// mergeSmall merges declarations under MinChunkChars into the previous
// kept declaration; a small declaration with nothing before it stays
// standalone. Mirrors the teacher's MergeSmallChunks behavior.
func (c *TreeSitterChunker) mergeSmall(symbols []rawSymbol) []rawSymbol {
	if !c.config.MergeSmallChunks || len(symbols) <= 1 {
		return symbols
	}
	minChars := c.config.MinChunkChars
	if minChars <= 0 {
		return symbols
	}

	result := make([]rawSymbol, 0, len(symbols))
	for _, sym := range symbols {
		size := approxCharSpan(sym)
		if size < minChars && len(result) > 0 {
			result[len(result)-1].endLine = sym.endLine
			if sym.name != "" {
				result[len(result)-1].name = result[len(result)-1].name + "+" + sym.name
			}
			continue
		}
		result = append(result, sym)
	}
	return result
}

func approxCharSpan(sym rawSymbol) int {
	return (sym.endLine - sym.startLine + 1) * 40 // coarse, pre-render estimate
}

// subdivide converts one rawSymbol into one or more Chunks, splitting at
// statement (line) boundaries if its rendered content exceeds
// Config.MaxChunkChars.
func (c *TreeSitterChunker) subdivide(sym rawSymbol, lines []string, metadata FileMetadata) []Chunk {
	maxChars := c.config.MaxChunkChars
	if maxChars <= 0 {
		maxChars = DefaultConfig().MaxChunkChars
	}

	content := extractLines(lines, sym.startLine, sym.endLine)
	if isBlank(content) {
		return nil
	}

	if len(content) <= maxChars {
		return []Chunk{c.makeChunk(content, sym, metadata)}
	}

	var out []Chunk
	start := sym.startLine
	for start <= sym.endLine {
		end := start
		size := len(lines[start-1])
		for end < sym.endLine && size+len(lines[end])+1 <= maxChars {
			end++
			size += len(lines[end-1]) + 1
		}
		chunkContent := extractLines(lines, start, end)
		if !isBlank(chunkContent) {
			part := sym
			part.startLine = start
			part.endLine = end
			out = append(out, c.makeChunk(chunkContent, part, metadata))
		}
		start = end + 1
	}
	return out
}

func (c *TreeSitterChunker) makeChunk(content string, sym rawSymbol, metadata FileMetadata) Chunk {
	contentHash := HashContent(content)
	symbol := sym.name
	if symbol == "" {
		symbol = strings.TrimSuffix(filepath.Base(metadata.FilePath), filepath.Ext(metadata.FilePath))
	}

	return Chunk{
		ID:             GenerateChunkID(metadata.CollectionName, metadata.FilePath, sym.startLine, sym.endLine, contentHash),
		Content:        content,
		Symbol:         symbol,
		SymbolType:     sym.kind,
		StartLine:      sym.startLine,
		EndLine:        sym.endLine,
		TokenCount:     EstimateTokens(content),
		ContentHash:    contentHash,
		FilePath:       metadata.FilePath,
		Language:       metadata.Language,
		Module:         metadata.Module,
		CollectionName: metadata.CollectionName,
	}
}
