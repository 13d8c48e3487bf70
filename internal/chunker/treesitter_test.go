package chunker

import (
	"strings"
	"testing"
)

func TestTreeSitterChunker_GoFunctions(t *testing.T) {
	cfg := DefaultConfig()
	chunker := NewTreeSitterChunker(cfg, NewWindowChunker(cfg))

	content := []byte(`package math

// Add sums two integers.
func Add(a, b int) int {
	return a + b
}

type Point struct {
	X, Y int
}

func (p Point) String() string {
	return "point"
}
`)

	metadata := FileMetadata{
		FilePath:       "math.go",
		Language:       "go",
		CollectionName: "test-collection",
	}

	chunks, err := chunker.Chunk(content, metadata)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	foundAdd, foundPoint, foundString := false, false, false
	for _, c := range chunks {
		switch {
		case strings.Contains(c.Symbol, "Add"):
			foundAdd = true
			if c.SymbolType != "function" {
				t.Errorf("expected Add to be type function, got %s", c.SymbolType)
			}
		case strings.Contains(c.Symbol, "Point") && c.SymbolType == "type":
			foundPoint = true
		case strings.Contains(c.Symbol, "String"):
			foundString = true
			if c.SymbolType != "method" {
				t.Errorf("expected String to be type method, got %s", c.SymbolType)
			}
		}
	}

	if !foundAdd {
		t.Error("expected to find Add function")
	}
	if !foundPoint {
		t.Error("expected to find Point type")
	}
	if !foundString {
		t.Error("expected to find String method")
	}
}

func TestTreeSitterChunker_DeterministicOutput(t *testing.T) {
	cfg := DefaultConfig()
	chunker := NewTreeSitterChunker(cfg, NewWindowChunker(cfg))

	content := []byte(`package sample

func Foo() {}

func Bar() {}
`)

	metadata := FileMetadata{
		FilePath:       "sample.go",
		Language:       "go",
		CollectionName: "test-collection",
	}

	chunks1, err := chunker.Chunk(content, metadata)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	chunks2, err := chunker.Chunk(content, metadata)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	if len(chunks1) != len(chunks2) {
		t.Fatalf("determinism failed: different chunk counts %d vs %d", len(chunks1), len(chunks2))
	}
	for i := range chunks1 {
		if chunks1[i].ID != chunks2[i].ID {
			t.Errorf("determinism failed: chunk %d has different IDs", i)
		}
	}
}

func TestTreeSitterChunker_EmptyFile(t *testing.T) {
	cfg := DefaultConfig()
	chunker := NewTreeSitterChunker(cfg, NewWindowChunker(cfg))

	metadata := FileMetadata{
		FilePath:       "empty.go",
		Language:       "go",
		CollectionName: "test-collection",
	}

	chunks, err := chunker.Chunk([]byte(""), metadata)
	if err != nil {
		t.Fatalf("Chunk failed on empty file: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty file, got %d", len(chunks))
	}
}

func TestTreeSitterChunker_UnsupportedLanguageFallsBackToWindow(t *testing.T) {
	cfg := DefaultConfig()
	window := NewWindowChunker(cfg)
	chunker := NewTreeSitterChunker(cfg, window)

	metadata := FileMetadata{
		FilePath:       "main.rs",
		Language:       "rust",
		CollectionName: "test-collection",
	}

	content := []byte("fn main() {\n    println!(\"hi\");\n}\n")

	chunks, err := chunker.Chunk(content, metadata)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].SymbolType != "window" {
		t.Fatalf("expected fallback to the window chunker, got %+v", chunks)
	}
}

func TestTreeSitterChunker_SubdividesOversizedDeclaration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxChunkChars = 200
	chunker := NewTreeSitterChunker(cfg, NewWindowChunker(cfg))

	var body strings.Builder
	body.WriteString("package big\n\nfunc Huge() {\n")
	for i := 0; i < 60; i++ {
		body.WriteString("\tdoSomething()\n")
	}
	body.WriteString("}\n")

	metadata := FileMetadata{
		FilePath:       "big.go",
		Language:       "go",
		CollectionName: "test-collection",
	}

	chunks, err := chunker.Chunk([]byte(body.String()), metadata)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected the oversized function to be split into multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Content) > cfg.MaxChunkChars {
			t.Errorf("chunk exceeds MaxChunkChars: %d > %d", len(c.Content), cfg.MaxChunkChars)
		}
	}
}
