package chunker

import "testing"

func TestMarkdownChunker_HeadingBoundaries(t *testing.T) {
	chunker := NewMarkdownChunker(Config{MinChunkChars: 1, MergeSmallChunks: false})

	content := []byte(`# Title

Intro text.

## Usage

Run the binary like this.

## Configuration

Set these fields.
`)

	metadata := FileMetadata{FilePath: "README.md", CollectionName: "test-collection"}

	chunks, err := chunker.Chunk(content, metadata)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(chunks))
	}
	if chunks[0].Symbol != "Title" || chunks[1].Symbol != "Usage" || chunks[2].Symbol != "Configuration" {
		t.Errorf("unexpected heading order: %q, %q, %q", chunks[0].Symbol, chunks[1].Symbol, chunks[2].Symbol)
	}
	for _, c := range chunks {
		if c.SymbolType != "heading" {
			t.Errorf("expected SymbolType heading, got %s", c.SymbolType)
		}
	}
}

func TestMarkdownChunker_MergesSmallSections(t *testing.T) {
	chunker := NewMarkdownChunker(Config{MinChunkChars: 500, MergeSmallChunks: true})

	content := []byte(`# A

x

# B

y

# C

z
`)

	metadata := FileMetadata{FilePath: "short.md", CollectionName: "test-collection"}

	chunks, err := chunker.Chunk(content, metadata)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected all small sections to merge into one chunk, got %d", len(chunks))
	}
}

func TestMarkdownChunker_NoHeadingsProducesIntroSection(t *testing.T) {
	chunker := NewMarkdownChunker(DefaultConfig())

	content := []byte("just some plain prose with no headings at all\n")
	metadata := FileMetadata{FilePath: "notes.md", CollectionName: "test-collection"}

	chunks, err := chunker.Chunk(content, metadata)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Symbol != "(intro)" {
		t.Fatalf("expected a single implicit intro chunk, got %+v", chunks)
	}
}

func TestMarkdownChunker_EmptyFile(t *testing.T) {
	chunker := NewMarkdownChunker(DefaultConfig())

	chunks, err := chunker.Chunk([]byte(""), FileMetadata{FilePath: "empty.md", CollectionName: "test-collection"})
	if err != nil {
		t.Fatalf("Chunk failed on empty file: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty file, got %d", len(chunks))
	}
}
