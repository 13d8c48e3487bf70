package metadata

import "testing"

func TestProjectMetadata_SaveAndLoad(t *testing.T) {
	root := t.TempDir()

	m := New(root, "code_chunks_abcd1234", "", false)
	m.EmbeddingModel = "text-embedding-3-small"
	m.EmbeddingDimension = 1536
	m.IndexedFileCount = 2
	m.TotalChunks = 5

	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected metadata to be loaded, got nil")
	}
	if loaded.CollectionName != "code_chunks_abcd1234" {
		t.Errorf("unexpected collection name: %s", loaded.CollectionName)
	}
	if loaded.EmbeddingDimension != 1536 {
		t.Errorf("expected dimension 1536, got %d", loaded.EmbeddingDimension)
	}
	if loaded.TotalChunks != 5 {
		t.Errorf("expected 5 total chunks, got %d", loaded.TotalChunks)
	}
}

func TestProjectMetadata_LoadMissingReturnsNil(t *testing.T) {
	root := t.TempDir()

	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil metadata for a project with none saved, got %+v", loaded)
	}
}

func TestProjectMetadata_ConsistentWith(t *testing.T) {
	m := New("/repo", "code_chunks_abcd1234", "", false)

	if !m.ConsistentWith("code_chunks_abcd1234") {
		t.Error("expected metadata to be consistent with its own collection name")
	}
	if m.ConsistentWith("code_chunks_ffffffff") {
		t.Error("expected metadata to be inconsistent with a different collection name")
	}

	var nilMeta *ProjectMetadata
	if nilMeta.ConsistentWith("anything") {
		t.Error("expected nil metadata to never be consistent")
	}
}
