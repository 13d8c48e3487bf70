package hashcache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCache_HasChanged(t *testing.T) {
	root := t.TempDir()
	cache, err := Load(root, "col1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cache.HasChanged("src/main.go", "hash123") {
		t.Error("new file should be marked as changed")
	}

	cache.UpdateFile("src/main.go", FileHashEntry{ContentHash: "hash123", ChunkCount: 1})

	if cache.HasChanged("src/main.go", "hash123") {
		t.Error("file with same hash should not be marked as changed")
	}
	if !cache.HasChanged("src/main.go", "hash456") {
		t.Error("file with different hash should be marked as changed")
	}
}

func TestCache_DeleteFile(t *testing.T) {
	root := t.TempDir()
	cache, _ := Load(root, "col1")

	cache.UpdateFile("file.go", FileHashEntry{ContentHash: "hash1"})
	cache.DeleteFile("file.go")

	if !cache.HasChanged("file.go", "hash1") {
		t.Error("entry should be gone after DeleteFile")
	}
}

func TestCache_GetDeletedFiles(t *testing.T) {
	root := t.TempDir()
	cache, _ := Load(root, "col1")

	cache.UpdateFile("src/a.go", FileHashEntry{ContentHash: "h1"})
	cache.UpdateFile("src/b.go", FileHashEntry{ContentHash: "h2"})
	cache.UpdateFile("src/c.go", FileHashEntry{ContentHash: "h3"})

	current := map[string]struct{}{"src/a.go": {}, "src/c.go": {}}
	deleted := cache.GetDeletedFiles(current)

	if len(deleted) != 1 || deleted[0] != "src/b.go" {
		t.Fatalf("expected [src/b.go], got %v", deleted)
	}
}

func TestCache_SaveAndLoad(t *testing.T) {
	root := t.TempDir()

	cache1, err := Load(root, "col1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cache1.UpdateFile("file1.go", FileHashEntry{ContentHash: "hash1", ChunkCount: 1, ChunkIDs: []string{"c1"}})
	cache1.UpdateFile("file2.go", FileHashEntry{ContentHash: "hash2", ChunkCount: 2, ChunkIDs: []string{"c2", "c3"}})

	if err := cache1.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cachePath := filepath.Join(root, ".context", "file-hashes.json")
	if _, err := os.Stat(cachePath); os.IsNotExist(err) {
		t.Fatal("cache file was not created")
	}

	cache2, err := Load(root, "col1")
	if err != nil {
		t.Fatalf("reloading cache failed: %v", err)
	}

	if cache2.HasChanged("file1.go", "hash1") {
		t.Error("file1.go should have been persisted with hash1")
	}
	if cache2.TotalChunks() != 3 {
		t.Errorf("expected 3 total chunks after reload, got %d", cache2.TotalChunks())
	}
}

func TestCache_StaleCollectionNameIsTreatedAsEmpty(t *testing.T) {
	root := t.TempDir()

	cache1, _ := Load(root, "col1")
	cache1.UpdateFile("file.go", FileHashEntry{ContentHash: "hash1"})
	if err := cache1.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cache2, err := Load(root, "col2")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cache2.FileCount() != 0 {
		t.Errorf("expected a stale cache (different collectionName) to load empty, got %d files", cache2.FileCount())
	}
}

func TestCache_Clear(t *testing.T) {
	root := t.TempDir()
	cache, _ := Load(root, "col1")

	cache.UpdateFile("file1.go", FileHashEntry{ContentHash: "hash1"})
	cache.UpdateFile("file2.go", FileHashEntry{ContentHash: "hash2"})

	if cache.FileCount() != 2 {
		t.Fatalf("expected 2 files before clear, got %d", cache.FileCount())
	}

	cache.Clear()

	if cache.FileCount() != 0 {
		t.Errorf("expected 0 files after clear, got %d", cache.FileCount())
	}
}

func TestCache_SaveIsNoOpWhenNotDirty(t *testing.T) {
	root := t.TempDir()
	cache, _ := Load(root, "col1")

	if err := cache.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cachePath := filepath.Join(root, ".context", "file-hashes.json")
	if _, err := os.Stat(cachePath); !os.IsNotExist(err) {
		t.Error("expected no file to be written when the cache was never mutated")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	root := t.TempDir()
	cache, _ := Load(root, "col1")

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			cache.UpdateFile("file1.go", FileHashEntry{ContentHash: "hash1"})
		}
		done <- true
	}()
	go func() {
		for i := 0; i < 100; i++ {
			cache.UpdateFile("file2.go", FileHashEntry{ContentHash: "hash2"})
		}
		done <- true
	}()
	go func() {
		for i := 0; i < 100; i++ {
			cache.HasChanged("file1.go", "hash1")
			cache.AllFiles()
			cache.TotalChunks()
		}
		done <- true
	}()

	for i := 0; i < 3; i++ {
		<-done
	}
}
