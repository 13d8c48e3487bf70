// Package hashcache implements the durable relativePath -> FileHashEntry
// mapping an IndexController uses to decide which files changed since the
// last run (spec.md §4.3).
package hashcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileHashEntry records the last-indexed state of one file.
type FileHashEntry struct {
	ContentHash  string `json:"contentHash"`
	LastModified int64  `json:"lastModified"`
	ChunkCount   int    `json:"chunkCount"`

	// ChunkIDs records the IDs of the rows written for this file. The
	// controller deletes a file's previous rows by a relativePath filter
	// and does not read this list.
	ChunkIDs []string `json:"chunkIds"`
}

// document is the on-disk JSON shape (spec.md §3.1, §6.4).
type document struct {
	ProjectPath    string                   `json:"projectPath"`
	CollectionName string                   `json:"collectionName"`
	LastIndexed    time.Time                `json:"lastIndexed"`
	Files          map[string]FileHashEntry `json:"files"`
}

// Cache is the in-memory, mutation-tracked view of one project's
// file-hashes.json.
type Cache struct {
	path           string
	projectPath    string
	collectionName string

	mu      sync.RWMutex
	entries map[string]FileHashEntry
	dirty   bool
}

// Load opens (or initializes) the cache for (projectPath, collectionName)
// at <projectPath>/.context/file-hashes.json. If the stored
// collectionName disagrees with the one supplied, the cache is treated as
// empty per spec.md §3.1's staleness invariant.
func Load(projectPath, collectionName string) (*Cache, error) {
	path := filepath.Join(projectPath, ".context", "file-hashes.json")

	c := &Cache{
		path:           path,
		projectPath:    projectPath,
		collectionName: collectionName,
		entries:        make(map[string]FileHashEntry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("hashcache: read %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("hashcache: parse %s: %w", path, err)
	}

	if doc.CollectionName != collectionName {
		// Stale cache from a previous collection identity: start fresh.
		return c, nil
	}

	if doc.Files != nil {
		c.entries = doc.Files
	}
	return c, nil
}

// HasChanged reports whether relativePath is absent from the cache or its
// stored hash differs from currentHash.
func (c *Cache) HasChanged(relativePath, currentHash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[relativePath]
	if !ok {
		return true
	}
	return entry.ContentHash != currentHash
}

// UpdateFile records or overwrites relativePath's entry.
func (c *Cache) UpdateFile(relativePath string, entry FileHashEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.LastModified = time.Now().UnixMilli()
	c.entries[relativePath] = entry
	c.dirty = true
}

// DeleteFile removes relativePath's entry.
func (c *Cache) DeleteFile(relativePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, relativePath)
	c.dirty = true
}

// GetDeletedFiles returns cache entries whose key is not present in
// currentFiles.
func (c *Cache) GetDeletedFiles(currentFiles map[string]struct{}) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var deleted []string
	for relPath := range c.entries {
		if _, ok := currentFiles[relPath]; !ok {
			deleted = append(deleted, relPath)
		}
	}
	return deleted
}

// ChunkIDsFor returns the chunk IDs previously recorded for relativePath.
func (c *Cache) ChunkIDsFor(relativePath string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[relativePath].ChunkIDs
}

// AllFiles returns every relative path currently tracked.
func (c *Cache) AllFiles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	files := make([]string, 0, len(c.entries))
	for relPath := range c.entries {
		files = append(files, relPath)
	}
	return files
}

// TotalChunks sums ChunkCount across every tracked file, for
// ProjectMetadata.totalChunks (invariant I3).
func (c *Cache) TotalChunks() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, e := range c.entries {
		total += e.ChunkCount
	}
	return total
}

// FileCount returns the number of tracked files.
func (c *Cache) FileCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear empties the cache in memory; Save must still be called to persist
// the cleared state.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]FileHashEntry)
	c.dirty = true
}

// Save persists the cache atomically (write-to-temp-then-rename), unless
// nothing changed since the last successful Save. A crash mid-save leaves
// either the previous document intact or the new one in full, never a
// truncated file.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	doc := document{
		ProjectPath:    c.projectPath,
		CollectionName: c.collectionName,
		LastIndexed:    time.Now().UTC(),
		Files:          c.entries,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("hashcache: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("hashcache: create dir %s: %w", dir, err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("hashcache: write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("hashcache: rename into place: %w", err)
	}

	c.dirty = false
	return nil
}
