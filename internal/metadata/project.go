// Package metadata persists ProjectMetadata, the single committed record
// per project that lets teammates converge on the same collection
// (spec.md §3.1).
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ProjectMetadata is the durable, intended-to-be-committed record
// describing one project's indexed collection.
type ProjectMetadata struct {
	Version            int       `json:"version"`
	ProjectPath        string    `json:"projectPath"`
	CollectionName     string    `json:"collectionName"`
	GitRepoIdentifier  string    `json:"gitRepoIdentifier,omitempty"`
	IsHybrid           bool      `json:"isHybrid"`
	EmbeddingModel     string    `json:"embeddingModel"`
	EmbeddingDimension int       `json:"embeddingDimension"`
	CreatedAt          time.Time `json:"createdAt"`
	LastIndexed        time.Time `json:"lastIndexed"`
	IndexedFileCount   int       `json:"indexedFileCount"`
	TotalChunks        int       `json:"totalChunks"`
}

const currentVersion = 1

func path(projectPath string) string {
	return filepath.Join(projectPath, ".context", "project.json")
}

// Load reads <projectPath>/.context/project.json. It returns (nil, nil)
// when no metadata document exists yet, distinct from a read error.
func Load(projectPath string) (*ProjectMetadata, error) {
	data, err := os.ReadFile(path(projectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("metadata: read: %w", err)
	}

	var m ProjectMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("metadata: parse: %w", err)
	}
	return &m, nil
}

// New constructs a fresh ProjectMetadata ready for its first Save.
func New(projectPath, collectionName, gitRepoIdentifier string, isHybrid bool) *ProjectMetadata {
	now := time.Now().UTC()
	return &ProjectMetadata{
		Version:           currentVersion,
		ProjectPath:       projectPath,
		CollectionName:    collectionName,
		GitRepoIdentifier: gitRepoIdentifier,
		IsHybrid:          isHybrid,
		CreatedAt:         now,
		LastIndexed:       now,
	}
}

// Save persists m atomically (write-to-temp-then-rename), pretty-printed
// UTF-8 with LF endings (spec.md §6.4).
func (m *ProjectMetadata) Save() error {
	dest := path(m.ProjectPath)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("metadata: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("metadata: create dir %s: %w", dir, err)
	}

	tmpPath := dest + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("metadata: write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("metadata: rename into place: %w", err)
	}
	return nil
}

// ConsistentWith reports whether m can still be used given the current
// collection-naming inputs: the IndexController falls back to
// regenerating the collection name when this is false (spec.md §4.7
// step 1).
func (m *ProjectMetadata) ConsistentWith(collectionName string) bool {
	return m != nil && m.CollectionName == collectionName
}
