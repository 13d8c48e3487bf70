package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/iasik/codesearch/internal/chunker"
	"github.com/iasik/codesearch/internal/config"
	"github.com/iasik/codesearch/internal/embedder"
	"github.com/iasik/codesearch/internal/vectordb"
)

// fakeEmbedder is an in-memory stand-in for embedder.Provider, so
// controller tests exercise IndexController's orchestration (spec.md
// §4.7, scenarios §8.4) without a network dependency, mirroring the
// teacher's own table-driven unit tests for indexer.go.
type fakeEmbedder struct {
	mu        sync.Mutex
	dim       int
	embedCall int
}

func newFakeEmbedder(dim int) *fakeEmbedder { return &fakeEmbedder{dim: dim} }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, _ := f.EmbedBatch(ctx, []string{text})
	return v[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.embedCall++
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f *fakeEmbedder) DetectDimension(ctx context.Context, probeText string) (int, error) {
	return f.dim, nil
}
func (f *fakeEmbedder) GetDimension() int       { return f.dim }
func (f *fakeEmbedder) ModelInfo() embedder.ModelInfo {
	return embedder.ModelInfo{Provider: "fake", Model: "fake-model", Dimensions: f.dim}
}
func (f *fakeEmbedder) Health(ctx context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                     { return nil }

func (f *fakeEmbedder) embedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCall
}

// fakeStore is an in-memory stand-in for vectordb.Provider.
type fakeStore struct {
	mu          sync.Mutex
	collections map[string]collectionState
	rows        map[string][]vectordb.Row // collection -> rows
}

type collectionState struct {
	dim    int
	hybrid bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: map[string]collectionState{}, rows: map[string][]vectordb.Row{}}
}

func (s *fakeStore) HasCollection(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *fakeStore) CreateCollection(ctx context.Context, name string, dimension int, hybrid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.collections[name]; ok {
		if cur.dim != dimension || cur.hybrid != hybrid {
			return &vectordb.SchemaMismatch{Collection: name, WantDim: dimension, GotDim: cur.dim, WantHybrid: hybrid, GotHybrid: cur.hybrid}
		}
		return nil
	}
	s.collections[name] = collectionState{dim: dimension, hybrid: hybrid}
	return nil
}

func (s *fakeStore) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	delete(s.rows, name)
	return nil
}

func (s *fakeStore) Insert(ctx context.Context, collection string, rows []vectordb.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[collection] = append(s.rows[collection], rows...)
	return nil
}

func (s *fakeStore) InsertHybrid(ctx context.Context, collection string, rows []vectordb.Row) error {
	return s.Insert(ctx, collection, rows)
}

func (s *fakeStore) Query(ctx context.Context, collection string, filterExpr string, limit int) ([]vectordb.Row, error) {
	return nil, nil
}

func (s *fakeStore) DeleteByFilter(ctx context.Context, collection string, filterExpr string) error {
	expr, err := vectordb.ParseFilter(filterExpr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []vectordb.Row
	for _, r := range s.rows[collection] {
		if !vectordb.Eval(expr, r) {
			kept = append(kept, r)
		}
	}
	s.rows[collection] = kept
	return nil
}

func (s *fakeStore) HybridSearch(ctx context.Context, collection string, subRequests []vectordb.SubRequest) ([]vectordb.RankedList, error) {
	return nil, nil
}

func (s *fakeStore) VerifyInsertedData(ctx context.Context, collection string, filterExpr string, expectedCount int) (vectordb.VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return vectordb.VerificationResult{Expected: expectedCount, Observed: len(s.rows[collection])}, nil
}

func (s *fakeStore) Health(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                     { return nil }

func (s *fakeStore) countByPath(collection, relPath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows[collection] {
		if r.RelativePath == relPath {
			n++
		}
	}
	return n
}

func writeProjectFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func newTestController(emb embedder.Provider, store vectordb.Provider) *Controller {
	return New(emb, store, chunker.DefaultConfig(), nil, nil, nil)
}

// defaultOverrides loads overrides for a project root with no
// .context/config.yaml, which returns defaulted zero-value overrides.
func defaultOverrides(root string) *config.ProjectOverrides {
	o, err := config.LoadProjectOverrides(root)
	if err != nil {
		panic(err)
	}
	return o
}

// TestIndexProject_FreshSmallProject is spec.md §8.4 scenario 1.
func TestIndexProject_FreshSmallProject(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/a.ts", "export function a() {\n  return 1\n}\n")
	writeProjectFile(t, root, "src/b.ts", "export function b() {\n  return 2\n}\n")
	writeProjectFile(t, root, "README.md", "# hello\n")

	emb := newFakeEmbedder(8)
	store := newFakeStore()
	ctrl := newTestController(emb, store)

	overrides := defaultOverrides(root)
	overrides.IncludeExtensions = []string{".ts"}

	summary, err := ctrl.IndexProject(context.Background(), root, overrides, Options{})
	if err != nil {
		t.Fatalf("IndexProject failed: %v", err)
	}

	if summary.IndexedFiles != 2 {
		t.Errorf("expected 2 indexed files, got %d", summary.IndexedFiles)
	}
	if summary.TotalChunks == 0 {
		t.Errorf("expected at least one chunk")
	}
	if summary.Status != StatusCompleted {
		t.Errorf("expected status completed, got %s", summary.Status)
	}
}

// TestIndexProject_IncrementalEdit is spec.md §8.4 scenario 2 combined
// with invariant I1 (no embedding call for unchanged files).
func TestIndexProject_IncrementalEdit(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/a.ts", "export function a() {\n  return 1\n}\n")
	writeProjectFile(t, root, "src/b.ts", "export function b() {\n  return 2\n}\n")

	emb := newFakeEmbedder(8)
	store := newFakeStore()
	ctrl := newTestController(emb, store)
	overrides := defaultOverrides(root)
	overrides.IncludeExtensions = []string{".ts"}

	if _, err := ctrl.IndexProject(context.Background(), root, overrides, Options{}); err != nil {
		t.Fatalf("first index failed: %v", err)
	}

	callsAfterFirst := emb.embedCalls()

	writeProjectFile(t, root, "src/a.ts", "export function a() {\n  return 1\n}\n\nexport function aExtra() {\n  return 3\n}\n")

	summary, err := ctrl.IndexProject(context.Background(), root, overrides, Options{})
	if err != nil {
		t.Fatalf("second index failed: %v", err)
	}

	if emb.embedCalls() <= callsAfterFirst {
		t.Errorf("expected an embedding call for the changed file")
	}
	if summary.IndexedFiles != 1 {
		t.Errorf("expected exactly 1 indexed file (only the edit), got %d", summary.IndexedFiles)
	}
}

// TestIndexProject_Reindex_NoChanges is invariant I1/R1: a re-index with
// no file changes issues zero embedding calls.
func TestIndexProject_Reindex_NoChanges(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/a.ts", "export function a() {\n  return 1\n}\n")

	emb := newFakeEmbedder(8)
	store := newFakeStore()
	ctrl := newTestController(emb, store)
	overrides := defaultOverrides(root)
	overrides.IncludeExtensions = []string{".ts"}

	if _, err := ctrl.IndexProject(context.Background(), root, overrides, Options{}); err != nil {
		t.Fatalf("first index failed: %v", err)
	}
	callsAfterFirst := emb.embedCalls()

	summary, err := ctrl.IndexProject(context.Background(), root, overrides, Options{})
	if err != nil {
		t.Fatalf("second index failed: %v", err)
	}

	if emb.embedCalls() != callsAfterFirst {
		t.Errorf("expected zero additional embedding calls, got %d new calls", emb.embedCalls()-callsAfterFirst)
	}
	if summary.IndexedFiles != 0 || summary.Deleted != 0 {
		t.Errorf("expected a no-op run, got %+v", summary)
	}
}

// TestIndexProject_Deletion is spec.md §8.4 scenario 3 / R2.
func TestIndexProject_Deletion(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/a.ts", "export function a() {\n  return 1\n}\n")
	writeProjectFile(t, root, "src/b.ts", "export function b() {\n  return 2\n}\n")

	emb := newFakeEmbedder(8)
	store := newFakeStore()
	ctrl := newTestController(emb, store)
	overrides := defaultOverrides(root)
	overrides.IncludeExtensions = []string{".ts"}

	if _, err := ctrl.IndexProject(context.Background(), root, overrides, Options{}); err != nil {
		t.Fatalf("first index failed: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "src/b.ts")); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	collectionName, err := ctrl.resolveCollectionName(root, Options{})
	if err != nil {
		t.Fatalf("resolveCollectionName failed: %v", err)
	}
	if n := store.countByPath(collectionName, "src/b.ts"); n == 0 {
		t.Fatalf("expected rows for src/b.ts before second run")
	}

	summary, err := ctrl.IndexProject(context.Background(), root, overrides, Options{})
	if err != nil {
		t.Fatalf("second index failed: %v", err)
	}

	if summary.Deleted != 1 {
		t.Errorf("expected 1 deleted file, got %d", summary.Deleted)
	}
	if n := store.countByPath(collectionName, "src/b.ts"); n != 0 {
		t.Errorf("expected zero rows for src/b.ts after deletion, got %d", n)
	}
}

// TestIndexProject_DimensionMismatch is spec.md §8.4 scenario 4: a
// collection created at one dimension rejects a run using a different
// dimension with a fatal SchemaMismatch.
func TestIndexProject_DimensionMismatch(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/a.ts", "export function a() {\n  return 1\n}\n")

	store := newFakeStore()
	overrides := defaultOverrides(root)
	overrides.IncludeExtensions = []string{".ts"}

	emb1536 := newFakeEmbedder(1536)
	ctrl := newTestController(emb1536, store)
	if _, err := ctrl.IndexProject(context.Background(), root, overrides, Options{}); err != nil {
		t.Fatalf("first index failed: %v", err)
	}

	writeProjectFile(t, root, "src/a.ts", "export function a() {\n  return 1\n}\n\nexport function extra() {}\n")
	emb2048 := newFakeEmbedder(2048)
	ctrl2 := newTestController(emb2048, store)
	_, err := ctrl2.IndexProject(context.Background(), root, overrides, Options{})
	if err == nil {
		t.Fatal("expected a dimension-mismatch error, got nil")
	}
}

// TestIndexProject_EmptyProject covers spec.md §8.3: an empty project
// succeeds without creating a collection.
func TestIndexProject_EmptyProject(t *testing.T) {
	root := t.TempDir()

	emb := newFakeEmbedder(8)
	store := newFakeStore()
	ctrl := newTestController(emb, store)
	overrides := defaultOverrides(root)
	overrides.IncludeExtensions = []string{".ts"}

	summary, err := ctrl.IndexProject(context.Background(), root, overrides, Options{})
	if err != nil {
		t.Fatalf("IndexProject failed: %v", err)
	}
	if summary.TotalChunks != 0 {
		t.Errorf("expected zero chunks for an empty project, got %d", summary.TotalChunks)
	}

	collectionName, _ := ctrl.resolveCollectionName(root, Options{})
	exists, _ := store.HasCollection(context.Background(), collectionName)
	if exists {
		t.Errorf("expected no collection to be created for an empty project")
	}
}
