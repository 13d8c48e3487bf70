// Package indexer implements IndexController (spec.md §4.7): it brings a
// project's vector-store collection into agreement with its working tree
// at minimum API cost, via hash-cache diffing, filtered delete-before-insert,
// and a worker pool for the CPU-bound chunking stage.
package indexer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iasik/codesearch/internal/chunker"
	"github.com/iasik/codesearch/internal/collection"
	"github.com/iasik/codesearch/internal/config"
	"github.com/iasik/codesearch/internal/embedder"
	"github.com/iasik/codesearch/internal/hashcache"
	"github.com/iasik/codesearch/internal/metadata"
	"github.com/iasik/codesearch/internal/sparse"
	"github.com/iasik/codesearch/internal/vectordb"
	"github.com/iasik/codesearch/internal/walker"
)

// Options configures one indexing run.
type Options struct {
	// Clean forces a full reindex: the collection is dropped and the
	// HashCache cleared before diffing.
	Clean bool

	// Hybrid requests sparse vectors alongside dense ones and a hybrid
	// collection schema.
	Hybrid bool

	// GitRepoIdentifier, when non-empty, anchors CollectionNamer to the
	// project's git remote rather than its filesystem path.
	GitRepoIdentifier string

	// WorkerCount sets the size of the chunking worker pool; 0 or less
	// means 4.
	WorkerCount int
}

// Failure records one per-file error that did not abort the run (spec.md
// §7 propagation policy: the file stays in the "changed" set for next time).
type Failure struct {
	Path   string
	Reason string
}

// RunSummary is the run-level result returned to the caller (spec.md §7).
type RunSummary struct {
	IndexedFiles     int
	TotalChunks      int
	SkippedUnchanged int
	Deleted          int
	Failures         []Failure
	Verification     vectordb.VerificationResult
	Duration         time.Duration
	Status           string // completed | partial | failed
}

const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Controller owns the provider instances and shared builders one run of
// IndexProject dispatches work through.
type Controller struct {
	Embedder embedder.Provider
	Store    vectordb.Provider
	Sparse   *sparse.Builder
	Chunkers *chunker.Factory
	Logger   *IndexLogger
	Progress *ProgressReporter

	logSlog *slog.Logger
}

// New constructs a Controller. logSlog may be nil, in which case
// slog.Default() is used for operational logging.
func New(emb embedder.Provider, store vectordb.Provider, chunkCfg chunker.Config, idxLogger *IndexLogger, progress *ProgressReporter, logSlog *slog.Logger) *Controller {
	if logSlog == nil {
		logSlog = slog.Default()
	}
	return &Controller{
		Embedder: emb,
		Store:    store,
		Sparse:   sparse.NewBuilder(),
		Chunkers: chunker.NewFactory(chunkCfg),
		Logger:   idxLogger,
		Progress: progress,
		logSlog:  logSlog,
	}
}

// IndexProject runs the full algorithm of spec.md §4.7 against projectPath.
func (c *Controller) IndexProject(ctx context.Context, projectPath string, overrides *config.ProjectOverrides, opts Options) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{Status: StatusCompleted}

	workerCount := opts.WorkerCount
	if workerCount <= 0 {
		workerCount = 4
	}

	// Step 1: resolve collectionName.
	collectionName, err := c.resolveCollectionName(projectPath, opts)
	if err != nil {
		return nil, fmt.Errorf("indexer: resolve collection name: %w", err)
	}
	c.log(projectPath, "info", "resolved collection", map[string]any{"collection": collectionName, "hybrid": opts.Hybrid})

	if opts.Clean {
		if err := c.Store.DropCollection(ctx, collectionName); err != nil {
			return nil, fmt.Errorf("indexer: clean: drop collection: %w", err)
		}
	}

	// Step 2: load HashCache; it auto-detects collectionName staleness.
	cache, err := hashcache.Load(projectPath, collectionName)
	if err != nil {
		return nil, fmt.Errorf("indexer: load hashcache: %w", err)
	}
	if opts.Clean {
		cache.Clear()
	}

	// Step 3: discover files.
	c.Progress.Emit(PhaseDiscovering, 0, 0, "")
	walkOpts := walker.Options{IncludeExtensions: []string{}, MaxFileBytes: 0}
	if overrides != nil {
		walkOpts = overrides.WalkerOptions()
	}
	files, walkStats, err := walker.New(walkOpts, c.logSlog).Walk(projectPath)
	if err != nil {
		return nil, fmt.Errorf("indexer: walk project: %w", err)
	}
	c.Progress.Emit(PhaseDiscovering, len(files), len(files),
		fmt.Sprintf("oversized=%d unreadable=%d excluded=%d", walkStats.Oversized, walkStats.Unreadable, walkStats.Excluded))

	// Step 4: diff.
	c.Progress.Emit(PhaseDiffing, 0, 0, "")
	currentSet := make(map[string]struct{}, len(files))
	for _, f := range files {
		currentSet[f.RelPath] = struct{}{}
	}
	deleted := cache.GetDeletedFiles(currentSet)

	type pendingFile struct {
		walker.File
		contentHash string
	}
	var changed []pendingFile
	for _, f := range files {
		data, err := os.ReadFile(f.AbsPath)
		if err != nil {
			summary.Failures = append(summary.Failures, Failure{Path: f.RelPath, Reason: err.Error()})
			continue
		}
		hash := sha256Hex(data)
		if cache.HasChanged(f.RelPath, hash) {
			changed = append(changed, pendingFile{File: f, contentHash: hash})
		} else {
			summary.SkippedUnchanged++
		}
	}

	if len(changed) == 0 && len(deleted) == 0 {
		c.Progress.Emit(PhaseDone, 0, 0, fmt.Sprintf("unchanged: %d", summary.SkippedUnchanged))
		summary.Duration = time.Since(start)
		return summary, nil
	}

	// Step 5: deletions.
	c.Progress.Emit(PhaseDeleting, 0, len(deleted)+len(changed), "")
	deleteStep := 0
	for _, f := range deleted {
		if err := c.deleteFile(ctx, collectionName, f); err != nil {
			summary.Failures = append(summary.Failures, Failure{Path: f, Reason: err.Error()})
		} else {
			cache.DeleteFile(f)
			summary.Deleted++
		}
		deleteStep++
		c.Progress.Emit(PhaseDeleting, deleteStep, len(deleted)+len(changed), f)
	}

	// Step 6 (delete-before-insert half): filtered delete of each changed
	// file's previous chunks, before any new chunk for it is inserted
	// (ordering guarantee spec.md §5.1).
	for _, f := range changed {
		if err := c.deleteFile(ctx, collectionName, f.RelPath); err != nil {
			summary.Failures = append(summary.Failures, Failure{Path: f.RelPath, Reason: err.Error()})
		}
		deleteStep++
		c.Progress.Emit(PhaseDeleting, deleteStep, len(deleted)+len(changed), f.RelPath)
	}

	// Step 6 (chunking): parallel read+chunk over a worker pool, CPU-bound
	// and non-suspending per spec.md §5.
	c.Progress.Emit(PhaseChunking, 0, len(changed), "")
	type chunkResult struct {
		relPath string
		hash    string
		chunks  []chunker.Chunk
		err     error
	}
	work := make(chan pendingFile, len(changed))
	for _, f := range changed {
		work <- f
	}
	close(work)

	results := make(chan chunkResult, len(changed))
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range work {
				chunks, err := c.chunkFile(f.AbsPath, f.RelPath, collectionName)
				results <- chunkResult{relPath: f.RelPath, hash: f.contentHash, chunks: chunks, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var allChunks []chunker.Chunk
	hashByFile := make(map[string]string, len(changed))
	chunkCountByFile := make(map[string]int, len(changed))
	processed := 0
	for res := range results {
		processed++
		c.Progress.Emit(PhaseChunking, processed, len(changed), res.relPath)
		if res.err != nil {
			summary.Failures = append(summary.Failures, Failure{Path: res.relPath, Reason: res.err.Error()})
			continue
		}
		allChunks = append(allChunks, res.chunks...)
		hashByFile[res.relPath] = res.hash
		chunkCountByFile[res.relPath] = len(res.chunks)
	}

	// Step 6 (embedding + upsert).
	var verification vectordb.VerificationResult
	if len(allChunks) > 0 {
		vectors, err := c.embedChunks(ctx, allChunks)
		if err != nil {
			return nil, fmt.Errorf("indexer: embed chunks: %w", err)
		}

		rows := c.buildRows(allChunks, vectors, opts.Hybrid)

		if err := c.ensureCollection(ctx, collectionName, dimensionOf(vectors), opts.Hybrid); err != nil {
			return nil, fmt.Errorf("indexer: ensure collection: %w", err)
		}

		c.Progress.Emit(PhaseIndexingFiles, 0, len(rows), "")
		if opts.Hybrid {
			err = c.Store.InsertHybrid(ctx, collectionName, rows)
		} else {
			err = c.Store.Insert(ctx, collectionName, rows)
		}
		if err != nil {
			return nil, fmt.Errorf("indexer: insert chunks: %w", err)
		}
		c.Progress.Emit(PhaseIndexingFiles, len(rows), len(rows), "")

		// cache update happens-after the insert succeeds (ordering
		// guarantee spec.md §5.2); chunk IDs are grouped per file and
		// recorded in the cache entry.
		chunkIDsByFile := make(map[string][]string)
		for _, ch := range allChunks {
			chunkIDsByFile[ch.FilePath] = append(chunkIDsByFile[ch.FilePath], ch.ID)
		}
		for relPath, hash := range hashByFile {
			cache.UpdateFile(relPath, hashcache.FileHashEntry{
				ContentHash: hash,
				ChunkCount:  chunkCountByFile[relPath],
				ChunkIDs:    chunkIDsByFile[relPath],
			})
			summary.IndexedFiles++
		}
		summary.TotalChunks = len(allChunks)

		c.Progress.Emit(PhaseVerifying, 0, 0, "")
		verification, err = c.Store.VerifyInsertedData(ctx, collectionName, "", len(allChunks))
		if err != nil {
			summary.Failures = append(summary.Failures, Failure{Path: collectionName, Reason: fmt.Sprintf("verify: %v", err)})
		} else if verification.Below() {
			c.log(projectPath, "warn", "verification below threshold", map[string]any{
				"expected": verification.Expected, "observed": verification.Observed,
			})
		}
		summary.Verification = verification
	}

	// Step 9: persist cache, then metadata — cache first, metadata only
	// if the cache write succeeds (spec.md §4.7 step 9).
	c.Progress.Emit(PhasePersisting, 0, 0, "")
	if err := cache.Save(); err != nil {
		return nil, fmt.Errorf("indexer: persist hashcache: %w", err)
	}

	// Reuse the existing document (and its original CreatedAt) when it
	// still describes this collection; ProjectMetadata is one stable
	// document per project, not reset on every run (spec.md §3.1).
	meta, err := metadata.Load(projectPath)
	if err != nil {
		return nil, fmt.Errorf("indexer: load project metadata: %w", err)
	}
	if !meta.ConsistentWith(collectionName) {
		meta = metadata.New(projectPath, collectionName, opts.GitRepoIdentifier, opts.Hybrid)
	}
	meta.GitRepoIdentifier = opts.GitRepoIdentifier
	meta.IsHybrid = opts.Hybrid
	meta.EmbeddingModel = c.Embedder.ModelInfo().Model
	meta.EmbeddingDimension = c.Embedder.GetDimension()
	meta.IndexedFileCount = cache.FileCount()
	meta.TotalChunks = cache.TotalChunks()
	meta.LastIndexed = time.Now().UTC()
	if err := meta.Save(); err != nil {
		return nil, fmt.Errorf("indexer: persist project metadata: %w", err)
	}

	if len(summary.Failures) > 0 {
		summary.Status = StatusPartial
	}

	c.Progress.Emit(PhaseDone, 0, 0, "")
	summary.Duration = time.Since(start)
	return summary, nil
}

func (c *Controller) resolveCollectionName(projectPath string, opts Options) (string, error) {
	candidate, err := collection.Name(projectPath, opts.GitRepoIdentifier, opts.Hybrid)
	if err != nil {
		return "", err
	}

	meta, err := metadata.Load(projectPath)
	if err != nil {
		return "", err
	}
	if meta.ConsistentWith(candidate) {
		return meta.CollectionName, nil
	}
	return candidate, nil
}

// deleteFile issues the filtered delete that removes relPath's previously
// stored chunks from collectionName.
func (c *Controller) deleteFile(ctx context.Context, collectionName, relPath string) error {
	exists, err := c.Store.HasCollection(ctx, collectionName)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return c.Store.DeleteByFilter(ctx, collectionName, fmt.Sprintf("relativePath == %q", relPath))
}

func (c *Controller) chunkFile(absPath, relPath, collectionName string) ([]chunker.Chunk, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	meta := chunker.FileMetadata{
		FilePath:       relPath,
		Language:       chunker.DetectLanguage(relPath),
		Module:         chunker.ExtractModule(relPath),
		CollectionName: collectionName,
	}

	chunks, err := c.Chunkers.GetChunker(relPath).Chunk(content, meta)
	if err != nil {
		return nil, fmt.Errorf("chunk file: %w", err)
	}
	return chunks, nil
}

func (c *Controller) embedChunks(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	c.Progress.Emit(PhaseEmbedding, 0, len(texts), "")
	vectors, err := c.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	c.Progress.Emit(PhaseEmbedding, len(texts), len(texts), "")
	return vectors, nil
}

func (c *Controller) buildRows(chunks []chunker.Chunk, vectors [][]float32, hybrid bool) []vectordb.Row {
	rows := make([]vectordb.Row, len(chunks))
	indexedAt := time.Now().UTC().Format(time.RFC3339)

	for i, ch := range chunks {
		row := vectordb.Row{
			ID:            ch.ID,
			Content:       ch.Content,
			RelativePath:  ch.FilePath,
			FileExtension: filepath.Ext(ch.FilePath),
			StartLine:     ch.StartLine,
			EndLine:       ch.EndLine,
			Dense:         vectors[i],
			Metadata: map[string]any{
				"language":    ch.Language,
				"module":      ch.Module,
				"symbol":      ch.Symbol,
				"symbolType":  ch.SymbolType,
				"contentHash": ch.ContentHash,
				"indexedAt":   indexedAt,
			},
		}
		if hybrid {
			sv := c.Sparse.Build(ch.Content)
			row.Sparse = &vectordb.SparseVector{Indices: sv.Indices, Values: sv.Values}
		}
		rows[i] = row
	}
	return rows
}

func (c *Controller) ensureCollection(ctx context.Context, name string, dim int, hybrid bool) error {
	// CreateCollection is itself idempotent: it succeeds against a
	// matching existing collection and fails with SchemaMismatch against
	// a mismatched one (spec.md §4.7 step 7, invariant I2). Calling it
	// unconditionally, rather than gating on HasCollection first, is what
	// makes that schema check actually run.
	return c.Store.CreateCollection(ctx, name, dim, hybrid)
}

func (c *Controller) log(project, level, message string, data any) {
	if c.Logger != nil {
		c.Logger.Log(project, level, message, data)
	}
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// dimensionOf returns the length of the first non-empty vector, the
// authoritative dimension for a freshly-created collection.
func dimensionOf(vectors [][]float32) int {
	for _, v := range vectors {
		if len(v) > 0 {
			return len(v)
		}
	}
	return 0
}
