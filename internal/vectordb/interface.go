// Package vectordb provides a pluggable interface for vector database
// providers (spec.md §4.6): collection lifecycle, dense/hybrid insert,
// filtered query, and the two-sub-request hybrid search the fusion layer
// in internal/search consumes.
package vectordb

import (
	"context"
	"fmt"
)

// Provider defines the contract every vector store backend implements.
// All operations are asynchronous and may block the caller.
type Provider interface {
	HasCollection(ctx context.Context, name string) (bool, error)

	// CreateCollection is idempotent: it succeeds if the collection
	// already exists with matching dimension and hybrid flag, and fails
	// with SchemaMismatch otherwise.
	CreateCollection(ctx context.Context, name string, dimension int, hybrid bool) error

	// DropCollection is idempotent; it succeeds if the collection is
	// already absent.
	DropCollection(ctx context.Context, name string) error

	// Insert writes dense-only rows; each row's Dense vector must have
	// length equal to the collection's configured dimension.
	Insert(ctx context.Context, collection string, rows []Row) error

	// InsertHybrid writes rows carrying both a dense vector and a
	// sparse representation.
	InsertHybrid(ctx context.Context, collection string, rows []Row) error

	// Query performs a non-vector lookup by filter expression, returning
	// up to limit rows.
	Query(ctx context.Context, collection string, filterExpr string, limit int) ([]Row, error)

	// DeleteByFilter removes every row matching filterExpr.
	DeleteByFilter(ctx context.Context, collection string, filterExpr string) error

	// HybridSearch issues the sub-requests and returns each sub-request's
	// own ranked list; RRF fusion is performed by the caller
	// (internal/search), since spec.md §4.8 fuses client-side.
	HybridSearch(ctx context.Context, collection string, subRequests []SubRequest) ([]RankedList, error)

	// VerifyInsertedData re-counts rows for a collection (optionally
	// scoped by filterExpr) after a short quiescence wait, per spec.md
	// §4.6's post-write verification.
	VerifyInsertedData(ctx context.Context, collection string, filterExpr string, expectedCount int) (VerificationResult, error)

	Health(ctx context.Context) error
	Close() error
}

// Row is one stored unit: a chunk's content, position, and vector(s).
type Row struct {
	ID            string
	Content       string
	RelativePath  string
	FileExtension string
	StartLine     int
	EndLine       int

	Dense  []float32
	Sparse *SparseVector

	// Metadata carries any additional payload fields (language, module,
	// symbol, symbolType, contentHash, indexedAt — spec.md §3.1).
	Metadata map[string]any
}

// SparseVector is a term-weight mapping in the shape Qdrant's named
// sparse vectors expect: parallel index/value slices. Declared locally
// (rather than importing internal/sparse.Vector) so this package has no
// upward dependency on how sparse vectors are computed.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// SubRequest is one leg of a hybrid search (spec.md §4.8 step 2).
type SubRequest struct {
	// Field names the vector the request targets: "vector" for dense,
	// "sparse_vector" for sparse.
	Field string

	DenseVector  []float32
	QueryText    string // source text for a server-computed sparse query
	SparseVector *SparseVector

	Params map[string]any
	Limit  int
}

// RankedList is one sub-request's own ranking, before fusion.
type RankedList struct {
	Field   string
	Results []ScoredRow
}

// ScoredRow pairs a stored row with the sub-request's native score.
type ScoredRow struct {
	Row   Row
	Score float32
}

// VerificationResult reports the post-write quiescence check outcome.
type VerificationResult struct {
	Expected int
	Observed int
}

// Below returns whether Observed fell under the 0.8x warning threshold
// (spec.md §4.6 and §7 VerificationWarning).
func (v VerificationResult) Below() bool {
	return v.Expected > 0 && float64(v.Observed) < 0.8*float64(v.Expected)
}

// Config holds provider construction parameters.
type Config struct {
	Provider       string
	Endpoint       string
	APIKey         string
	TimeoutSeconds int
}

// VectorStoreFailure is the error kind for vector-store operations
// (spec.md §7): timeouts are marked recoverable, schema mismatch is not.
// Nothing retries on the flag; the controller fails the run on either kind.
type VectorStoreFailure struct {
	Op          string
	Recoverable bool
	Err         error
}

func (e *VectorStoreFailure) Error() string {
	return fmt.Sprintf("vectordb: %s: %v", e.Op, e.Err)
}

func (e *VectorStoreFailure) Unwrap() error { return e.Err }

func recoverableFailure(op string, err error) error {
	return &VectorStoreFailure{Op: op, Recoverable: true, Err: err}
}

func fatalFailure(op string, err error) error {
	return &VectorStoreFailure{Op: op, Recoverable: false, Err: err}
}

// SchemaMismatch signals that a collection exists with a different
// dimension or hybrid flag than requested (spec.md §7); fatal, requires
// the caller to run with --clean.
type SchemaMismatch struct {
	Collection string
	WantDim    int
	GotDim     int
	WantHybrid bool
	GotHybrid  bool
}

func (e *SchemaMismatch) Error() string {
	return fmt.Sprintf("vectordb: collection %q schema mismatch: dim %d vs %d, hybrid %v vs %v (run with --clean)",
		e.Collection, e.WantDim, e.GotDim, e.WantHybrid, e.GotHybrid)
}
