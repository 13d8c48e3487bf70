// Package search implements hybrid retrieval (spec.md §4.8): a dense
// embedding sub-query and a lexical sparse sub-query are issued against
// the vector store, then fused client-side with Reciprocal Rank Fusion
// so the exact fusion arithmetic stays testable independent of whichever
// backend executes the two sub-requests.
package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/iasik/codesearch/internal/embedder"
	"github.com/iasik/codesearch/internal/sparse"
	"github.com/iasik/codesearch/internal/vectordb"
)

// rrfK is the Reciprocal Rank Fusion constant (spec.md §9): chosen to
// match existing operational data, asserted exactly by the test suite.
const rrfK = 100

// Result pairs a stored row with its fused RRF score.
type Result struct {
	Row   vectordb.Row
	Score float64
}

// Searcher ties an embedding provider and a vector store together to
// serve HybridSearch. One Searcher is reused across queries.
type Searcher struct {
	Embedder embedder.Provider
	Store    vectordb.Provider
	Sparse   *sparse.Builder
}

// NewSearcher constructs a Searcher with the standard sparse builder.
func NewSearcher(emb embedder.Provider, store vectordb.Provider) *Searcher {
	return &Searcher{Embedder: emb, Store: store, Sparse: sparse.NewBuilder()}
}

// Search runs HybridSearch (spec.md §4.8) for queryText against
// collection, returning at most limit results ordered by fused score
// descending (ties broken ascending by row ID). isHybrid is the
// collection's own ProjectMetadata.IsHybrid flag; the returned bool is
// its negation, "ran in degraded (dense-only) mode", since a
// dense-only collection has no sparse vectors to fuse against, whereas
// a hybrid collection's sparse sub-request simply returning zero
// results for a given query is not degradation (spec.md §4.8).
func (s *Searcher) Search(ctx context.Context, collection, queryText string, limit int, filterExpr string, isHybrid bool) ([]Result, bool, error) {
	if limit <= 0 {
		limit = 10
	}

	queryVector, err := s.Embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, false, fmt.Errorf("embed query: %w", err)
	}

	sparseVec := s.Sparse.Build(queryText)

	subRequests := []vectordb.SubRequest{
		{
			Field:       "vector",
			DenseVector: queryVector,
			Params:      map[string]any{"nprobe": 10},
			Limit:       limit,
		},
		{
			Field:        "sparse_vector",
			QueryText:    queryText,
			SparseVector: &vectordb.SparseVector{Indices: sparseVec.Indices, Values: sparseVec.Values},
			Params:       map[string]any{"drop_ratio_search": 0.2},
			Limit:        limit,
		},
	}

	lists, err := s.Store.HybridSearch(ctx, collection, subRequests)
	if err != nil {
		return nil, false, fmt.Errorf("hybrid search: %w", err)
	}

	var filter vectordb.Expr
	if filterExpr != "" {
		filter, err = vectordb.ParseFilter(filterExpr)
		if err != nil {
			return nil, false, fmt.Errorf("parse filter: %w", err)
		}
	}

	degraded := !isHybrid

	fused := fuse(lists)
	if filter != nil {
		kept := fused[:0]
		for _, r := range fused {
			if vectordb.Eval(filter, r.Row) {
				kept = append(kept, r)
			}
		}
		fused = kept
	}

	if len(fused) > limit {
		fused = fused[:limit]
	}

	return fused, degraded, nil
}

// fuse combines sub-request ranked lists via Reciprocal Rank Fusion
// (spec.md §4.8 step 3): score(d) = Σ 1/(k + rank) summed over every
// list d appears in, rank 1-based. A document in only one list
// contributes a single term. Ties break by row ID ascending (§4.8
// step 5), which also makes the ordering deterministic for I5.
func fuse(lists []vectordb.RankedList) []Result {
	scores := make(map[string]float64)
	rows := make(map[string]vectordb.Row)

	for _, list := range lists {
		for i, sr := range list.Results {
			rank := i + 1
			scores[sr.Row.ID] += 1.0 / float64(rrfK+rank)
			rows[sr.Row.ID] = sr.Row
		}
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, Result{Row: rows[id], Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Row.ID < results[j].Row.ID
	})

	return results
}
