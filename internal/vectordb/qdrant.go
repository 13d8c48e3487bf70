// Package vectordb's Qdrant backend, grounded on the go-client usage
// patterns observed in the retrieved pack (NewClient/CreateCollection/
// Upsert/Query/Scroll/Delete/GetCollectionInfo), extended with named
// dense+sparse vectors for hybrid collections.
package vectordb

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"

	quiescenceWait = 300 * time.Millisecond
)

// QdrantClient implements Provider against a Qdrant gRPC endpoint.
type QdrantClient struct {
	client  *qdrant.Client
	timeout time.Duration
}

// NewQdrantClient dials Qdrant at cfg.Endpoint ("host:port").
func NewQdrantClient(cfg Config) (*QdrantClient, error) {
	host, port := splitHostPort(cfg.Endpoint)

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fatalFailure("new", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &QdrantClient{client: client, timeout: timeout}, nil
}

func splitHostPort(endpoint string) (string, int) {
	host, port := endpoint, 6334
	if idx := strings.LastIndex(endpoint, ":"); idx >= 0 {
		host = endpoint[:idx]
		if p, err := strconv.Atoi(endpoint[idx+1:]); err == nil {
			port = p
		}
	}
	if host == "" {
		host = "localhost"
	}
	return host, port
}

// HasCollection reports whether name exists.
func (q *QdrantClient) HasCollection(ctx context.Context, name string) (bool, error) {
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return false, recoverableFailure("has_collection", err)
	}
	return exists, nil
}

// CreateCollection is idempotent per spec.md §4.6: if the collection
// already exists, its schema must match or the call fails with
// SchemaMismatch.
func (q *QdrantClient) CreateCollection(ctx context.Context, name string, dimension int, hybrid bool) error {
	exists, err := q.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return q.checkSchema(ctx, name, dimension, hybrid)
	}

	req := &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	}
	if hybrid {
		req.SparseVectorsConfig = qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {},
		})
	}

	if err := q.client.CreateCollection(ctx, req); err != nil {
		return fatalFailure("create_collection", err)
	}
	return nil
}

func (q *QdrantClient) checkSchema(ctx context.Context, name string, dimension int, hybrid bool) error {
	info, err := q.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return recoverableFailure("create_collection", err)
	}

	params := info.GetConfig().GetParams()
	vectorsCfg := params.GetVectorsConfig()
	denseParams := vectorsCfg.GetParamsMap().GetMap()[denseVectorName]
	gotDim := int(denseParams.GetSize())
	_, gotHybrid := params.GetSparseVectorsConfig().GetMap()[sparseVectorName]

	if gotDim != dimension || gotHybrid != hybrid {
		return &SchemaMismatch{
			Collection: name, WantDim: dimension, GotDim: gotDim,
			WantHybrid: hybrid, GotHybrid: gotHybrid,
		}
	}
	return nil
}

// DropCollection is idempotent; absent is success.
func (q *QdrantClient) DropCollection(ctx context.Context, name string) error {
	exists, err := q.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := q.client.DeleteCollection(ctx, name); err != nil {
		return recoverableFailure("drop_collection", err)
	}
	return nil
}

// Insert writes dense-only rows.
func (q *QdrantClient) Insert(ctx context.Context, collection string, rows []Row) error {
	return q.upsert(ctx, collection, rows, false)
}

// InsertHybrid writes rows carrying both dense and sparse vectors.
func (q *QdrantClient) InsertHybrid(ctx context.Context, collection string, rows []Row) error {
	return q.upsert(ctx, collection, rows, true)
}

func (q *QdrantClient) upsert(ctx context.Context, collection string, rows []Row, hybrid bool) error {
	if len(rows) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(rows))
	for i, row := range rows {
		namedVectors := map[string]*qdrant.Vector{
			denseVectorName: {Data: row.Dense},
		}
		if hybrid && row.Sparse != nil {
			namedVectors[sparseVectorName] = &qdrant.Vector{
				Data:    row.Sparse.Values,
				Indices: &qdrant.SparseIndices{Data: row.Sparse.Indices},
			}
		}

		points[i] = &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Num{Num: pointIDFor(row.ID)},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vectors{
					Vectors: &qdrant.NamedVectors{Vectors: namedVectors},
				},
			},
			Payload: qdrant.NewValueMap(rowPayload(row)),
		}
	}

	if err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	}); err != nil {
		return recoverableFailure("upsert", err)
	}
	return nil
}

func rowPayload(row Row) map[string]any {
	payload := map[string]any{
		"id":             row.ID,
		"content":        row.Content,
		"relative_path":  row.RelativePath,
		"file_extension": row.FileExtension,
		"start_line":     row.StartLine,
		"end_line":       row.EndLine,
	}
	for k, v := range row.Metadata {
		payload[k] = v
	}
	return payload
}

// pointIDFor derives a stable numeric point ID from a chunk's string ID,
// since Qdrant accepts only UUID or uint64 point identifiers.
func pointIDFor(id string) uint64 {
	h := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint64(h[:8])
}

// Query performs a non-vector lookup by filter expression.
func (q *QdrantClient) Query(ctx context.Context, collection string, filterExpr string, limit int) ([]Row, error) {
	expr, err := ParseFilter(filterExpr)
	if err != nil {
		return nil, fatalFailure("query", err)
	}

	qdrantFilter, err := compileFilter(expr)
	if err != nil {
		return nil, fatalFailure("query", err)
	}

	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         qdrantFilter,
		WithPayload:    qdrant.NewWithPayload(true),
		Limit:          u32ptr(uint32(limit)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, recoverableFailure("query", err)
	}

	rows := make([]Row, len(points))
	for i, p := range points {
		rows[i] = rowFromPayload(p.GetPayload())
	}
	return rows, nil
}

// DeleteByFilter removes every row matching filterExpr.
func (q *QdrantClient) DeleteByFilter(ctx context.Context, collection string, filterExpr string) error {
	expr, err := ParseFilter(filterExpr)
	if err != nil {
		return fatalFailure("delete", err)
	}
	qdrantFilter, err := compileFilter(expr)
	if err != nil {
		return fatalFailure("delete", err)
	}
	if qdrantFilter == nil {
		return nil
	}

	if err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: qdrantFilter},
		},
	}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return recoverableFailure("delete", err)
	}
	return nil
}

// HybridSearch issues one dense and/or one sparse sub-request and
// returns each as its own ranked list; fusion happens in internal/search.
func (q *QdrantClient) HybridSearch(ctx context.Context, collection string, subRequests []SubRequest) ([]RankedList, error) {
	lists := make([]RankedList, 0, len(subRequests))

	for _, sub := range subRequests {
		var query *qdrant.Query
		var using string

		switch sub.Field {
		case "vector":
			query = qdrant.NewQuery(sub.DenseVector...)
			using = denseVectorName
		case "sparse_vector":
			if sub.SparseVector == nil {
				continue
			}
			query = qdrant.NewQuerySparse(sub.SparseVector.Indices, sub.SparseVector.Values)
			using = sparseVectorName
		default:
			return nil, fatalFailure("hybrid_search", fmt.Errorf("unknown sub-request field %q", sub.Field))
		}

		resp, err := q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          query,
			Using:          &using,
			Limit:          u64ptr(uint64(sub.Limit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			if isNotFound(err) {
				lists = append(lists, RankedList{Field: sub.Field})
				continue
			}
			return nil, recoverableFailure("hybrid_search", err)
		}

		scored := make([]ScoredRow, len(resp))
		for i, p := range resp {
			scored[i] = ScoredRow{Row: rowFromPayload(p.GetPayload()), Score: p.GetScore()}
		}
		lists = append(lists, RankedList{Field: sub.Field, Results: scored})
	}

	return lists, nil
}

// VerifyInsertedData waits briefly for write quiescence and re-counts
// rows matching filterExpr (or the whole collection if empty).
func (q *QdrantClient) VerifyInsertedData(ctx context.Context, collection string, filterExpr string, expectedCount int) (VerificationResult, error) {
	select {
	case <-time.After(quiescenceWait):
	case <-ctx.Done():
		return VerificationResult{}, ctx.Err()
	}

	expr, err := ParseFilter(filterExpr)
	if err != nil {
		return VerificationResult{}, fatalFailure("verify", err)
	}
	qdrantFilter, err := compileFilter(expr)
	if err != nil {
		return VerificationResult{}, fatalFailure("verify", err)
	}

	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         qdrantFilter,
	})
	if err != nil {
		return VerificationResult{}, recoverableFailure("verify", err)
	}

	return VerificationResult{Expected: expectedCount, Observed: int(count)}, nil
}

// Health pings the cluster.
func (q *QdrantClient) Health(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return recoverableFailure("health", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (q *QdrantClient) Close() error {
	return q.client.Close()
}

func rowFromPayload(payload map[string]*qdrant.Value) Row {
	return Row{
		ID:            getString(payload, "id"),
		Content:       getString(payload, "content"),
		RelativePath:  getString(payload, "relative_path"),
		FileExtension: getString(payload, "file_extension"),
		StartLine:     int(getInt(payload, "start_line")),
		EndLine:       int(getInt(payload, "end_line")),
	}
}

func getString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getInt(payload map[string]*qdrant.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

func u32ptr(v uint32) *uint32 { return &v }
func u64ptr(v uint64) *uint64 { return &v }

func isNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "not found") ||
		strings.Contains(strings.ToLower(err.Error()), "doesn't exist")
}
