package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// RetrieveRequest is the request body for POST /retrieve. Adapted from
// the teacher's RetrieveRequest: the project_id discriminator is dropped
// since this daemon serves exactly one collection (SPEC_FULL.md §3).
type RetrieveRequest struct {
	Query  string `json:"query"`
	TopK   int    `json:"top_k,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// RetrieveResponse is the response body for POST /retrieve.
type RetrieveResponse struct {
	Results      []RetrieveResult `json:"results"`
	DegradedMode bool             `json:"degraded_mode"`
	QueryTimeMs  int64            `json:"query_time_ms"`
}

// RetrieveResult is a single ranked search hit.
type RetrieveResult struct {
	Content       string  `json:"content"`
	RelativePath  string  `json:"relative_path"`
	FileExtension string  `json:"file_extension,omitempty"`
	StartLine     int     `json:"start_line,omitempty"`
	EndLine       int     `json:"end_line,omitempty"`
	Score         float64 `json:"score"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Version    string            `json:"version"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}
	if req.TopK > 20 {
		req.TopK = 20
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	searcher := s.getSearcher()
	hits, degraded, err := searcher.Search(ctx, s.collectionName, req.Query, req.TopK, req.Filter, s.isHybrid)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	results := make([]RetrieveResult, len(hits))
	for i, hit := range hits {
		results[i] = RetrieveResult{
			Content:       hit.Row.Content,
			RelativePath:  hit.Row.RelativePath,
			FileExtension: hit.Row.FileExtension,
			StartLine:     hit.Row.StartLine,
			EndLine:       hit.Row.EndLine,
			Score:         hit.Score,
		}
	}

	writeJSON(w, http.StatusOK, RetrieveResponse{
		Results:      results,
		DegradedMode: degraded,
		QueryTimeMs:  time.Since(startTime).Milliseconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	searcher := s.getSearcher()
	components := make(map[string]string)
	status := "healthy"

	if err := searcher.Embedder.Health(ctx); err != nil {
		components["embedder"] = "error: " + err.Error()
		status = "degraded"
	} else {
		components["embedder"] = "ok"
	}

	if err := searcher.Store.Health(ctx); err != nil {
		components["vectordb"] = "error: " + err.Error()
		status = "degraded"
	} else {
		components["vectordb"] = "ok"
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, HealthResponse{Status: status, Components: components, Version: s.version})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       "codesearch-retrieval",
		"version":    s.version,
		"collection": s.collectionName,
		"endpoints":  []string{"POST /retrieve", "GET /health"},
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
