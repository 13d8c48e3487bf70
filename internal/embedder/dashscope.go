package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DashScopeEmbedder implements Provider against Alibaba's DashScope-
// compatible embeddings endpoint: vectors arrive in a "vector" field
// (not OpenAI's "embedding"), auth is an "api-key" header, and the
// provider's own batch ceiling is 10 (spec.md §4.5). No SDK in the
// corpus models this wire shape, so this path stays on net/http
// directly (see DESIGN.md).
type DashScopeEmbedder struct {
	client   *http.Client
	endpoint string
	model    string
	apiKey   string
	ceiling  int

	mu  sync.Mutex
	dim int
}

type dashscopeEmbedRequest struct {
	Model string         `json:"model"`
	Input dashscopeInput `json:"input"`
}

type dashscopeInput struct {
	Texts []string `json:"texts"`
}

type dashscopeEmbedResponse struct {
	Output struct {
		Embeddings []struct {
			Vector    []float32 `json:"vector"`
			TextIndex int       `json:"text_index"`
		} `json:"embeddings"`
	} `json:"output"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewDashScopeEmbedder creates a new DashScope-compatible provider.
func NewDashScopeEmbedder(cfg Config) (*DashScopeEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fatalFailure("new", fmt.Errorf("API key is required"))
	}
	if cfg.Endpoint == "" {
		return nil, fatalFailure("new", fmt.Errorf("endpoint is required"))
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	ceiling := cfg.ProviderBatchCeiling
	if ceiling <= 0 || ceiling > 10 {
		ceiling = 10
	}

	return &DashScopeEmbedder{
		client:   &http.Client{Timeout: timeout},
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		ceiling:  ceiling,
		dim:      cfg.Dimensions,
	}, nil
}

// Embed generates an embedding vector for a single text.
func (d *DashScopeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	results, err := d.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// EmbedBatch generates embedding vectors, splitting into sub-batches of
// at most the provider's ceiling (10) and concatenating in order.
func (d *DashScopeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	offset := 0
	for _, batch := range splitBatches(texts, d.ceiling) {
		vectors, err := d.embedOneRequest(ctx, batch)
		if err != nil {
			return nil, err
		}
		copy(results[offset:], vectors)
		offset += len(batch)
	}

	if len(results) > 0 && results[0] != nil {
		d.mu.Lock()
		d.dim = len(results[0])
		d.mu.Unlock()
	}
	return results, nil
}

func (d *DashScopeEmbedder) embedOneRequest(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := dashscopeEmbedRequest{
		Model: d.model,
		Input: dashscopeInput{Texts: texts},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fatalFailure("embed_batch", fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fatalFailure("embed_batch", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, recoverableFailure("embed_batch", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, recoverableFailure("embed_batch", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fatalFailure("embed_batch", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var result dashscopeEmbedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fatalFailure("embed_batch", fmt.Errorf("decode response: %w", err))
	}
	if result.Code != "" {
		return nil, fatalFailure("embed_batch", fmt.Errorf("dashscope error %s: %s", result.Code, result.Message))
	}
	if len(result.Output.Embeddings) == 0 {
		return nil, fatalFailure("embed_batch", fmt.Errorf("no embeddings returned"))
	}

	vectors := make([][]float32, len(texts))
	for _, e := range result.Output.Embeddings {
		if e.TextIndex >= 0 && e.TextIndex < len(vectors) {
			vectors[e.TextIndex] = e.Vector
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fatalFailure("embed_batch", fmt.Errorf("missing embedding for input %d", i))
		}
	}
	return vectors, nil
}

// DetectDimension issues one probe call and caches the resulting length.
func (d *DashScopeEmbedder) DetectDimension(ctx context.Context, probeText string) (int, error) {
	vec, err := d.Embed(ctx, probeText)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.dim = len(vec)
	d.mu.Unlock()
	return len(vec), nil
}

// GetDimension returns the last known dimension.
func (d *DashScopeEmbedder) GetDimension() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dim
}

// ModelInfo returns metadata about the current model.
func (d *DashScopeEmbedder) ModelInfo() ModelInfo {
	return ModelInfo{Provider: "dashscope", Model: d.model, Dimensions: d.GetDimension()}
}

// Health probes with a tiny embedding request.
func (d *DashScopeEmbedder) Health(ctx context.Context) error {
	if _, err := d.Embed(ctx, "healthcheck"); err != nil {
		return fmt.Errorf("dashscope health check failed: %w", err)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no resources to release.
func (d *DashScopeEmbedder) Close() error {
	return nil
}
