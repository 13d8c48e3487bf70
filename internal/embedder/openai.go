package embedder

import (
	"context"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder implements Provider against an OpenAI-compatible
// /v1/embeddings endpoint via the real SDK client, handling Bearer auth
// and Matryoshka-style custom dimensions (spec.md §4.5, §6.1).
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	ceiling   int
	customDim int
	timeout   time.Duration

	mu  sync.Mutex
	dim int
}

// NewOpenAIEmbedder creates a new OpenAI-compatible embedding provider.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fatalFailure("new", fmt.Errorf("API key is required"))
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		ceiling:   cfg.ProviderBatchCeiling,
		customDim: cfg.Dimensions,
		timeout:   timeout,
		dim:       cfg.Dimensions,
	}, nil
}

// Embed generates an embedding vector for a single text.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	results, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// EmbedBatch generates embedding vectors for multiple texts, splitting
// into sub-batches of at most ProviderBatchCeiling and concatenating
// results in input order (spec.md §4.5, §8.3 "batch exactly at ceiling").
func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	results := make([][]float32, len(texts))
	offset := 0
	for _, batch := range splitBatches(texts, o.ceiling) {
		vectors, err := o.embedOneRequest(ctx, batch)
		if err != nil {
			return nil, err
		}
		copy(results[offset:], vectors)
		offset += len(batch)
	}

	if len(results) > 0 && results[0] != nil {
		o.mu.Lock()
		o.dim = len(results[0])
		o.mu.Unlock()
	}

	return results, nil
}

func (o *OpenAIEmbedder) embedOneRequest(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(o.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if o.customDim > 0 {
		req.Dimensions = o.customDim
	}

	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError("embed_batch", err)
	}
	if len(resp.Data) == 0 {
		return nil, fatalFailure("embed_batch", fmt.Errorf("no embeddings returned"))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
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
func (o *OpenAIEmbedder) DetectDimension(ctx context.Context, probeText string) (int, error) {
	vec, err := o.Embed(ctx, probeText)
	if err != nil {
		return 0, err
	}
	o.mu.Lock()
	o.dim = len(vec)
	o.mu.Unlock()
	return len(vec), nil
}

// GetDimension returns the last known dimension: the configured
// customDim override if present, else the last detected value.
func (o *OpenAIEmbedder) GetDimension() int {
	if o.customDim > 0 {
		return o.customDim
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dim
}

// ModelInfo returns metadata about the current model.
func (o *OpenAIEmbedder) ModelInfo() ModelInfo {
	return ModelInfo{Provider: "openai", Model: o.model, Dimensions: o.GetDimension()}
}

// Health verifies connectivity and API key validity with a tiny probe.
func (o *OpenAIEmbedder) Health(ctx context.Context) error {
	if _, err := o.Embed(ctx, "healthcheck"); err != nil {
		return fmt.Errorf("openai health check failed: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources to release.
func (o *OpenAIEmbedder) Close() error {
	return nil
}

// classifyOpenAIError maps an SDK error to EmbeddingFailure's
// recoverable/non-recoverable split (spec.md §4.5): authentication and
// malformed-request errors are fatal, timeouts and rate limits are
// marked recoverable.
func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if asAPIError(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403, 400:
			return fatalFailure(op, err)
		case 429, 408, 500, 502, 503, 504:
			return recoverableFailure(op, err)
		}
	}
	return recoverableFailure(op, err)
}

func asAPIError(err error, target **openai.APIError) bool {
	for err != nil {
		if apiErr, ok := err.(*openai.APIError); ok {
			*target = apiErr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
