// Package embedder provides a pluggable interface for text embedding
// providers (spec.md §4.5), abstracting batch-size ceilings,
// response-shape differences, and dimension detection/caching behind one
// contract.
package embedder

import (
	"context"
	"fmt"
)

// Provider defines the interface every embedding backend implements.
type Provider interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple texts,
	// preserving input order; result length equals input length.
	// Implementations transparently split into sub-batches of at most
	// ProviderBatchCeiling when one is configured.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// DetectDimension issues one probe call and returns (and caches)
	// the length of the returned vector.
	DetectDimension(ctx context.Context, probeText string) (int, error)

	// GetDimension returns the last known dimension: a configured
	// override, a known-model value, or the last detected value.
	GetDimension() int

	// ModelInfo returns metadata about the current model.
	ModelInfo() ModelInfo

	// Health checks whether the provider is reachable and usable.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// ModelInfo describes the embedding model currently in use.
type ModelInfo struct {
	Provider   string
	Model      string
	Dimensions int
}

// ResponseShape names which JSON field carries each embedding in a batch
// response (spec.md §4.5/§6.1). It is carried in Config only: no provider
// reads it, and each one decodes its own API's response format.
type ResponseShape string

const (
	ResponseShapeOpenAI  ResponseShape = "openai"  // field "embedding"
	ResponseShapeAlibaba ResponseShape = "alibaba" // field "vector"
)

// Config holds provider construction parameters. It is independent of
// any on-disk config schema so this package has no upward dependency.
type Config struct {
	Provider string
	Model    string
	Endpoint string
	APIKey   string

	// Dimensions, if non-zero, is passed through to providers
	// supporting Matryoshka-style variable output and becomes the
	// authoritative dimension without a probe call.
	Dimensions int

	// ProviderBatchCeiling caps the number of texts sent in a single
	// provider request; 0 means unlimited (EmbedBatch issues one call).
	ProviderBatchCeiling int

	ResponseShape  ResponseShape
	TimeoutSeconds int
}

// EmbeddingFailure is the error kind for every embedding-path failure
// (spec.md §4.5, §7). Recoverable is set for timeouts and rate limits and
// unset for authentication, dimension-mismatch and malformed-response
// errors. Nothing retries on it: the controller fails the run on either kind.
type EmbeddingFailure struct {
	Op          string
	Recoverable bool
	Err         error
}

func (e *EmbeddingFailure) Error() string {
	return fmt.Sprintf("embedder: %s: %v", e.Op, e.Err)
}

func (e *EmbeddingFailure) Unwrap() error { return e.Err }

func recoverableFailure(op string, err error) error {
	return &EmbeddingFailure{Op: op, Recoverable: true, Err: err}
}

func fatalFailure(op string, err error) error {
	return &EmbeddingFailure{Op: op, Recoverable: false, Err: err}
}

// splitBatches divides texts into chunks of at most ceiling items each,
// preserving order. A ceiling <= 0 returns texts as one batch.
func splitBatches(texts []string, ceiling int) [][]string {
	if ceiling <= 0 || len(texts) <= ceiling {
		return [][]string{texts}
	}

	var batches [][]string
	for start := 0; start < len(texts); start += ceiling {
		end := start + ceiling
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[start:end])
	}
	return batches
}
