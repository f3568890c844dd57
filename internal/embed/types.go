// Package embed turns chunk text into vectors for similarity search. It
// provides an HTTP-based provider for Ollama-compatible embedding
// endpoints, an unavailable stub for when no embedding backend is
// configured, and an LRU-cached wrapper that New puts around the HTTP
// provider.
package embed

import (
	"context"
	"math"
)

// Size bounds for a single HTTP batch request. A configured size above
// MaxBatchSize is clamped rather than rejected, since callers build
// batches from config that may be hand-edited; a non-positive size falls
// back to DefaultBatchSize.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 256
	DefaultBatchSize = 32
)

// DefaultDimensions is used when a provider can't report its own
// dimension up front.
const DefaultDimensions = 768

// Embedder converts text to vectors. Implementations normalize returned
// vectors to unit length so callers can compare them with plain cosine
// similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// normalizeVector scales v to unit L2 norm. A zero-magnitude vector is
// returned unchanged since it has no direction to normalize toward.
func normalizeVector(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}

	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
