package embed

import (
	"context"

	"github.com/cortexdesk/cortexrag/internal/cortexerr"
)

// UnavailableEmbedder is used when no embedding backend is configured.
// It reports itself as unavailable and fails every embed call, letting
// the indexer fall back to lexical-only search rather than silently
// returning meaningless zero vectors.
type UnavailableEmbedder struct {
	dims  int
	model string
}

var _ Embedder = (*UnavailableEmbedder)(nil)

// NewUnavailableEmbedder builds a stub reporting the given dimension and
// model name, so downstream components can still size vector blobs
// consistently once a real provider is configured later.
func NewUnavailableEmbedder(dims int, model string) *UnavailableEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &UnavailableEmbedder{dims: dims, model: model}
}

func (e *UnavailableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, cortexerr.New(cortexerr.CodeEmbeddingUnavail, "no embedding provider configured").
		WithSuggestion("set embeddings.provider to \"http\" and point embeddings.endpoint at a running model server")
}

func (e *UnavailableEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, cortexerr.New(cortexerr.CodeEmbeddingUnavail, "no embedding provider configured")
}

func (e *UnavailableEmbedder) Dimensions() int { return e.dims }

func (e *UnavailableEmbedder) ModelName() string { return e.model }

func (e *UnavailableEmbedder) Available(ctx context.Context) bool { return false }

func (e *UnavailableEmbedder) Close() error { return nil }
