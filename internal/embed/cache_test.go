package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	dims  int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int                { return c.dims }
func (c *countingEmbedder) ModelName() string              { return "counting" }
func (c *countingEmbedder) Available(context.Context) bool { return true }
func (c *countingEmbedder) Close() error                   { return nil }

func TestCachedEmbedder_RepeatedEmbedHitsCache(t *testing.T) {
	inner := &countingEmbedder{dims: 1}
	c, err := NewCachedEmbedder(inner, 10)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedder_EmbedBatchOnlyCallsInnerForMisses(t *testing.T) {
	inner := &countingEmbedder{dims: 1}
	c, err := NewCachedEmbedder(inner, 10)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "cached")
	require.NoError(t, err)
	inner.calls = 0

	out, err := c.EmbedBatch(context.Background(), []string{"cached", "fresh"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedder_DelegatesMetadata(t *testing.T) {
	inner := &countingEmbedder{dims: 5}
	c, err := NewCachedEmbedder(inner, 10)
	require.NoError(t, err)

	assert.Equal(t, 5, c.Dimensions())
	assert.Equal(t, "counting", c.ModelName())
	assert.True(t, c.Available(context.Background()))
}
