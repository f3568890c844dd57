package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cortexdesk/cortexrag/internal/chunk"
)

func TestCaches_MarkdownCacheRoundTrips(t *testing.T) {
	c := NewCaches(10)
	chunks := []chunk.Chunk{{ID: "c1", Content: "hello"}}
	c.Markdown.Add("hash1", chunks)

	got, ok := c.Markdown.Get("hash1")
	assert.True(t, ok)
	assert.Equal(t, chunks, got)
}

func TestCaches_VectorCacheRoundTrips(t *testing.T) {
	c := NewCaches(10)
	c.Vector.Add("hash1:model:0", []float32{1, 2, 3})

	got, ok := c.Vector.Get("hash1:model:0")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)
}

func TestNewCaches_NonPositiveSizeFallsBackToDefault(t *testing.T) {
	c := NewCaches(0)
	assert.NotNil(t, c.Markdown)
	assert.NotNil(t, c.Vector)
}
