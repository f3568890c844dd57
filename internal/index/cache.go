package index

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cortexdesk/cortexrag/internal/chunk"
)

// DefaultCacheSize bounds each cache's entry count. Entries are small
// (a chunk list or a single vector), so an entry-count cap stands in
// for a true byte-size budget.
const DefaultCacheSize = 4096

// Caches holds the two LRU caches shared across an indexing run: parsed
// chunks keyed by content hash (skips re-chunking unchanged documents)
// and embedding vectors keyed by content hash + model + chunk ordinal
// (skips re-embedding a chunk whose text and model haven't changed).
type Caches struct {
	Markdown *lru.Cache[string, []chunk.Chunk]
	Vector   *lru.Cache[string, []float32]
}

// NewCaches builds both caches with the given per-cache entry capacity.
func NewCaches(size int) *Caches {
	if size <= 0 {
		size = DefaultCacheSize
	}
	md, _ := lru.New[string, []chunk.Chunk](size)
	vec, _ := lru.New[string, []float32](size)
	return &Caches{Markdown: md, Vector: vec}
}
