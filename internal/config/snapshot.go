package config

import "time"

// SettingsSnapshot is a read-only projection of Config handed to
// components that must not mutate or reload configuration mid-operation
// (an in-flight retrieval, an indexing job). Taking a Snapshot at the
// start of an operation means a concurrent config reload can't change
// behavior partway through it.
type SettingsSnapshot struct {
	RetrievalEnabled bool
	DefaultScope     string
	KLex             int
	KVec             int
	RRFConstant      int
	MaxCandidates    int
	TopK             int
	RerankMode       string

	ChunkSizeChars int
	OverlapChars   int

	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int

	MinQueryLength int
	SkipPhrases    []string
	RewriteQuery   bool

	CleanupEnabled  bool
	RetentionWindow time.Duration
	CleanupInterval time.Duration
}

// Snapshot captures the current configuration as an immutable value.
func (c *Config) Snapshot() SettingsSnapshot {
	retention := time.Duration(c.Cleanup.RetentionDays) * 24 * time.Hour
	interval, err := time.ParseDuration(c.Cleanup.CleanupInterval)
	if err != nil {
		interval = 24 * time.Hour
	}

	phrases := make([]string, len(c.Decision.SkipPhrases))
	copy(phrases, c.Decision.SkipPhrases)

	return SettingsSnapshot{
		RetrievalEnabled: c.Retrieval.Enabled,
		DefaultScope:     c.Retrieval.DefaultScope,
		KLex:             c.Retrieval.KLex,
		KVec:             c.Retrieval.KVec,
		RRFConstant:      c.Retrieval.RRFConstant,
		MaxCandidates:    c.Retrieval.MaxCandidates,
		TopK:             c.Retrieval.TopK,
		RerankMode:       c.Retrieval.RerankMode,

		ChunkSizeChars: c.Chunking.ChunkSizeChars,
		OverlapChars:   c.Chunking.OverlapChars,

		EmbeddingProvider:  c.Embeddings.Provider,
		EmbeddingModel:     c.Embeddings.Model,
		EmbeddingDimension: c.Embeddings.Dimension,

		MinQueryLength: c.Decision.MinQueryLength,
		SkipPhrases:    phrases,
		RewriteQuery:   c.Decision.RewriteQuery,

		CleanupEnabled:  c.Cleanup.Enabled,
		RetentionWindow: retention,
		CleanupInterval: interval,
	}
}
