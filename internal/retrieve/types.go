// Package retrieve implements the hybrid retrieval pipeline: scope-scoped
// lexical and vector search, Reciprocal Rank Fusion, heuristic or LLM
// reranking, dedup, and citation-carrying context assembly.
package retrieve

import (
	"time"

	"github.com/cortexdesk/cortexrag/internal/store"
)

// Candidate is a chunk surviving fusion, carrying enough provenance to
// rerank, dedup, and cite it without a second round trip to the store.
type Candidate struct {
	ChunkID      string
	DocumentID   string
	Ordinal      int
	SectionTitle string
	Content      string
	SourceName   string

	FusedScore float64
	LexRank    int // 1-indexed, 0 if absent from the lexical list(s)
	VecRank    int // 1-indexed, 0 if absent from the vector list(s)
	InBoth     bool

	// workspaceID is populated by hydrateSourceNames so assertScope can
	// re-verify the scope invariant without a second store round trip.
	workspaceID string

	// docRank is the count of candidates from the same document ahead of
	// this one in fused order, used by heuristicRerank's diversity penalty.
	docRank int
}

// Citation maps a context-block marker back to the chunk/document it
// came from, for downstream attribution.
type Citation struct {
	Marker       int
	DocumentID   string
	ChunkID      string
	SourceName   string
	SectionTitle string
}

// ResultChunk is one chunk included in a Result, in final order.
type ResultChunk struct {
	ChunkID      string
	DocumentID   string
	Content      string
	SectionTitle string
	SourceName   string
}

// Debug carries non-authoritative diagnostics about how a result was
// produced; never branch production logic on its contents.
type Debug struct {
	LexicalHits     int
	VectorHits      int
	FusedCandidates int
	RerankMode      string
	QueryVariants   []string
	Elapsed         time.Duration
	DeadlineHit     bool
	Note            string
}

// Result is the output of a single retrieval call.
type Result struct {
	Chunks      []ResultChunk
	ContextText string
	Citations   []Citation
	UsedScope   store.ScopeRef
	Grounded    bool
	Debug       Debug
}

// Options carries the per-call tuning the caller derives from a
// config.SettingsSnapshot, kept as its own type so this package doesn't
// import internal/config and create a dependency cycle risk.
type Options struct {
	KLex              int
	KVec              int
	RRFConstant       int
	MaxCandidates     int
	TopK              int
	RerankMode        string // "none", "heuristic", "llm"
	ContextCharBudget int
	SoftDeadline      time.Duration
}

// DefaultOptions mirrors config.NewConfig's retrieval defaults so callers
// that construct Options by hand (tests, the CLI) get sane values.
func DefaultOptions() Options {
	return Options{
		KLex:              20,
		KVec:              20,
		RRFConstant:       60,
		MaxCandidates:     200,
		TopK:              8,
		RerankMode:        "heuristic",
		ContextCharBudget: 8000,
		SoftDeadline:      10 * time.Second,
	}
}
