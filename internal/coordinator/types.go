// Package coordinator owns the lifecycle of every engine component —
// store, embedder, indexer pool, watcher, retriever, decision subgraph,
// cleanup service — and exposes the six operations a host (the CLI, the
// MCP adapter) drives the engine through: index_document, retrieve,
// enqueue_file, rescan, list_registry, cleanup_stale.
package coordinator

import (
	"time"

	"github.com/cortexdesk/cortexrag/internal/decision"
	"github.com/cortexdesk/cortexrag/internal/store"
)

// IndexDocumentRequest names a single document to index, equivalent to
// an index.Job but at the coordinator's public boundary.
type IndexDocumentRequest struct {
	WorkspaceID string
	SourcePath  string
	Content     string
	Title       string
	SessionID   string
	SessionOnly bool
}

// IndexDocumentResult reports the outcome of an index_document call.
type IndexDocumentResult struct {
	DocumentID string
	ChunkCount int
	Skipped    bool
	Duration   time.Duration
}

// RetrieveRequest is the input to the retrieve operation: a user
// message plus enough conversational state for the decision subgraph
// to choose a scope.
type RetrieveRequest struct {
	UserMessage      string
	ConversationMode string
	HasSessionPDF    bool
	WorkspaceID      string
	SessionID        string
}

// RescanResult summarizes an on-demand filesystem rescan.
type RescanResult struct {
	FilesFound   int
	FilesIndexed int
	FilesSkipped int
	FilesFailed  int
	Duration     time.Duration
}

// CleanupResult summarizes an on-demand cleanup run.
type CleanupResult struct {
	RemovedCount int
	RanAt        time.Time
}

// Retrieve's return type is the decision subgraph's own Output; the
// coordinator adds nothing to it, so no wrapper type is declared here.
type RetrieveResult = decision.Output

// ListRegistryRequest selects which scope's registry to report on.
type ListRegistryRequest struct {
	Scope store.ScopeRef
}
