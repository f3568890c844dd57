// Package index turns raw document content into persisted, searchable
// chunks: hash for dedup, chunk, embed, and write to the store, with a
// bounded worker pool for indexing many documents concurrently.
package index

import "time"

// Job describes one document to index.
type Job struct {
	WorkspaceID string
	SourcePath  string
	Content     string
	Title       string

	// SessionID binds the document into a session's scope in addition to
	// its workspace. Empty means workspace-only.
	SessionID string

	// SessionOnly marks the document as ephemeral session context, a
	// candidate for cleanup once its session binding expires.
	SessionOnly bool
}

// Result reports the outcome of indexing one Job.
type Result struct {
	SourcePath string
	DocumentID string
	ChunkCount int
	Skipped    bool // content hash unchanged since last index
	Duration   time.Duration
	Err        error
}
