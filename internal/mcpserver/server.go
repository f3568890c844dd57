// Package mcpserver is a thin MCP stdio adapter over the coordinator:
// one tool per engine operation, each handler doing nothing but
// argument translation before calling straight into a
// *coordinator.Coordinator.
package mcpserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cortexdesk/cortexrag/internal/coordinator"
	"github.com/cortexdesk/cortexrag/internal/store"
	"github.com/cortexdesk/cortexrag/pkg/version"
)

// Server wraps a Coordinator with an MCP tool surface.
type Server struct {
	mcp *mcp.Server
	co  *coordinator.Coordinator
	log *slog.Logger
}

// New builds a Server exposing co's six operations as MCP tools.
func New(co *coordinator.Coordinator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		co:  co,
		log: log,
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "cortexrag",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_document",
		Description: "Chunk, embed, and persist a document's content so it becomes retrievable.",
	}, s.handleIndexDocument)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "retrieve",
		Description: "Run a user message through the decision subgraph and return the retrieved, citation-carrying context (or a skip reason).",
	}, s.handleRetrieve)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "enqueue_file",
		Description: "Index a single file from disk, identified by its path relative to the workspace root.",
	}, s.handleEnqueueFile)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rescan",
		Description: "Walk the whole workspace and index every non-excluded file, skipping unchanged content.",
	}, s.handleRescan)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_registry",
		Description: "List the current indexing state of every document visible under a scope.",
	}, s.handleListRegistry)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cleanup_stale",
		Description: "Delete session-scoped documents whose retention window has elapsed.",
	}, s.handleCleanupStale)
}

// IndexDocumentInput is the index_document tool's input schema.
type IndexDocumentInput struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"workspace this document belongs to"`
	SourcePath  string `json:"source_path" jsonschema:"a path identifying this document, for display and dedup"`
	Content     string `json:"content" jsonschema:"the document's full Markdown content"`
	Title       string `json:"title,omitempty" jsonschema:"a human-readable title, shown in citations"`
	SessionID   string `json:"session_id,omitempty" jsonschema:"binds the document into a session's scope in addition to its workspace"`
	SessionOnly bool   `json:"session_only,omitempty" jsonschema:"marks the document as ephemeral session context"`
}

// IndexDocumentOutput is the index_document tool's output schema.
type IndexDocumentOutput struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
	Skipped    bool   `json:"skipped" jsonschema:"true if the content hash was unchanged and nothing was re-indexed"`
	DurationMs int64  `json:"duration_ms"`
}

func (s *Server) handleIndexDocument(ctx context.Context, _ *mcp.CallToolRequest, in IndexDocumentInput) (*mcp.CallToolResult, IndexDocumentOutput, error) {
	res, err := s.co.IndexDocument(ctx, coordinator.IndexDocumentRequest{
		WorkspaceID: in.WorkspaceID,
		SourcePath:  in.SourcePath,
		Content:     in.Content,
		Title:       in.Title,
		SessionID:   in.SessionID,
		SessionOnly: in.SessionOnly,
	})
	if err != nil {
		return nil, IndexDocumentOutput{}, err
	}
	return nil, IndexDocumentOutput{
		DocumentID: res.DocumentID,
		ChunkCount: res.ChunkCount,
		Skipped:    res.Skipped,
		DurationMs: res.Duration.Milliseconds(),
	}, nil
}

// RetrieveInput is the retrieve tool's input schema.
type RetrieveInput struct {
	UserMessage      string `json:"user_message" jsonschema:"the message to decide on and, if warranted, retrieve context for"`
	ConversationMode string `json:"conversation_mode,omitempty" jsonschema:"\"chatpdf\" forces session-local scope"`
	HasSessionPDF    bool   `json:"has_session_pdf,omitempty"`
	WorkspaceID      string `json:"workspace_id,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
}

// CitationOutput mirrors retrieve.Citation for the MCP boundary.
type CitationOutput struct {
	Marker       int    `json:"marker"`
	DocumentID   string `json:"document_id"`
	ChunkID      string `json:"chunk_id"`
	SourceName   string `json:"source_name"`
	SectionTitle string `json:"section_title"`
}

// RetrieveOutput is the retrieve tool's output schema.
type RetrieveOutput struct {
	Skipped     bool             `json:"skipped"`
	SkipReason  string           `json:"skip_reason,omitempty"`
	ContextText string           `json:"context_text,omitempty"`
	Citations   []CitationOutput `json:"citations,omitempty"`
	Grounded    bool             `json:"grounded"`
	UsedScope   string           `json:"used_scope"`
}

func (s *Server) handleRetrieve(ctx context.Context, _ *mcp.CallToolRequest, in RetrieveInput) (*mcp.CallToolResult, RetrieveOutput, error) {
	out, err := s.co.Retrieve(ctx, coordinator.RetrieveRequest{
		UserMessage:      in.UserMessage,
		ConversationMode: in.ConversationMode,
		HasSessionPDF:    in.HasSessionPDF,
		WorkspaceID:      in.WorkspaceID,
		SessionID:        in.SessionID,
	})
	if err != nil {
		return nil, RetrieveOutput{}, err
	}
	citations := make([]CitationOutput, len(out.Citations))
	for i, c := range out.Citations {
		citations[i] = CitationOutput{
			Marker:       c.Marker,
			DocumentID:   c.DocumentID,
			ChunkID:      c.ChunkID,
			SourceName:   c.SourceName,
			SectionTitle: c.SectionTitle,
		}
	}
	return nil, RetrieveOutput{
		Skipped:     out.Skipped,
		SkipReason:  out.SkipReason,
		ContextText: out.ContextText,
		Citations:   citations,
		Grounded:    out.Grounded,
		UsedScope:   out.UsedScope,
	}, nil
}

// EnqueueFileInput is the enqueue_file tool's input schema.
type EnqueueFileInput struct {
	Path string `json:"path" jsonschema:"file path relative to the workspace root"`
}

func (s *Server) handleEnqueueFile(ctx context.Context, _ *mcp.CallToolRequest, in EnqueueFileInput) (*mcp.CallToolResult, IndexDocumentOutput, error) {
	res, err := s.co.EnqueueFile(ctx, in.Path)
	if err != nil {
		return nil, IndexDocumentOutput{}, err
	}
	return nil, IndexDocumentOutput{
		DocumentID: res.DocumentID,
		ChunkCount: res.ChunkCount,
		Skipped:    res.Skipped,
		DurationMs: res.Duration.Milliseconds(),
	}, nil
}

// RescanInput is the rescan tool's (empty) input schema.
type RescanInput struct{}

// RescanOutput is the rescan tool's output schema.
type RescanOutput struct {
	FilesFound   int   `json:"files_found"`
	FilesIndexed int   `json:"files_indexed"`
	FilesSkipped int   `json:"files_skipped"`
	FilesFailed  int   `json:"files_failed"`
	DurationMs   int64 `json:"duration_ms"`
}

func (s *Server) handleRescan(ctx context.Context, _ *mcp.CallToolRequest, _ RescanInput) (*mcp.CallToolResult, RescanOutput, error) {
	res, err := s.co.Rescan(ctx)
	if err != nil {
		return nil, RescanOutput{}, err
	}
	return nil, RescanOutput{
		FilesFound:   res.FilesFound,
		FilesIndexed: res.FilesIndexed,
		FilesSkipped: res.FilesSkipped,
		FilesFailed:  res.FilesFailed,
		DurationMs:   res.Duration.Milliseconds(),
	}, nil
}

// ListRegistryInput is the list_registry tool's input schema.
type ListRegistryInput struct {
	Scope   string `json:"scope" jsonschema:"\"global\", \"workspace\", or \"session\""`
	ScopeID string `json:"scope_id,omitempty" jsonschema:"workspace or session ID; unused for global scope"`
}

// RegistryEntryOutput mirrors store.RegistryEntry for the MCP boundary.
type RegistryEntryOutput struct {
	DocumentID  string `json:"document_id"`
	WorkspaceID string `json:"workspace_id"`
	SourcePath  string `json:"source_path"`
	ContentHash string `json:"content_hash"`
	ChunkCount  int    `json:"chunk_count"`
	IndexedAt   string `json:"indexed_at"`
}

// ListRegistryOutput is the list_registry tool's output schema.
type ListRegistryOutput struct {
	Entries []RegistryEntryOutput `json:"entries"`
}

func (s *Server) handleListRegistry(ctx context.Context, _ *mcp.CallToolRequest, in ListRegistryInput) (*mcp.CallToolResult, ListRegistryOutput, error) {
	scope := store.ScopeRef{Kind: store.Scope(in.Scope), ID: in.ScopeID}
	entries, err := s.co.ListRegistry(ctx, coordinator.ListRegistryRequest{Scope: scope})
	if err != nil {
		return nil, ListRegistryOutput{}, err
	}
	out := make([]RegistryEntryOutput, len(entries))
	for i, e := range entries {
		out[i] = RegistryEntryOutput{
			DocumentID:  e.DocumentID,
			WorkspaceID: e.WorkspaceID,
			SourcePath:  e.SourcePath,
			ContentHash: e.ContentHash,
			ChunkCount:  e.ChunkCount,
			IndexedAt:   e.IndexedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return nil, ListRegistryOutput{Entries: out}, nil
}

// CleanupStaleInput is the cleanup_stale tool's input schema.
type CleanupStaleInput struct {
	RetentionDaysOverride int `json:"retention_days_override,omitempty" jsonschema:"replaces the configured retention window for this run only"`
}

// CleanupStaleOutput is the cleanup_stale tool's output schema.
type CleanupStaleOutput struct {
	RemovedCount int `json:"removed_count"`
}

func (s *Server) handleCleanupStale(ctx context.Context, _ *mcp.CallToolRequest, in CleanupStaleInput) (*mcp.CallToolResult, CleanupStaleOutput, error) {
	var override time.Duration
	if in.RetentionDaysOverride != 0 {
		override = time.Duration(in.RetentionDaysOverride) * 24 * time.Hour
	}
	res, err := s.co.CleanupStale(ctx, override)
	if err != nil {
		return nil, CleanupStaleOutput{}, err
	}
	return nil, CleanupStaleOutput{RemovedCount: res.RemovedCount}, nil
}
