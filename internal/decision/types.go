// Package decision implements the four-node retrieval decision
// subgraph: Decide -> SelectScope -> RewriteQuery -> {LocalExecute,
// GlobalExecute}. It never mutates persisted state; its sole job is to
// pick a scope, optionally rewrite the query, and delegate to the
// Retriever.
package decision

import (
	"context"

	"github.com/cortexdesk/cortexrag/internal/config"
	"github.com/cortexdesk/cortexrag/internal/retrieve"
)

// State is the input the graph reads. It deliberately carries only what
// each node needs rather than a single sprawling conversation object.
type State struct {
	UserMessage      string
	ConversationMode string // e.g. "chatpdf", "chat"
	HasSessionPDF    bool
	WorkspaceID      string // "" falls back to the global workspace
	SessionID        string
	Settings         config.SettingsSnapshot
}

// QueryRewriter produces 1-3 query variants from the original text, or
// fails. A failure falls back to the original query unchanged.
type QueryRewriter interface {
	Rewrite(ctx context.Context, text string) ([]string, error)
}

// Output is what the graph appends to the downstream prompt state.
type Output struct {
	ContextText string
	Citations   []retrieve.Citation
	Grounded    bool
	UsedScope   string // "global" (global or workspace scope), "local" (session), or "none" when skipped
	Skipped     bool
	SkipReason  string
	Debug       retrieve.Debug
}
