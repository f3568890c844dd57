package decision

import (
	"context"
	"log/slog"
	"time"

	"github.com/cortexdesk/cortexrag/internal/config"
	"github.com/cortexdesk/cortexrag/internal/retrieve"
	"github.com/cortexdesk/cortexrag/internal/store"
)

// Graph wires the four decision nodes into a single Run call. It holds
// no mutable state between calls; every Run is independent.
type Graph struct {
	retriever *retrieve.Retriever
	rewriter  QueryRewriter
	log       *slog.Logger
}

// New builds a Graph. rewriter may be nil, in which case RewriteQuery is
// always a no-op (equivalent to a rewrite failure falling back to the
// original query).
func New(retriever *retrieve.Retriever, rewriter QueryRewriter, log *slog.Logger) *Graph {
	if log == nil {
		log = slog.Default()
	}
	return &Graph{retriever: retriever, rewriter: rewriter, log: log}
}

// Run executes Decide -> SelectScope -> RewriteQuery -> Execute and
// returns the resulting Output. A cancelled ctx is honored at each node
// boundary; no node is interrupted mid-flight.
func (g *Graph) Run(ctx context.Context, state State) (*Output, error) {
	if skip, reason := g.decide(state); skip {
		return &Output{Skipped: true, SkipReason: reason, UsedScope: "none"}, nil
	}
	if ctx.Err() != nil {
		return &Output{Skipped: true, SkipReason: "cancelled before scope selection", UsedScope: "none"}, nil
	}

	scope, usedScope := g.selectScope(state)

	if ctx.Err() != nil {
		return &Output{Skipped: true, SkipReason: "cancelled before query rewrite", UsedScope: usedScope}, nil
	}
	variants := g.rewriteQuery(ctx, state.UserMessage, state.Settings.RewriteQuery)

	opts := optionsFromSettings(state.Settings)
	result, err := g.retriever.Retrieve(ctx, state.UserMessage, variants, scope, opts)
	if err != nil {
		return nil, err
	}

	out := &Output{
		ContextText: result.ContextText,
		Citations:   result.Citations,
		Grounded:    result.Grounded,
		UsedScope:   usedScope,
		Debug:       result.Debug,
	}
	g.assertScopeInvariant(out, scope)
	return out, nil
}

// decide is the Decide node: skip when retrieval is disabled, the
// message is empty, or the classifier heuristic fires.
func (g *Graph) decide(state State) (bool, string) {
	if !state.Settings.RetrievalEnabled {
		return true, "retrieval disabled by settings"
	}
	return shouldSkip(state.UserMessage, state.Settings.MinQueryLength, state.Settings.SkipPhrases)
}

// selectScope is the SelectScope node: ChatPDF mode or an active
// session document binds to local(session); otherwise global or
// workspace, per settings.DefaultScope.
func (g *Graph) selectScope(state State) (store.ScopeRef, string) {
	if state.ConversationMode == "chatpdf" || state.HasSessionPDF {
		return store.ScopeRef{Kind: store.ScopeSession, ID: state.SessionID}, "local"
	}
	if state.Settings.DefaultScope == "workspace" && state.WorkspaceID != "" {
		return store.ScopeRef{Kind: store.ScopeWorkspace, ID: state.WorkspaceID}, "global"
	}
	return store.ScopeRef{Kind: store.ScopeGlobal}, "global"
}

// rewriteQuery is the RewriteQuery node: produces 1-3 variants via the
// configured QueryRewriter when enabled, falling back to no variants
// (original query only) on failure or when disabled.
func (g *Graph) rewriteQuery(ctx context.Context, query string, enabled bool) []string {
	if !enabled || g.rewriter == nil {
		return nil
	}
	variants, err := g.rewriter.Rewrite(ctx, query)
	if err != nil {
		g.log.Warn("query_rewrite_failed", slog.String("error", err.Error()))
		return nil
	}
	if len(variants) > 3 {
		variants = variants[:3]
	}
	return variants
}

// assertScopeInvariant enforces the scope contract: a "global" result
// implies no session filter was applied, a "local" result implies every
// chunk is session-bound. The Retriever's own scope predicate and
// assertScope already guarantee this at the SQL and candidate layers;
// a violation surviving to this point is a programming error, hence the
// panic rather than an error return.
func (g *Graph) assertScopeInvariant(out *Output, scope store.ScopeRef) {
	switch out.UsedScope {
	case "global":
		if scope.Kind == store.ScopeSession {
			panic("decision: used_scope=global but a session scope predicate was applied")
		}
	case "local":
		if scope.Kind != store.ScopeSession {
			panic("decision: used_scope=local but no session scope predicate was applied")
		}
	}
}

func optionsFromSettings(s config.SettingsSnapshot) retrieve.Options {
	return retrieve.Options{
		KLex:              s.KLex,
		KVec:              s.KVec,
		RRFConstant:       s.RRFConstant,
		MaxCandidates:     s.MaxCandidates,
		TopK:              s.TopK,
		RerankMode:        s.RerankMode,
		ContextCharBudget: 8000,
		SoftDeadline:      10 * time.Second,
	}
}
