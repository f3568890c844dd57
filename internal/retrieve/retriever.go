package retrieve

import (
	"context"
	"log/slog"
	"time"

	"github.com/cortexdesk/cortexrag/internal/cortexerr"
	"github.com/cortexdesk/cortexrag/internal/embed"
	"github.com/cortexdesk/cortexrag/internal/store"
)

// Retriever executes the hybrid search pipeline: per-variant lexical
// and vector search, RRF fusion, rerank, dedup, and context assembly.
// It only reads from the store; it never mutates persisted state.
type Retriever struct {
	store    store.MetadataStore
	embedder embed.Embedder
	reranker LlmReranker
	log      *slog.Logger
}

// New builds a Retriever. reranker may be nil, in which case rerank_mode
// "llm" silently falls back to the heuristic, same as a reranker that
// reports itself unavailable.
func New(st store.MetadataStore, embedder embed.Embedder, reranker LlmReranker, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{store: st, embedder: embedder, reranker: reranker, log: log}
}

// Retrieve runs the full pipeline for query (plus any additional
// query_variants from the decision subgraph's rewrite step) against
// scope, and returns a Result that is never nil even on zero survivors.
func (r *Retriever) Retrieve(ctx context.Context, query string, variants []string, scope store.ScopeRef, opts Options) (*Result, error) {
	start := time.Now()
	if opts.SoftDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.SoftDeadline)
		defer cancel()
	}

	queries := append([]string{query}, variants...)
	debug := Debug{QueryVariants: variants, RerankMode: opts.RerankMode}

	var lexLists, vecLists [][]store.ScoredChunk
	for _, q := range queries {
		lex, err := r.store.SearchLexical(ctx, scope, q, maxInt(opts.KLex, 1))
		if err != nil {
			if !isEmptyQueryErr(err) {
				return nil, err
			}
		} else if len(lex) > 0 {
			lexLists = append(lexLists, lex)
			debug.LexicalHits += len(lex)
		}
		if ctx.Err() != nil {
			debug.DeadlineHit = true
			break
		}
	}

	if opts.KVec > 0 && r.embedder != nil && r.embedder.Available(ctx) {
		for _, q := range queries {
			if ctx.Err() != nil {
				debug.DeadlineHit = true
				break
			}
			qVec, err := r.embedder.Embed(ctx, q)
			if err != nil {
				r.log.Warn("query_embed_failed", slog.String("error", err.Error()))
				continue
			}
			vec, err := r.store.SearchVector(ctx, scope, qVec, r.embedder.ModelName(), maxInt(opts.KVec, 1))
			if err != nil {
				if isDimensionMismatch(err) {
					// A model/index dimension mismatch degrades to
					// lexical-only rather than failing the whole retrieval.
					r.log.Warn("vector_search_dimension_mismatch", slog.String("error", err.Error()))
					break
				}
				return nil, err
			}
			if len(vec) > 0 {
				vecLists = append(vecLists, vec)
				debug.VectorHits += len(vec)
			}
		}
	}

	fused := rrfFuse(lexLists, vecLists, opts.RRFConstant)
	if len(fused) > opts.MaxCandidates && opts.MaxCandidates > 0 {
		fused = fused[:opts.MaxCandidates]
	}
	debug.FusedCandidates = len(fused)

	if err := r.hydrateSourceNames(ctx, fused, scope); err != nil {
		return nil, err
	}
	if err := r.assertScope(fused, scope); err != nil {
		return nil, err
	}

	ranked := fused
	switch opts.RerankMode {
	case "none":
		// keep fused order
	case "llm":
		reordered, ok := applyLlmRerank(ctx, r.reranker, query, fused)
		if ok {
			ranked = reordered
		} else {
			ranked = heuristicRerank(fused, scope.Kind == store.ScopeSession)
			debug.Note = "llm rerank unavailable or failed, used heuristic"
		}
	default: // "heuristic"
		ranked = heuristicRerank(fused, scope.Kind == store.ScopeSession)
	}

	contextText, citations, chunks := assemble(ranked, opts.TopK, effectiveCharBudget(opts.ContextCharBudget))
	debug.Elapsed = time.Since(start)

	res := &Result{
		Chunks:      chunks,
		ContextText: contextText,
		Citations:   citations,
		UsedScope:   scope,
		Grounded:    len(chunks) > 0,
		Debug:       debug,
	}
	if !res.Grounded {
		res.Debug.Note = "no candidates survived rerank; broaden scope or add documents"
	}
	return res, nil
}

// hydrateSourceNames fills each candidate's SourceName from its parent
// document, deduplicating lookups across candidates from the same
// document within a single call.
func (r *Retriever) hydrateSourceNames(ctx context.Context, candidates []*Candidate, scope store.ScopeRef) error {
	cache := make(map[string]*store.Document)
	for _, c := range candidates {
		doc, ok := cache[c.DocumentID]
		if !ok {
			d, err := r.store.GetDocument(ctx, c.DocumentID)
			if err != nil {
				return err
			}
			doc = d
			cache[c.DocumentID] = doc
		}
		if doc != nil {
			c.SourceName = doc.Title
			c.workspaceID = doc.WorkspaceID
		}
	}
	return nil
}

// assertScope re-verifies scope isolation at the boundary where
// candidates leave the store layer: a global-scope result must
// never carry a document outside the GLOBAL workspace, and a
// workspace-scoped result must never carry a document from another
// workspace. The SQL scope predicate already guarantees this; this is a
// defense-in-depth check that turns a predicate bug into a loud,
// immediate failure instead of a silent scope leak (session scope is
// join-verified in SQL against document_sessions and has no equivalent
// cheap in-memory re-check, so it's left to the store's own tests).
func (r *Retriever) assertScope(candidates []*Candidate, scope store.ScopeRef) error {
	switch scope.Kind {
	case store.ScopeGlobal:
		for _, c := range candidates {
			if c.workspaceID != store.GlobalWorkspaceID {
				return cortexerr.New(cortexerr.CodeScopeViolation,
					"global-scope retrieval returned a chunk outside the GLOBAL workspace").
					WithDetail("chunk_id", c.ChunkID).
					WithDetail("workspace_id", c.workspaceID)
			}
		}
	case store.ScopeWorkspace:
		for _, c := range candidates {
			if c.workspaceID != scope.ID {
				return cortexerr.New(cortexerr.CodeScopeViolation,
					"workspace-scope retrieval returned a chunk outside the requested workspace").
					WithDetail("chunk_id", c.ChunkID).
					WithDetail("workspace_id", c.workspaceID)
			}
		}
	}
	return nil
}

func effectiveCharBudget(budget int) int {
	if budget <= 0 {
		return 8000
	}
	return budget
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isEmptyQueryErr(err error) bool {
	var ce *cortexerr.Error
	if e, ok := err.(*cortexerr.Error); ok {
		ce = e
	}
	return ce != nil && ce.Code == cortexerr.CodeEmptyQuery
}

func isDimensionMismatch(err error) bool {
	var ce *cortexerr.Error
	if e, ok := err.(*cortexerr.Error); ok {
		ce = e
	}
	return ce != nil && ce.Code == cortexerr.CodeDimensionMismatch
}
