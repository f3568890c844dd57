package retrieve

import (
	"context"
	"sort"
)

// LlmReranker is an optional external ranking capability. An
// implementation scores a query against a small candidate set and may
// reorder it; it must preserve the input set (no additions/removals).
type LlmReranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]int, error)
	Available(ctx context.Context) bool
}

// heuristicRerank orders candidates by a weighted composite of (a)
// fused score, (b) a section-title bonus, (c) a same-document diversity
// penalty, and (d) a session-scope recency bonus. This is the engine's
// always-available default ranking, not a fallback path.
func heuristicRerank(candidates []*Candidate, sessionScoped bool) []*Candidate {
	docSeen := make(map[string]int)
	ranked := make([]*Candidate, len(candidates))
	copy(ranked, candidates)

	// docRank must reflect each candidate's position in fused order, so
	// compute it before any reordering happens.
	for _, c := range ranked {
		c.docRank = docSeen[c.DocumentID]
		docSeen[c.DocumentID]++
	}

	score := func(c *Candidate) float64 {
		s := c.FusedScore
		if c.SectionTitle != "" {
			s += 0.05
		}
		s -= 0.03 * float64(c.docRank)
		if sessionScoped {
			// Later ordinals within a session document skew toward more
			// recently discussed material; a small, bounded bonus.
			s += 0.01 * float64(c.Ordinal) / float64(max(1, c.Ordinal+1))
		}
		return s
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := score(ranked[i]), score(ranked[j])
		if si != sj {
			return si > sj
		}
		return fusionLess(ranked[i], ranked[j])
	})
	return ranked
}

// applyLlmRerank reorders candidates per the reranker's reported index
// order, falling back to the heuristic order unchanged if the reranker
// errors or returns a set that doesn't match the input one-for-one.
func applyLlmRerank(ctx context.Context, reranker LlmReranker, query string, candidates []*Candidate) ([]*Candidate, bool) {
	if reranker == nil || !reranker.Available(ctx) {
		return candidates, false
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Content
	}

	order, err := reranker.Rerank(ctx, query, docs)
	if err != nil || len(order) != len(candidates) {
		return candidates, false
	}

	seen := make(map[int]bool, len(order))
	reordered := make([]*Candidate, 0, len(candidates))
	for _, idx := range order {
		if idx < 0 || idx >= len(candidates) || seen[idx] {
			return candidates, false
		}
		seen[idx] = true
		reordered = append(reordered, candidates[idx])
	}
	return reordered, true
}
