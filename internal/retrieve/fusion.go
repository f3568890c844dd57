package retrieve

import (
	"sort"

	"github.com/cortexdesk/cortexrag/internal/store"
)

// DefaultRRFConstant is the usual RRF smoothing constant (k=60, the
// value OpenSearch and Azure AI Search ship as their default).
const DefaultRRFConstant = 60

// rrfFuse combines any number of ranked lexical/vector result lists into
// one fused ranking. A chunk's score accumulates 1/(rrf_k + rank) over
// the lists it actually appears in; a list that didn't return the chunk
// contributes nothing.
func rrfFuse(lexLists, vecLists [][]store.ScoredChunk, rrfK int) []*Candidate {
	if rrfK <= 0 {
		rrfK = DefaultRRFConstant
	}

	byID := make(map[string]*Candidate)
	order := func(id string) *Candidate {
		c, ok := byID[id]
		if !ok {
			c = &Candidate{ChunkID: id}
			byID[id] = c
		}
		return c
	}

	for _, list := range lexLists {
		for rank, r := range list {
			c := order(r.Chunk.ID)
			fillFromChunk(c, r.Chunk)
			contrib := 1.0 / float64(rrfK+rank+1)
			c.FusedScore += contrib
			if c.LexRank == 0 || rank+1 < c.LexRank {
				c.LexRank = rank + 1
			}
		}
	}
	for _, list := range vecLists {
		for rank, r := range list {
			c := order(r.Chunk.ID)
			fillFromChunk(c, r.Chunk)
			contrib := 1.0 / float64(rrfK+rank+1)
			c.FusedScore += contrib
			if c.VecRank == 0 || rank+1 < c.VecRank {
				c.VecRank = rank + 1
			}
		}
	}

	out := make([]*Candidate, 0, len(byID))
	for _, c := range byID {
		c.InBoth = c.LexRank > 0 && c.VecRank > 0
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return fusionLess(out[i], out[j]) })
	return out
}

func fillFromChunk(c *Candidate, ch store.Chunk) {
	if c.DocumentID == "" {
		c.DocumentID = ch.DocumentID
		c.Ordinal = ch.Ordinal
		c.SectionTitle = ch.Heading
		c.Content = ch.Content
	}
}

// fusionLess is the deterministic order over candidates: higher fused
// score first, then smaller chunk ordinal, then lexicographically
// smaller chunk ID.
func fusionLess(a, b *Candidate) bool {
	if a.FusedScore != b.FusedScore {
		return a.FusedScore > b.FusedScore
	}
	if a.Ordinal != b.Ordinal {
		return a.Ordinal < b.Ordinal
	}
	return a.ChunkID < b.ChunkID
}
