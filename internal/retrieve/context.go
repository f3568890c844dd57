package retrieve

import (
	"fmt"
	"strings"
)

const (
	minContextChunks = 6
	maxContextChunks = 10
)

// assemble builds the final context block: drop candidates adjacent
// (same document, consecutive ordinal) to an already-selected
// higher-ranked candidate, truncate to 6-10 chunks and a character
// budget, then render the citation-carrying context block.
func assemble(ranked []*Candidate, topK, charBudget int) (string, []Citation, []ResultChunk) {
	if topK <= 0 || topK > maxContextChunks {
		topK = maxContextChunks
	}
	if topK < minContextChunks && len(ranked) >= minContextChunks {
		topK = minContextChunks
	}

	type selected struct {
		c *Candidate
	}
	var picked []selected
	adjacent := make(map[string]map[int]bool) // documentID -> ordinals already taken

	for _, c := range ranked {
		if len(picked) >= topK {
			break
		}
		taken := adjacent[c.DocumentID]
		if taken != nil && (taken[c.Ordinal-1] || taken[c.Ordinal+1]) {
			continue
		}
		picked = append(picked, selected{c: c})
		if taken == nil {
			taken = make(map[int]bool)
			adjacent[c.DocumentID] = taken
		}
		taken[c.Ordinal] = true
	}

	var b strings.Builder
	citations := make([]Citation, 0, len(picked))
	chunks := make([]ResultChunk, 0, len(picked))
	used := 0

	for i, p := range picked {
		marker := i + 1
		header := fmt.Sprintf("[%d] %s | %s", marker, p.c.SourceName, p.c.SectionTitle)
		entry := header + "\n" + p.c.Content + "\n\n"

		if used > 0 && used+len(entry) > charBudget {
			break
		}
		b.WriteString(entry)
		used += len(entry)

		citations = append(citations, Citation{
			Marker:       marker,
			DocumentID:   p.c.DocumentID,
			ChunkID:      p.c.ChunkID,
			SourceName:   p.c.SourceName,
			SectionTitle: p.c.SectionTitle,
		})
		chunks = append(chunks, ResultChunk{
			ChunkID:      p.c.ChunkID,
			DocumentID:   p.c.DocumentID,
			Content:      p.c.Content,
			SectionTitle: p.c.SectionTitle,
			SourceName:   p.c.SourceName,
		})
	}

	return strings.TrimRight(b.String(), "\n"), citations, chunks
}
