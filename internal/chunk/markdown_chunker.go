package chunk

import (
	"context"
	"regexp"
	"strings"
)

var headerPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// MarkdownChunkerOptions configures chunk size and overlap.
type MarkdownChunkerOptions struct {
	ChunkSizeChars int
	OverlapChars   int
}

// MarkdownChunker splits Markdown into header-delimited sections, then
// further splits any section that overflows ChunkSizeChars along
// paragraph boundaries, carrying the trailing OverlapChars of each
// emitted chunk into the next so a sentence split across the boundary
// still reads in full in at least one chunk.
type MarkdownChunker struct {
	opts MarkdownChunkerOptions
}

var _ Chunker = (*MarkdownChunker)(nil)

// NewMarkdownChunker builds a chunker with opts, substituting defaults
// for zero fields.
func NewMarkdownChunker(opts MarkdownChunkerOptions) *MarkdownChunker {
	if opts.ChunkSizeChars <= 0 {
		opts.ChunkSizeChars = DefaultChunkSizeChars
	}
	if opts.ChunkSizeChars < MinChunkSizeChars {
		opts.ChunkSizeChars = MinChunkSizeChars
	}
	if opts.OverlapChars < 0 {
		opts.OverlapChars = 0
	}
	if opts.OverlapChars >= opts.ChunkSizeChars {
		opts.OverlapChars = opts.ChunkSizeChars / 4
	}
	return &MarkdownChunker{opts: opts}
}

type section struct {
	headerPath string
	content    string
	startChar  int
}

// Chunk implements Chunker.
func (c *MarkdownChunker) Chunk(ctx context.Context, doc Document) ([]Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	sections := parseSections(doc.Content)

	var chunks []Chunk
	ordinal := 0
	for _, sec := range sections {
		secChunks := c.splitSection(doc.Path, sec, ordinal)
		chunks = append(chunks, secChunks...)
		ordinal += len(secChunks)
	}
	return chunks, nil
}

// parseSections walks content line by line, tracking a 6-level header
// stack so a chunk's Heading reflects its full "H1 > H2 > H3" path
// rather than just its immediate header. Content before the first
// header (or a document with no headers at all) becomes an untitled
// leading section.
func parseSections(content string) []section {
	lines := strings.Split(content, "\n")
	headerStack := make([]string, 6)

	var sections []section
	var cur *section
	var builder strings.Builder
	charPos := 0
	curStart := 0

	flush := func() {
		if cur != nil {
			cur.content = builder.String()
			cur.startChar = curStart
			sections = append(sections, *cur)
			builder.Reset()
		}
	}

	for _, line := range lines {
		lineLen := len(line) + 1 // account for the trailing newline we split away

		if match := headerPattern.FindStringSubmatch(line); match != nil {
			flush()

			level := len(match[1])
			title := strings.TrimSpace(match[2])
			headerStack[level-1] = title
			for i := level; i < 6; i++ {
				headerStack[i] = ""
			}

			var parts []string
			for i := 0; i < level; i++ {
				if headerStack[i] != "" {
					parts = append(parts, headerStack[i])
				}
			}

			cur = &section{headerPath: strings.Join(parts, " > ")}
			curStart = charPos
			builder.WriteString(line)
			builder.WriteString("\n")
		} else {
			if cur == nil {
				// Preamble before the first header (a converted PDF's
				// title/abstract, say) becomes an untitled section so it
				// is chunked and retrievable like everything else.
				cur = &section{}
				curStart = charPos
			}
			builder.WriteString(line)
			builder.WriteString("\n")
		}

		charPos += lineLen
	}
	flush()

	return sections
}

// splitSection emits one chunk if sec fits within ChunkSizeChars,
// otherwise splits it along paragraph boundaries with overlap.
func (c *MarkdownChunker) splitSection(path string, sec section, ordinalBase int) []Chunk {
	trimmed := strings.TrimSpace(sec.content)
	if trimmed == "" {
		return nil
	}

	if len(sec.content) <= c.opts.ChunkSizeChars {
		return []Chunk{{
			ID:        generateChunkID(path, trimmed),
			Ordinal:   ordinalBase,
			Heading:   sec.headerPath,
			Content:   trimmed,
			StartChar: sec.startChar,
			EndChar:   sec.startChar + len(sec.content),
		}}
	}

	paragraphs := strings.Split(sec.content, "\n\n")

	var chunks []Chunk
	var buf strings.Builder
	bufStart := sec.startChar
	cursor := sec.startChar
	lastEnd := sec.startChar

	emit := func(endChar int) {
		content := strings.TrimSpace(buf.String())
		if content == "" {
			return
		}
		chunks = append(chunks, Chunk{
			ID:        generateChunkID(path, content),
			Ordinal:   ordinalBase + len(chunks),
			Heading:   sec.headerPath,
			Content:   content,
			StartChar: bufStart,
			EndChar:   endChar,
		})
	}

	for _, para := range paragraphs {
		paraStart := cursor
		paraEnd := paraStart + len(para)
		cursor = paraEnd + 2 // account for the "\n\n" separator consumed by Split

		if strings.TrimSpace(para) == "" {
			continue
		}

		if len(para) > c.opts.ChunkSizeChars {
			// The paragraph alone overflows the budget; flush whatever's
			// pending, then fall back to character boundaries for this
			// paragraph.
			if buf.Len() > 0 {
				emit(lastEnd)
				buf.Reset()
			}
			for _, piece := range splitByChars(para, c.opts.ChunkSizeChars, c.opts.OverlapChars) {
				content := strings.TrimSpace(piece.text)
				if content == "" {
					continue
				}
				chunks = append(chunks, Chunk{
					ID:        generateChunkID(path, content),
					Ordinal:   ordinalBase + len(chunks),
					Heading:   sec.headerPath,
					Content:   content,
					StartChar: paraStart + piece.offset,
					EndChar:   paraStart + piece.offset + len(piece.text),
				})
			}
			bufStart = paraEnd
			lastEnd = paraEnd
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(para) > c.opts.ChunkSizeChars {
			emit(lastEnd)

			tail := overlapTail(buf.String(), c.opts.OverlapChars)
			buf.Reset()
			bufStart = paraStart - len(tail)
			if bufStart < sec.startChar {
				bufStart = sec.startChar
			}
			if tail != "" {
				buf.WriteString(tail)
				buf.WriteString("\n\n")
			}
		}

		if buf.Len() == 0 {
			bufStart = paraStart
		}
		buf.WriteString(para)
		buf.WriteString("\n\n")
		lastEnd = paraEnd
	}
	emit(lastEnd)

	return chunks
}

// charPiece is one character-boundary slice of an oversized paragraph,
// with offset relative to the paragraph's start.
type charPiece struct {
	text   string
	offset int
}

// splitByChars breaks s into size-bounded pieces with overlap characters
// of trailing context repeated at the start of each successive piece,
// the last-resort fallback when a single paragraph has no "\n\n" boundary
// to split on.
func splitByChars(s string, size, overlap int) []charPiece {
	if size <= 0 || len(s) <= size {
		return []charPiece{{text: s, offset: 0}}
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var pieces []charPiece
	for start := 0; start < len(s); start += step {
		end := start + size
		if end > len(s) {
			end = len(s)
		}
		pieces = append(pieces, charPiece{text: s[start:end], offset: start})
		if end == len(s) {
			break
		}
	}
	return pieces
}

// overlapTail returns the trailing n characters of s, trimmed to a
// whitespace boundary so the carried-over text doesn't start mid-word.
func overlapTail(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	tail := s[len(s)-n:]
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
