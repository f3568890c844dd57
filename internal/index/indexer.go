package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cortexdesk/cortexrag/internal/chunk"
	"github.com/cortexdesk/cortexrag/internal/embed"
	"github.com/cortexdesk/cortexrag/internal/store"
)

// jobDeadline bounds a single document's index pipeline so one
// pathological file (huge content, a stalled embedding call) can't starve
// the pool's other jobs.
const jobDeadline = 5 * time.Minute

// Indexer persists a Job by hashing its content for dedup, chunking it,
// embedding the chunks, and writing the result to the store.
type Indexer struct {
	store    store.MetadataStore
	chunker  chunk.Chunker
	embedder embed.Embedder
	caches   *Caches
	log      *slog.Logger
}

// New builds an Indexer. A nil logger falls back to slog.Default.
func New(st store.MetadataStore, chunker chunk.Chunker, embedder embed.Embedder, caches *Caches, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	if caches == nil {
		caches = NewCaches(DefaultCacheSize)
	}
	return &Indexer{store: st, chunker: chunker, embedder: embedder, caches: caches, log: log}
}

// IndexDocument runs the full pipeline for a single Job: dedup by content
// hash, chunk, embed, and persist. If the document's content hash is
// unchanged from what's stored it does not re-chunk: it refreshes the
// document's timestamp and session binding, and embeds the stored chunks
// only when none have an embedding under the current model.
func (ix *Indexer) IndexDocument(ctx context.Context, job Job) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, jobDeadline)
	defer cancel()

	res := Result{SourcePath: job.SourcePath}

	if err := ix.store.EnsureWorkspace(ctx, store.Workspace{ID: job.WorkspaceID, Name: job.WorkspaceID}); err != nil {
		res.Err = fmt.Errorf("ensure workspace: %w", err)
		return res
	}

	content := canonicalContent(job.Content)
	contentHash := hashContent(content)

	existing, err := ix.store.FindDocumentByHash(ctx, job.WorkspaceID, contentHash)
	if err != nil {
		res.Err = fmt.Errorf("check existing document: %w", err)
		return res
	}
	if existing != nil {
		embedded, err := ix.embeddingsCurrent(ctx, existing.ID)
		if err != nil {
			res.Err = fmt.Errorf("check existing embeddings: %w", err)
			return res
		}
		if embedded {
			// Nothing to re-chunk or re-embed, but the re-ingest still
			// advances the document's indexed-at timestamp.
			if err := ix.store.UpsertDocument(ctx, *existing); err != nil {
				res.Err = fmt.Errorf("refresh document: %w", err)
				return res
			}
			res.DocumentID = existing.ID
			res.Skipped = true
			res.Duration = time.Since(start)
			if job.SessionID != "" {
				if err := ix.store.BindSession(ctx, job.SessionID, existing.ID); err != nil {
					res.Err = fmt.Errorf("bind session: %w", err)
				}
			}
			return res
		}
		// Content hash matches, but this document was first indexed while
		// the embedder was unavailable (or under a different model) and
		// never got vectors. The lexical rows are unchanged, so only
		// refresh indexed_at/session binding and backfill embeddings
		// against the chunks already on disk, rather than re-chunking.
		if err := ix.store.UpsertDocument(ctx, *existing); err != nil {
			res.Err = fmt.Errorf("refresh document: %w", err)
			return res
		}
		if job.SessionID != "" {
			if err := ix.store.BindSession(ctx, job.SessionID, existing.ID); err != nil {
				res.Err = fmt.Errorf("bind session: %w", err)
				return res
			}
		}
		storedChunks, err := ix.store.GetChunksByDocument(ctx, existing.ID)
		if err != nil {
			res.Err = fmt.Errorf("load existing chunks: %w", err)
			return res
		}
		chunks := make([]chunk.Chunk, len(storedChunks))
		for i, c := range storedChunks {
			chunks[i] = chunk.Chunk{ID: c.ID, Ordinal: c.Ordinal, Heading: c.Heading, Content: c.Content, StartChar: c.StartChar, EndChar: c.EndChar}
		}
		if err := ix.embedChunks(ctx, contentHash, chunks); err != nil {
			ix.log.Warn("embedding_backfill_failed",
				slog.String("path", job.SourcePath),
				slog.String("error", err.Error()))
		}
		res.DocumentID = existing.ID
		res.ChunkCount = len(chunks)
		res.Duration = time.Since(start)
		return res
	}

	docID := uuid.NewString()
	chunks, err := ix.chunkContent(ctx, job.SourcePath, content, contentHash)
	if err != nil {
		res.Err = fmt.Errorf("chunk document: %w", err)
		return res
	}

	storeChunks := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		storeChunks[i] = store.Chunk{
			ID:         c.ID,
			DocumentID: docID,
			Ordinal:    c.Ordinal,
			Heading:    c.Heading,
			Content:    c.Content,
			StartChar:  c.StartChar,
			EndChar:    c.EndChar,
		}
	}

	if err := ix.store.UpsertDocument(ctx, store.Document{
		ID:          docID,
		WorkspaceID: job.WorkspaceID,
		SourcePath:  job.SourcePath,
		Title:       job.Title,
		ContentHash: contentHash,
		ByteSize:    len(content),
		SessionOnly: job.SessionOnly,
	}); err != nil {
		res.Err = fmt.Errorf("upsert document: %w", err)
		return res
	}

	// Phase one: chunks and their lexical (FTS) rows land atomically.
	if err := ix.store.ReplaceChunks(ctx, docID, storeChunks); err != nil {
		res.Err = fmt.Errorf("replace chunks: %w", err)
		return res
	}

	if job.SessionID != "" {
		if err := ix.store.BindSession(ctx, job.SessionID, docID); err != nil {
			res.Err = fmt.Errorf("bind session: %w", err)
			return res
		}
	}

	// Phase two: embeddings, which may fail independently (provider
	// unavailable) without the document losing its lexical searchability.
	if err := ix.embedChunks(ctx, contentHash, chunks); err != nil {
		ix.log.Warn("embedding_failed_lexical_only",
			slog.String("path", job.SourcePath),
			slog.String("error", err.Error()))
	}

	res.DocumentID = docID
	res.ChunkCount = len(chunks)
	res.Duration = time.Since(start)
	return res
}

// embeddingsCurrent reports whether documentID already has embeddings
// saved under the embedder's current model. A document indexed while the
// embedder was unavailable, or under a since-changed model, reports false
// so the caller backfills rather than skipping it outright.
func (ix *Indexer) embeddingsCurrent(ctx context.Context, documentID string) (bool, error) {
	if ix.embedder == nil || !ix.embedder.Available(ctx) {
		// Without a usable embedder there's nothing to backfill; treat the
		// hash match as fully handled so the document is just re-stamped.
		return true, nil
	}
	return ix.store.HasEmbeddings(ctx, documentID, ix.embedder.ModelName())
}

func (ix *Indexer) chunkContent(ctx context.Context, path, content, contentHash string) ([]chunk.Chunk, error) {
	if cached, ok := ix.caches.Markdown.Get(contentHash); ok {
		return cached, nil
	}
	chunks, err := ix.chunker.Chunk(ctx, chunk.Document{Path: path, Content: content})
	if err != nil {
		return nil, err
	}
	chunks = dedupeChunks(chunks)
	ix.caches.Markdown.Add(contentHash, chunks)
	return chunks, nil
}

// dedupeChunks drops chunks whose content duplicates an earlier chunk in
// the same document (boilerplate headers, repeated legal footers), then
// re-densifies ordinals so they stay gapless 0..N-1. Duplicate content
// also means a duplicate content-addressed chunk ID, so this doubles as
// the guard keeping chunk IDs unique per document.
func dedupeChunks(chunks []chunk.Chunk) []chunk.Chunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, dup := seen[c.Content]; dup {
			continue
		}
		seen[c.Content] = struct{}{}
		c.Ordinal = len(out)
		out = append(out, c)
	}
	return out
}

// canonicalContent normalizes line endings to LF and strips trailing
// whitespace, so the same logical Markdown hashes identically regardless
// of which OS or converter produced the file.
func canonicalContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.TrimRight(content, " \t\n")
}

func (ix *Indexer) embedChunks(ctx context.Context, contentHash string, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if !ix.embedder.Available(ctx) {
		return fmt.Errorf("embedding provider unavailable")
	}

	model := ix.embedder.ModelName()
	embeddings := make([]store.ChunkEmbedding, 0, len(chunks))
	var missIdx []int
	var missTexts []string

	for i, c := range chunks {
		key := vectorCacheKey(contentHash, model, i)
		if v, ok := ix.caches.Vector.Get(key); ok {
			embeddings = append(embeddings, store.ChunkEmbedding{ChunkID: c.ID, Model: model, Vector: v})
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, c.Content)
	}

	if len(missTexts) > 0 {
		vectors, err := ix.embedder.EmbedBatch(ctx, missTexts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		for j, idx := range missIdx {
			c := chunks[idx]
			ix.caches.Vector.Add(vectorCacheKey(contentHash, model, idx), vectors[j])
			embeddings = append(embeddings, store.ChunkEmbedding{ChunkID: c.ID, Model: model, Vector: vectors[j]})
		}
	}

	return ix.store.SaveEmbeddings(ctx, embeddings)
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func vectorCacheKey(contentHash, model string, chunkIndex int) string {
	return fmt.Sprintf("%s:%s:%d", contentHash, model, chunkIndex)
}
