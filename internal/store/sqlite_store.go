package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cortexdesk/cortexrag/internal/cortexerr"
	"github.com/gofrs/flock"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// SQLiteStore is the MetadataStore implementation backing the engine. It
// owns a single SQLite database in WAL mode with exactly one writer
// connection, serving lexical search via FTS5 and vector search via
// brute-force cosine similarity over a blob column.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ MetadataStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if necessary) the database at path. An
// empty path opens an in-memory database, used by tests. A file lock
// guards schema initialization so two processes racing to create the
// same database don't corrupt it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cortexerr.Wrap(cortexerr.CodeStorageInit, fmt.Errorf("create db directory %s: %w", dir, err))
		}

		if err := validateIntegrity(path); err != nil {
			slog.Warn("metadata database failed integrity check, clearing", "path", path, "error", err)
			_ = os.Remove(path)
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}

		lock := flock.New(path + ".init.lock")
		if err := lock.Lock(); err != nil {
			return nil, cortexerr.Wrap(cortexerr.CodeStorageInit, fmt.Errorf("acquire init lock: %w", err))
		}
		defer func() { _ = lock.Unlock() }()

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageInit, fmt.Errorf("open database: %w", err))
	}

	// A single writer connection avoids SQLITE_BUSY under WAL; readers
	// still benefit from WAL's concurrent-read guarantee within the
	// process via this same pooled connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, cortexerr.Wrap(cortexerr.CodeStorageInit, fmt.Errorf("set pragma %q: %w", p, err))
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, cortexerr.Wrap(cortexerr.CodeStorageInit, fmt.Errorf("init schema: %w", err))
	}

	if err := s.ensureGlobalWorkspace(); err != nil {
		_ = db.Close()
		return nil, cortexerr.Wrap(cortexerr.CodeStorageInit, fmt.Errorf("ensure global workspace: %w", err))
	}

	return s, nil
}

func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database reports corruption: %s", result)
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(schemaDDL)
	return err
}

func (s *SQLiteStore) ensureGlobalWorkspace() error {
	return s.EnsureWorkspace(context.Background(), Workspace{
		ID:        GlobalWorkspaceID,
		Name:      "global",
		CreatedAt: time.Now(),
	})
}

// Close closes the underlying database connection. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func (s *SQLiteStore) checkOpen() error {
	if s.closed {
		return cortexerr.New(cortexerr.CodeStorageIO, "store is closed")
	}
	return nil
}

// EnsureWorkspace inserts ws if it doesn't already exist, a no-op otherwise.
func (s *SQLiteStore) EnsureWorkspace(ctx context.Context, ws Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO workspaces (id, name, root_path, created_at) VALUES (?, ?, ?, ?)`,
		ws.ID, ws.Name, ws.RootPath, ws.CreatedAt.Unix())
	if err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	return nil
}

// GetWorkspace returns the workspace with id, or nil if it doesn't exist.
func (s *SQLiteStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var ws Workspace
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, root_path, created_at FROM workspaces WHERE id = ?`, id).
		Scan(&ws.ID, &ws.Name, &ws.RootPath, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	ws.CreatedAt = time.Unix(createdAt, 0)
	return &ws, nil
}

// FindDocumentByHash looks up a document by its dedup key
// (workspace_id, content_hash). Returns nil if no match, the basis for
// the indexer's skip-if-unchanged fast path.
func (s *SQLiteStore) FindDocumentByHash(ctx context.Context, workspaceID, contentHash string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, source_path, title, content_hash, byte_size, session_only, created_at, updated_at
		 FROM documents WHERE workspace_id = ? AND content_hash = ?`,
		workspaceID, contentHash)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	return doc, nil
}

// UpsertDocument inserts or replaces a document by ID.
func (s *SQLiteStore) UpsertDocument(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, workspace_id, source_path, title, content_hash, byte_size, session_only, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source_path = excluded.source_path,
			title = excluded.title,
			content_hash = excluded.content_hash,
			byte_size = excluded.byte_size,
			session_only = excluded.session_only,
			updated_at = excluded.updated_at`,
		doc.ID, doc.WorkspaceID, doc.SourcePath, doc.Title, doc.ContentHash, doc.ByteSize, boolToInt(doc.SessionOnly),
		doc.CreatedAt.Unix(), doc.UpdatedAt.Unix())
	if err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	return nil
}

// GetDocument returns the document with id, or nil if absent.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, source_path, title, content_hash, byte_size, session_only, created_at, updated_at
		 FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	return doc, nil
}

// DeleteDocument removes a document and cascades to its chunks,
// embeddings, and session bindings.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, id); err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}

	return tx.Commit()
}

// BindSession records that documentID is visible under sessionID's scope.
func (s *SQLiteStore) BindSession(ctx context.Context, sessionID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO document_sessions (session_id, document_id, created_at) VALUES (?, ?, ?)`,
		sessionID, documentID, time.Now().Unix())
	if err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	return nil
}

// ReplaceChunks atomically swaps documentID's chunk set (and their FTS
// rows) for chunks, so a re-index never leaves stale chunks behind.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, documentID string, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, documentID); err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}

	var sourceName string
	if err := tx.QueryRowContext(ctx, `SELECT title FROM documents WHERE id = ?`, documentID).Scan(&sourceName); err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, fmt.Errorf("look up document %s title: %w", documentID, err))
	}

	insertChunk, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, ordinal, heading, content, start_char, end_char, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer insertChunk.Close()

	insertFTS, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks_fts (chunk_id, content, heading, source_name) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer insertFTS.Close()

	now := time.Now().Unix()
	for _, c := range chunks {
		if _, err := insertChunk.ExecContext(ctx, c.ID, documentID, c.Ordinal, c.Heading, c.Content, c.StartChar, c.EndChar, now); err != nil {
			return cortexerr.Wrap(cortexerr.CodeStorageIO, fmt.Errorf("insert chunk %s: %w", c.ID, err))
		}
		if _, err := insertFTS.ExecContext(ctx, c.ID, c.Content, c.Heading, sourceName); err != nil {
			return cortexerr.Wrap(cortexerr.CodeStorageIO, fmt.Errorf("index chunk %s: %w", c.ID, err))
		}
	}

	return tx.Commit()
}

// GetChunksByDocument returns documentID's chunks in ordinal order.
func (s *SQLiteStore) GetChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, ordinal, heading, content, start_char, end_char, created_at
		 FROM chunks WHERE document_id = ? ORDER BY ordinal`, documentID)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SaveEmbeddings persists one or more (chunk, model) -> vector rows.
func (s *SQLiteStore) SaveEmbeddings(ctx context.Context, embeddings []ChunkEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (chunk_id, model, vector) VALUES (?, ?, ?)
		 ON CONFLICT(chunk_id, model) DO UPDATE SET vector = excluded.vector`)
	if err != nil {
		return cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer stmt.Close()

	for _, e := range embeddings {
		if _, err := stmt.ExecContext(ctx, e.ChunkID, e.Model, encodeVector(e.Vector)); err != nil {
			return cortexerr.Wrap(cortexerr.CodeStorageIO, fmt.Errorf("save embedding for chunk %s: %w", e.ChunkID, err))
		}
	}

	return tx.Commit()
}

// HasEmbeddings reports whether documentID has at least one chunk with a
// saved vector under model, used by the indexer to decide whether a
// content-hash match can still be skipped outright or needs a backfill.
func (s *SQLiteStore) HasEmbeddings(ctx context.Context, documentID, model string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings e
		 JOIN chunks c ON c.id = e.chunk_id
		 WHERE c.document_id = ? AND e.model = ?`,
		documentID, model).Scan(&n)
	if err != nil {
		return false, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	return n > 0, nil
}

// scopePredicate returns a SQL fragment and its arguments selecting
// chunks visible under scope, joined against documents (d) and, for
// session scope, document_sessions (ds). It never post-filters in Go:
// every caller embeds this fragment directly in its WHERE clause.
func scopePredicate(scope ScopeRef) (string, []any, error) {
	switch scope.Kind {
	case ScopeGlobal:
		return "d.workspace_id = ?", []any{GlobalWorkspaceID}, nil
	case ScopeWorkspace:
		if scope.ID == "" {
			return "", nil, cortexerr.New(cortexerr.CodeScopeInvalid, "workspace scope requires an ID")
		}
		return "d.workspace_id = ?", []any{scope.ID}, nil
	case ScopeSession:
		if scope.ID == "" {
			return "", nil, cortexerr.New(cortexerr.CodeScopeInvalid, "session scope requires an ID")
		}
		return "d.id IN (SELECT document_id FROM document_sessions WHERE session_id = ?)", []any{scope.ID}, nil
	default:
		return "", nil, cortexerr.New(cortexerr.CodeScopeInvalid, fmt.Sprintf("unknown scope kind %q", scope.Kind))
	}
}

// SearchLexical runs an FTS5 MATCH query against chunks visible under
// scope, returning results ranked by bm25.
func (s *SQLiteStore) SearchLexical(ctx context.Context, scope ScopeRef, query string, limit int) ([]ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(query) == "" {
		return nil, cortexerr.New(cortexerr.CodeEmptyQuery, "lexical query must not be empty")
	}

	ftsQuery := sanitizeFTSQuery(query)
	if ftsQuery == "" {
		// A query that sanitizes away to nothing (pure punctuation, pure
		// reserved FTS5 operators) yields no results rather than a
		// MATCH syntax error.
		return nil, nil
	}

	pred, args, err := scopePredicate(scope)
	if err != nil {
		return nil, err
	}

	sqlText := fmt.Sprintf(`
		SELECT c.id, c.document_id, c.ordinal, c.heading, c.content, c.start_char, c.end_char, c.created_at,
		       bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ? AND %s
		ORDER BY rank
		LIMIT ?`, pred)

	queryArgs := append([]any{ftsQuery}, append(args, limit)...)
	rows, err := s.db.QueryContext(ctx, sqlText, queryArgs...)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var c Chunk
		var createdAt int64
		var rank float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Heading, &c.Content, &c.StartChar, &c.EndChar, &createdAt, &rank); err != nil {
			return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		// bm25() is negative, lower (more negative) is a better match.
		results = append(results, ScoredChunk{Chunk: c, Score: -rank, Source: "lexical"})
	}
	return results, rows.Err()
}

// SearchVector computes exact cosine similarity between query and every
// embedding visible under scope for model, returning the top limit. This
// is a deliberate brute-force scan rather than an ANN index: at the
// per-scope corpus sizes this engine targets, a full scan is fast enough
// and never returns an approximate neighbor.
func (s *SQLiteStore) SearchVector(ctx context.Context, scope ScopeRef, query []float32, model string, limit int) ([]ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	pred, args, err := scopePredicate(scope)
	if err != nil {
		return nil, err
	}

	sqlText := fmt.Sprintf(`
		SELECT c.id, c.document_id, c.ordinal, c.heading, c.content, c.start_char, c.end_char, c.created_at, e.vector
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE e.model = ? AND %s`, pred)

	queryArgs := append([]any{model}, args...)
	rows, err := s.db.QueryContext(ctx, sqlText, queryArgs...)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var c Chunk
		var createdAt int64
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Heading, &c.Content, &c.StartChar, &c.EndChar, &createdAt, &blob); err != nil {
			return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
		}
		c.CreatedAt = time.Unix(createdAt, 0)

		vec, err := decodeVector(blob)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, fmt.Errorf("decode vector for chunk %s: %w", c.ID, err))
		}
		if len(vec) != len(query) {
			return nil, cortexerr.New(cortexerr.CodeDimensionMismatch,
				fmt.Sprintf("chunk %s has %d-dim vector, query has %d", c.ID, len(vec), len(query))).
				WithDetail("chunk_id", c.ID)
		}

		results = append(results, ScoredChunk{Chunk: c, Score: cosineSimilarity(query, vec), Source: "vector"})
	}
	if err := rows.Err(); err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ListRegistry reports the current indexing state of documents visible
// under scope, for the coordinator's list_registry operation.
func (s *SQLiteStore) ListRegistry(ctx context.Context, scope ScopeRef) ([]RegistryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	pred, args, err := scopePredicate(scope)
	if err != nil {
		return nil, err
	}

	sqlText := fmt.Sprintf(`
		SELECT d.id, d.workspace_id, d.source_path, d.content_hash, d.updated_at,
		       (SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id) AS chunk_count
		FROM documents d
		WHERE %s
		ORDER BY d.updated_at DESC`, pred)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer rows.Close()

	var entries []RegistryEntry
	for rows.Next() {
		var e RegistryEntry
		var updatedAt int64
		if err := rows.Scan(&e.DocumentID, &e.WorkspaceID, &e.SourcePath, &e.ContentHash, &updatedAt, &e.ChunkCount); err != nil {
			return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
		}
		e.IndexedAt = time.Unix(updatedAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteStaleSessionDocuments expires session bindings older than
// olderThan, then removes any session-only document left with no
// remaining binding, returning what it removed so the caller can also
// dispose of the source files. Documents not flagged session_only are
// never removed, though their expired bindings are dropped all the same.
func (s *SQLiteStore) DeleteStaleSessionDocuments(ctx context.Context, olderThan time.Time) ([]RemovedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_sessions WHERE created_at < ?`, olderThan.Unix()); err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, fmt.Errorf("expire session bindings: %w", err))
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, source_path FROM documents
		WHERE session_only = 1
		  AND id NOT IN (SELECT document_id FROM document_sessions)`)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, fmt.Errorf("find orphaned session documents: %w", err))
	}
	var removed []RemovedDocument
	for rows.Next() {
		var d RemovedDocument
		if err := rows.Scan(&d.ID, &d.SourcePath); err != nil {
			rows.Close()
			return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
		}
		removed = append(removed, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	rows.Close()

	for _, d := range removed {
		// chunks_fts is a virtual table outside foreign-key cascade, so
		// its rows go explicitly before the document delete cascades the
		// chunks away.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, d.ID); err != nil {
			return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, fmt.Errorf("delete lexical rows for %s: %w", d.ID, err))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, d.ID); err != nil {
			return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, fmt.Errorf("delete session document %s: %w", d.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, cortexerr.Wrap(cortexerr.CodeStorageIO, err)
	}
	return removed, nil
}

func scanDocument(row *sql.Row) (*Document, error) {
	var d Document
	var sessionOnly int
	var createdAt, updatedAt int64
	if err := row.Scan(&d.ID, &d.WorkspaceID, &d.SourcePath, &d.Title, &d.ContentHash, &d.ByteSize, &sessionOnly, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.SessionOnly = sessionOnly != 0
	d.CreatedAt = time.Unix(createdAt, 0)
	d.UpdatedAt = time.Unix(updatedAt, 0)
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(r rowScanner) (Chunk, error) {
	var c Chunk
	var createdAt int64
	err := r.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Heading, &c.Content, &c.StartChar, &c.EndChar, &createdAt)
	if err != nil {
		return c, err
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	return c, nil
}
