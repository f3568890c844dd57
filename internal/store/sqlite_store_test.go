package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "metadata.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_EnsuresGlobalWorkspaceOnOpen(t *testing.T) {
	s := newTestStore(t)
	ws, err := s.GetWorkspace(context.Background(), GlobalWorkspaceID)
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, GlobalWorkspaceID, ws.ID)
}

func TestSQLiteStore_DocumentUpsertAndFindByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureWorkspace(ctx, Workspace{ID: "ws-1", Name: "proj"}))

	doc := Document{ID: "doc-1", WorkspaceID: "ws-1", SourcePath: "notes.md", ContentHash: "abc123", ByteSize: 42}
	require.NoError(t, s.UpsertDocument(ctx, doc))

	found, err := s.FindDocumentByHash(ctx, "ws-1", "abc123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "doc-1", found.ID)

	missing, err := s.FindDocumentByHash(ctx, "ws-1", "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_ReplaceChunksSwapsAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureWorkspace(ctx, Workspace{ID: "ws-1", Name: "proj"}))
	require.NoError(t, s.UpsertDocument(ctx, Document{ID: "doc-1", WorkspaceID: "ws-1", ContentHash: "h1"}))

	require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []Chunk{
		{ID: "c1", DocumentID: "doc-1", Ordinal: 0, Content: "first chunk about onions"},
		{ID: "c2", DocumentID: "doc-1", Ordinal: 1, Content: "second chunk about carrots"},
	}))

	chunks, err := s.GetChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c1", chunks[0].ID)

	require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []Chunk{
		{ID: "c3", DocumentID: "doc-1", Ordinal: 0, Content: "replaced chunk about potatoes"},
	}))

	chunks, err = s.GetChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c3", chunks[0].ID)
}

func TestSQLiteStore_SearchLexical_ScopesToWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureWorkspace(ctx, Workspace{ID: "ws-a", Name: "a"}))
	require.NoError(t, s.EnsureWorkspace(ctx, Workspace{ID: "ws-b", Name: "b"}))
	require.NoError(t, s.UpsertDocument(ctx, Document{ID: "doc-a", WorkspaceID: "ws-a", ContentHash: "ha"}))
	require.NoError(t, s.UpsertDocument(ctx, Document{ID: "doc-b", WorkspaceID: "ws-b", ContentHash: "hb"}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-a", []Chunk{{ID: "ca", DocumentID: "doc-a", Content: "hybrid retrieval engine design"}}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-b", []Chunk{{ID: "cb", DocumentID: "doc-b", Content: "hybrid retrieval engine design"}}))

	results, err := s.SearchLexical(ctx, ScopeRef{Kind: ScopeWorkspace, ID: "ws-a"}, "hybrid retrieval", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ca", results[0].Chunk.ID)
}

func TestSQLiteStore_SearchLexical_RejectsEmptyQuery(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SearchLexical(context.Background(), ScopeRef{Kind: ScopeGlobal}, "   ", 10)
	assert.Error(t, err)
}

func TestSQLiteStore_SearchVector_RanksByCosineSimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureWorkspace(ctx, Workspace{ID: "ws-1", Name: "proj"}))
	require.NoError(t, s.UpsertDocument(ctx, Document{ID: "doc-1", WorkspaceID: "ws-1", ContentHash: "h1"}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []Chunk{
		{ID: "near", DocumentID: "doc-1", Content: "near"},
		{ID: "far", DocumentID: "doc-1", Content: "far"},
	}))
	require.NoError(t, s.SaveEmbeddings(ctx, []ChunkEmbedding{
		{ChunkID: "near", Model: "m1", Vector: []float32{1, 0, 0}},
		{ChunkID: "far", Model: "m1", Vector: []float32{0, 1, 0}},
	}))

	results, err := s.SearchVector(ctx, ScopeRef{Kind: ScopeWorkspace, ID: "ws-1"}, []float32{1, 0, 0}, "m1", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].Chunk.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSQLiteStore_SearchVector_DimensionMismatchErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureWorkspace(ctx, Workspace{ID: "ws-1", Name: "proj"}))
	require.NoError(t, s.UpsertDocument(ctx, Document{ID: "doc-1", WorkspaceID: "ws-1", ContentHash: "h1"}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []Chunk{{ID: "c1", DocumentID: "doc-1", Content: "x"}}))
	require.NoError(t, s.SaveEmbeddings(ctx, []ChunkEmbedding{{ChunkID: "c1", Model: "m1", Vector: []float32{1, 0, 0}}}))

	_, err := s.SearchVector(ctx, ScopeRef{Kind: ScopeWorkspace, ID: "ws-1"}, []float32{1, 0}, "m1", 10)
	assert.Error(t, err)
}

func TestSQLiteStore_SessionScope_OnlySeesSessionBoundDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureWorkspace(ctx, Workspace{ID: "ws-1", Name: "proj"}))
	require.NoError(t, s.UpsertDocument(ctx, Document{ID: "doc-1", WorkspaceID: "ws-1", ContentHash: "h1"}))
	require.NoError(t, s.UpsertDocument(ctx, Document{ID: "doc-2", WorkspaceID: "ws-1", ContentHash: "h2"}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []Chunk{{ID: "c1", DocumentID: "doc-1", Content: "session pasted content"}}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-2", []Chunk{{ID: "c2", DocumentID: "doc-2", Content: "session pasted content"}}))
	require.NoError(t, s.BindSession(ctx, "sess-1", "doc-1"))

	results, err := s.SearchLexical(ctx, ScopeRef{Kind: ScopeSession, ID: "sess-1"}, "pasted content", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)
}

func TestSQLiteStore_DeleteStaleSessionDocuments_RemovesOrphanedOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureWorkspace(ctx, Workspace{ID: "ws-1", Name: "proj"}))
	require.NoError(t, s.UpsertDocument(ctx, Document{ID: "doc-1", WorkspaceID: "ws-1", SourcePath: "/tmp/sess/upload.md", ContentHash: "h1", SessionOnly: true}))
	require.NoError(t, s.UpsertDocument(ctx, Document{ID: "doc-2", WorkspaceID: "ws-1", ContentHash: "h2", SessionOnly: false}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []Chunk{{ID: "c1", DocumentID: "doc-1", Content: "ephemeral session chatter"}}))
	require.NoError(t, s.BindSession(ctx, "sess-1", "doc-1"))
	require.NoError(t, s.BindSession(ctx, "sess-1", "doc-2"))

	cutoff := time.Now().Add(time.Hour)
	removed, err := s.DeleteStaleSessionDocuments(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "doc-1", removed[0].ID)
	assert.Equal(t, "/tmp/sess/upload.md", removed[0].SourcePath)

	gone, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	stillThere, err := s.GetDocument(ctx, "doc-2")
	require.NoError(t, err)
	assert.NotNil(t, stillThere)

	// The lexical rows went with the chunks.
	lex, err := s.SearchLexical(ctx, ScopeRef{Kind: ScopeWorkspace, ID: "ws-1"}, "ephemeral chatter", 10)
	require.NoError(t, err)
	assert.Empty(t, lex)
}

func TestSQLiteStore_ListRegistry_ReportsChunkCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureWorkspace(ctx, Workspace{ID: "ws-1", Name: "proj"}))
	require.NoError(t, s.UpsertDocument(ctx, Document{ID: "doc-1", WorkspaceID: "ws-1", SourcePath: "a.md", ContentHash: "h1"}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []Chunk{
		{ID: "c1", DocumentID: "doc-1"}, {ID: "c2", DocumentID: "doc-1"},
	}))

	entries, err := s.ListRegistry(ctx, ScopeRef{Kind: ScopeWorkspace, ID: "ws-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].ChunkCount)
}

func TestVectorBlob_RoundTrips(t *testing.T) {
	original := []float32{0.1, -0.2, 3.5, 0}
	blob := encodeVector(original)
	decoded, err := decodeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestVectorBlob_RejectsUnknownVersion(t *testing.T) {
	_, err := decodeVector([]byte{0xFF, 0xFF, 0, 0, 0, 0})
	assert.Error(t, err)
}
