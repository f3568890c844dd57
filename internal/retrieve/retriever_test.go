package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexdesk/cortexrag/internal/embed"
	"github.com/cortexdesk/cortexrag/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fakeEmbedder returns a fixed vector per input text, keyed by substring
// match, so hybrid-fusion tests can control which chunk "wins" the
// vector race independent of lexical ranking.
type fakeEmbedder struct {
	vectors map[string][]float32
	dims    int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, f.dims), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                  { return f.dims }
func (f *fakeEmbedder) ModelName() string                { return "fake" }
func (f *fakeEmbedder) Available(_ context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                     { return nil }

func TestRetrieve_EmptyCorpusIsNotGrounded(t *testing.T) {
	s := newTestStore(t)
	r := New(s, embed.NewUnavailableEmbedder(8, ""), nil, nil)

	res, err := r.Retrieve(context.Background(), "hello", nil, store.ScopeRef{Kind: store.ScopeGlobal}, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, res.Grounded)
	assert.Empty(t, res.ContextText)
	assert.Empty(t, res.Citations)
}

func TestRetrieve_LexicalOnlyPathProducesCitation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertDocument(ctx, store.Document{
		ID: "doc-1", WorkspaceID: store.GlobalWorkspaceID, Title: "alpha.md", ContentHash: "h1",
	}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []store.Chunk{
		{ID: "c1", DocumentID: "doc-1", Ordinal: 0, Heading: "Alpha", Content: "Beta gamma delta."},
	}))

	r := New(s, embed.NewUnavailableEmbedder(8, ""), nil, nil)
	res, err := r.Retrieve(ctx, "gamma", nil, store.ScopeRef{Kind: store.ScopeGlobal}, DefaultOptions())
	require.NoError(t, err)
	require.True(t, res.Grounded)
	require.Len(t, res.Chunks, 1)
	assert.Contains(t, res.ContextText, "[1] alpha.md | Alpha")
	require.Len(t, res.Citations, 1)
	assert.Equal(t, "doc-1", res.Citations[0].DocumentID)
	assert.Equal(t, "c1", res.Citations[0].ChunkID)
}

func TestRetrieve_HybridFusionOrdersByRRF(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertDocument(ctx, store.Document{ID: "doc-a", WorkspaceID: store.GlobalWorkspaceID, Title: "a.md", ContentHash: "ha"}))
	require.NoError(t, s.UpsertDocument(ctx, store.Document{ID: "doc-b", WorkspaceID: store.GlobalWorkspaceID, Title: "b.md", ContentHash: "hb"}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-a", []store.Chunk{{ID: "ca", DocumentID: "doc-a", Content: "the fox jumps over the fence"}}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-b", []store.Chunk{{ID: "cb", DocumentID: "doc-b", Content: "quick brown animal sighting"}}))
	require.NoError(t, s.SaveEmbeddings(ctx, []store.ChunkEmbedding{
		{ChunkID: "ca", Model: "fake", Vector: []float32{0, 1}},
		{ChunkID: "cb", Model: "fake", Vector: []float32{1, 0}},
	}))

	fe := &fakeEmbedder{dims: 2, vectors: map[string][]float32{"quick brown fox": {1, 0}}}
	r := New(s, fe, nil, nil)

	opts := DefaultOptions()
	opts.KLex, opts.KVec = 2, 2
	res, err := r.Retrieve(ctx, "quick brown fox", nil, store.ScopeRef{Kind: store.ScopeGlobal}, opts)
	require.NoError(t, err)
	require.True(t, res.Grounded)
	require.Len(t, res.Chunks, 2)
	// doc-b: lexical rank 1 (two of three query terms) AND vector rank 1
	// (identical vector) should out-rank doc-a, which is rank 2 in both
	// lists (one query term, orthogonal vector).
	assert.Equal(t, "cb", res.Chunks[0].ChunkID)
}

func TestRetrieve_ScopeLeak_SessionNeverSeesGlobalDoc(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertDocument(ctx, store.Document{ID: "doc-x", WorkspaceID: store.GlobalWorkspaceID, Title: "x.md", ContentHash: "hx"}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-x", []store.Chunk{{ID: "cx", DocumentID: "doc-x", Content: "shared topic shared topic shared"}}))

	require.NoError(t, s.UpsertDocument(ctx, store.Document{ID: "doc-y", WorkspaceID: store.GlobalWorkspaceID, Title: "y.md", ContentHash: "hy", SessionOnly: true}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-y", []store.Chunk{{ID: "cy", DocumentID: "doc-y", Content: "shared topic"}}))
	require.NoError(t, s.BindSession(ctx, "sess-1", "doc-y"))

	r := New(s, embed.NewUnavailableEmbedder(8, ""), nil, nil)
	res, err := r.Retrieve(ctx, "shared topic", nil, store.ScopeRef{Kind: store.ScopeSession, ID: "sess-1"}, DefaultOptions())
	require.NoError(t, err)
	require.True(t, res.Grounded)
	for _, c := range res.Chunks {
		assert.Equal(t, "doc-y", c.DocumentID)
	}
}

func TestRetrieve_RRFDeterminismAcrossRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertDocument(ctx, store.Document{ID: "doc-1", WorkspaceID: store.GlobalWorkspaceID, Title: "n.md", ContentHash: "h1"}))
	require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []store.Chunk{
		{ID: "c1", DocumentID: "doc-1", Ordinal: 0, Content: "alpha bravo charlie"},
		{ID: "c2", DocumentID: "doc-1", Ordinal: 1, Content: "alpha delta echo"},
	}))

	r := New(s, embed.NewUnavailableEmbedder(8, ""), nil, nil)
	first, err := r.Retrieve(ctx, "alpha", nil, store.ScopeRef{Kind: store.ScopeGlobal}, DefaultOptions())
	require.NoError(t, err)
	second, err := r.Retrieve(ctx, "alpha", nil, store.ScopeRef{Kind: store.ScopeGlobal}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first.ContextText, second.ContextText)
}
