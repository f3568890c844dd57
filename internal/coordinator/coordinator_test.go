package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexdesk/cortexrag/internal/config"
	"github.com/cortexdesk/cortexrag/internal/store"
)

func newTestCoordinator(t *testing.T) (*Coordinator, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.NewConfig()
	cfg.Watch.Enabled = false

	co, err := New(cfg, "ws-test", root, "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = co.Close() })
	return co, root
}

func TestCoordinator_IndexDocumentThenRetrieve(t *testing.T) {
	co, _ := newTestCoordinator(t)
	ctx := context.Background()

	res, err := co.IndexDocument(ctx, IndexDocumentRequest{
		WorkspaceID: "ws-test",
		SourcePath:  "alpha.md",
		Content:     "# Alpha\n\nThe quarterly refund window is thirty days for annual plans.",
		Title:       "Alpha",
	})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Greater(t, res.ChunkCount, 0)

	out, err := co.Retrieve(ctx, RetrieveRequest{
		UserMessage: "what is the refund window for annual plans?",
		WorkspaceID: "ws-test",
	})
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.True(t, out.Grounded)
	assert.Contains(t, out.ContextText, "Alpha")
}

func TestCoordinator_IndexDocumentDedupsByContentHash(t *testing.T) {
	co, _ := newTestCoordinator(t)
	ctx := context.Background()

	content := "# Doc\n\nsame content every time"
	first, err := co.IndexDocument(ctx, IndexDocumentRequest{WorkspaceID: "ws-test", SourcePath: "a.md", Content: content})
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	second, err := co.IndexDocument(ctx, IndexDocumentRequest{WorkspaceID: "ws-test", SourcePath: "a.md", Content: content})
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.DocumentID, second.DocumentID)
}

func TestCoordinator_EnqueueFileReadsFromDisk(t *testing.T) {
	co, root := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("# Note\n\nenqueued from disk"), 0o644))

	res, err := co.EnqueueFile(ctx, "note.md")
	require.NoError(t, err)
	assert.Greater(t, res.ChunkCount, 0)
}

func TestCoordinator_Rescan(t *testing.T) {
	co, root := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "one.md"), []byte("# One\n\nfirst doc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "two.md"), []byte("# Two\n\nsecond doc"), 0o644))

	res, err := co.Rescan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesFound)
	assert.Equal(t, 2, res.FilesIndexed)
	assert.Equal(t, 0, res.FilesFailed)
}

func TestCoordinator_ListRegistryAndCleanupStale(t *testing.T) {
	co, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := co.IndexDocument(ctx, IndexDocumentRequest{
		WorkspaceID: "ws-test",
		SourcePath:  "doc.md",
		Content:     "# Doc\n\nworkspace document",
	})
	require.NoError(t, err)

	entries, err := co.ListRegistry(ctx, ListRegistryRequest{Scope: store.ScopeRef{Kind: store.ScopeWorkspace, ID: "ws-test"}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.md", entries[0].SourcePath)

	result, err := co.CleanupStale(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RemovedCount)
}
