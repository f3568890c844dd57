package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexdesk/cortexrag/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCleanup_RunNowRemovesOnlyStaleSessionDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDocument(ctx, store.Document{ID: "stale", WorkspaceID: store.GlobalWorkspaceID, ContentHash: "h1", SessionOnly: true}))
	require.NoError(t, s.UpsertDocument(ctx, store.Document{ID: "durable", WorkspaceID: store.GlobalWorkspaceID, ContentHash: "h2", SessionOnly: false}))
	require.NoError(t, s.BindSession(ctx, "sess-1", "stale"))
	require.NoError(t, s.BindSession(ctx, "sess-1", "durable"))

	svc := New(s, "", time.Hour, 24*time.Hour, nil)
	n, err := svc.RunNow(ctx, 0)
	require.NoError(t, err)
	// Both bindings are younger than the hour-long retention window at
	// the moment of the test, so nothing is stale yet.
	assert.Equal(t, 0, n)

	gone, err := s.GetDocument(ctx, "stale")
	require.NoError(t, err)
	assert.NotNil(t, gone)

	n, err = svc.RunNow(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	goneNow, err := s.GetDocument(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, goneNow)

	stillThere, err := s.GetDocument(ctx, "durable")
	require.NoError(t, err)
	assert.NotNil(t, stillThere)
}

func TestCleanup_DeletesSourceFilesOnlyInsideSessionTempDir(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tempDir := t.TempDir()
	hostDir := t.TempDir()
	tempFile := filepath.Join(tempDir, "upload.md")
	hostFile := filepath.Join(hostDir, "host-owned.md")
	require.NoError(t, os.WriteFile(tempFile, []byte("# upload"), 0o644))
	require.NoError(t, os.WriteFile(hostFile, []byte("# host"), 0o644))

	require.NoError(t, s.UpsertDocument(ctx, store.Document{ID: "parked", WorkspaceID: store.GlobalWorkspaceID, SourcePath: tempFile, ContentHash: "h1", SessionOnly: true}))
	require.NoError(t, s.UpsertDocument(ctx, store.Document{ID: "hosted", WorkspaceID: store.GlobalWorkspaceID, SourcePath: hostFile, ContentHash: "h2", SessionOnly: true}))
	require.NoError(t, s.BindSession(ctx, "sess-1", "parked"))
	require.NoError(t, s.BindSession(ctx, "sess-1", "hosted"))

	svc := New(s, tempDir, time.Hour, 24*time.Hour, nil)
	n, err := svc.RunNow(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = os.Stat(tempFile)
	assert.True(t, os.IsNotExist(err), "parked session upload should be deleted")

	_, err = os.Stat(hostFile)
	assert.NoError(t, err, "file outside the session temp dir must be left alone")
}

func TestCleanup_StartStopIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	svc := New(s, "", time.Hour, time.Millisecond, nil)
	svc.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	svc.Stop()
	svc.Stop() // must not panic or deadlock
}
