package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectBatch(t *testing.T, d *debouncer) []Event {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_CoalescesCreateThenModifyIntoCreate(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.Stop()

	d.Add(Event{Path: "a.md", Op: OpCreate})
	d.Add(Event{Path: "a.md", Op: OpModify})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Op)
}

func TestDebouncer_CreateThenDeleteCancelsOut(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.Stop()

	d.Add(Event{Path: "a.md", Op: OpCreate})
	d.Add(Event{Path: "a.md", Op: OpDelete})
	d.Add(Event{Path: "b.md", Op: OpModify})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "b.md", batch[0].Path)
}

func TestDebouncer_DeleteThenCreateBecomesModify(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.Stop()

	d.Add(Event{Path: "a.md", Op: OpDelete})
	d.Add(Event{Path: "a.md", Op: OpCreate})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Op)
}

func TestDebouncer_BurstForDistinctPathsDeliversOneBatch(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.Stop()

	d.Add(Event{Path: "a.md", Op: OpCreate})
	d.Add(Event{Path: "b.md", Op: OpCreate})
	d.Add(Event{Path: "c.md", Op: OpCreate})

	batch := collectBatch(t, d)
	assert.Len(t, batch, 3)
}

func TestWatcher_RescanListsFilesAndHonorsExcludes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.md"), []byte("# hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "guide.md"), []byte("# guide"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "pkg", "index.js"), []byte("x"), 0o644))

	w := New(Options{ExcludeGlobs: []string{"**/node_modules/**"}}, nil)
	defer func() { _ = w.Stop() }()

	paths, err := w.Rescan(context.Background(), root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"readme.md", filepath.Join("docs", "guide.md")}, paths)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New(Options{}, nil)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
