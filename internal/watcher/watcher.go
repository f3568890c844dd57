package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a directory for changes, classifies and filters each
// raw event, and feeds the survivors into a debouncer before handing
// quiescent batches to the caller. It prefers fsnotify and falls back
// to polling when fsnotify can't be constructed (e.g. inotify watch
// limits exhausted).
type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	useFsnotify bool

	debouncer *debouncer
	exclude   *excludeMatcher
	opts      Options
	log       *slog.Logger

	rootPath string
	errors   chan error
	stopCh   chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// New constructs a Watcher. Falling back to polling is not itself an
// error; it only surfaces if a caller wants to know which mode is in
// effect via Mode().
func New(opts Options, log *slog.Logger) *Watcher {
	opts = opts.WithDefaults()
	if log == nil {
		log = slog.Default()
	}

	w := &Watcher{
		debouncer: newDebouncer(opts.DebounceWindow, opts.QueueCapacity),
		exclude:   newExcludeMatcher(opts.ExcludeGlobs),
		opts:      opts,
		log:       log,
		errors:    make(chan error, 16),
		stopCh:    make(chan struct{}),
	}

	if fsw, err := fsnotify.NewWatcher(); err == nil {
		w.fsWatcher = fsw
		w.useFsnotify = true
	} else {
		w.log.Warn("fsnotify unavailable, falling back to polling", "error", err)
	}

	return w
}

// Mode reports "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// Start begins watching root. It blocks until ctx is cancelled or Stop
// is called, and should be run in its own goroutine.
func (w *Watcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.rootPath = absRoot

	if w.useFsnotify {
		return w.runFsnotify(ctx)
	}
	return w.runPolling(ctx)
}

func (w *Watcher) runFsnotify(ctx context.Context) error {
	if err := w.addRecursive(w.rootPath); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if rel != "." && w.exclude.Match(rel) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) handleFsnotifyEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.rootPath, ev.Name)
	if err != nil {
		rel = ev.Name
	}

	isDir := false
	if info, statErr := os.Stat(ev.Name); statErr == nil {
		isDir = info.IsDir()
	}

	if w.exclude.Match(rel) {
		return
	}

	var op Op
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			_ = w.fsWatcher.Add(ev.Name)
		}
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(Event{Path: rel, Op: op, IsDir: isDir, Timestamp: time.Now()})
}

// runPolling is the fallback path when fsnotify can't be constructed.
// It walks the tree on a fixed interval and diffs file size/mtime
// against the previous scan.
func (w *Watcher) runPolling(ctx context.Context) error {
	prev, err := w.snapshot()
	if err != nil {
		return fmt.Errorf("initial poll scan: %w", err)
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			cur, err := w.snapshot()
			if err != nil {
				w.emitError(err)
				continue
			}
			w.diffSnapshots(prev, cur)
			prev = cur
		}
	}
}

type fileStat struct {
	modTime time.Time
	size    int64
	isDir   bool
}

func (w *Watcher) snapshot() (map[string]fileStat, error) {
	out := make(map[string]fileStat)
	err := filepath.WalkDir(w.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(w.rootPath, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if w.exclude.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out[rel] = fileStat{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
		return nil
	})
	return out, err
}

func (w *Watcher) diffSnapshots(prev, cur map[string]fileStat) {
	for rel, st := range cur {
		old, existed := prev[rel]
		switch {
		case !existed:
			w.debouncer.Add(Event{Path: rel, Op: OpCreate, IsDir: st.isDir, Timestamp: time.Now()})
		case old.modTime != st.modTime || old.size != st.size:
			w.debouncer.Add(Event{Path: rel, Op: OpModify, IsDir: st.isDir, Timestamp: time.Now()})
		}
	}
	for rel, old := range prev {
		if _, stillThere := cur[rel]; !stillThere {
			w.debouncer.Add(Event{Path: rel, Op: OpDelete, IsDir: old.isDir, Timestamp: time.Now()})
		}
	}
}

// Rescan walks root once and returns every non-excluded file path
// (relative to root), applying the same exclusion rules as the live
// watch. It does not touch the debouncer; the caller drives
// hashing/dedup against the registry directly, same as the watcher's
// own incremental path.
func (w *Watcher) Rescan(_ context.Context, root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve rescan root: %w", err)
	}

	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if w.exclude.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rescan root: %w", err)
	}
	return paths, nil
}

// Events returns the channel of debounced event batches.
func (w *Watcher) Events() <-chan []Event {
	return w.debouncer.Output()
}

// Errors returns the channel of non-fatal watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
		w.log.Warn("error channel full, dropping watch error", "error", err)
	}
}

// Stop halts watching and releases the underlying fsnotify watcher.
// Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	w.debouncer.Stop()

	if w.useFsnotify && w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}
