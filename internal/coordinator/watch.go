package coordinator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cortexdesk/cortexrag/internal/index"
	"github.com/cortexdesk/cortexrag/internal/watcher"
)

// maxRetryAttempts bounds how many times a failed watch-triggered
// indexing job is retried before it's logged as permanently failed and
// dropped, per the watcher's bounded-retry contract.
const maxRetryAttempts = 3

// StartWatching begins live filesystem watching of the workspace root
// and launches the goroutine that turns debounced batches of events
// into indexing jobs. Call Close to stop it.
func (c *Coordinator) StartWatching(ctx context.Context) error {
	if !c.cfg.Watch.Enabled {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.watchWG.Add(1)
	go func() {
		defer c.watchWG.Done()
		if err := c.wtc.Start(ctx, c.workspaceRoot); err != nil && err != context.Canceled {
			c.log.Error("watcher_stopped", slog.String("error", err.Error()))
		}
	}()

	c.watchWG.Add(1)
	go c.consumeWatchEvents(ctx)

	c.cleaner.Start(ctx)

	return nil
}

func (c *Coordinator) consumeWatchEvents(ctx context.Context) {
	defer c.watchWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-c.wtc.Events():
			if !ok {
				return
			}
			c.handleEventBatch(ctx, batch)
		case err, ok := <-c.wtc.Errors():
			if !ok {
				continue
			}
			c.log.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

func (c *Coordinator) handleEventBatch(ctx context.Context, batch []watcher.Event) {
	for _, ev := range batch {
		if ev.IsDir {
			continue
		}
		switch ev.Op {
		case watcher.OpDelete:
			c.clearRetries(ev.Path)
			continue
		default:
			c.submitWithRetry(ctx, ev.Path, 0)
		}
	}
}

// submitWithRetry indexes path, and on failure reschedules itself after
// an exponential backoff (1s, 2s, 4s) up to maxRetryAttempts, matching
// the watcher's registry-driven retry contract. Retry counts live only
// for the Coordinator's process lifetime: an interrupted job is just a
// file the next watch event or rescan sees again, so nothing needs to
// survive a restart.
func (c *Coordinator) submitWithRetry(ctx context.Context, path string, attempt int) {
	content, err := os.ReadFile(filepath.Join(c.workspaceRoot, path))
	if err != nil {
		// The file may have been removed between the event firing and
		// this read; nothing to index.
		return
	}

	job := index.Job{
		WorkspaceID: c.workspaceID,
		SourcePath:  path,
		Content:     string(content),
		Title:       filepath.Base(path),
	}
	result := c.pool.IndexBatch(ctx, []index.Job{job})[0]
	if result.Err == nil {
		c.clearRetries(path)
		return
	}

	c.mu.Lock()
	c.retries[path] = attempt + 1
	count := c.retries[path]
	c.mu.Unlock()

	if count > maxRetryAttempts {
		c.log.Error("watch_index_failed_permanently",
			slog.String("path", path), slog.Int("attempts", count), slog.String("error", result.Err.Error()))
		c.clearRetries(path)
		return
	}

	backoff := time.Duration(1<<uint(count-1)) * time.Second
	c.log.Warn("watch_index_retry_scheduled",
		slog.String("path", path), slog.Int("attempt", count), slog.Duration("backoff", backoff),
		slog.String("error", result.Err.Error()))

	c.watchWG.Add(1)
	time.AfterFunc(backoff, func() {
		defer c.watchWG.Done()
		if ctx.Err() != nil {
			return
		}
		c.submitWithRetry(ctx, path, count)
	})
}

func (c *Coordinator) clearRetries(path string) {
	c.mu.Lock()
	delete(c.retries, path)
	c.mu.Unlock()
}
