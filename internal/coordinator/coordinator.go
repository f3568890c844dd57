package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cortexdesk/cortexrag/internal/chunk"
	"github.com/cortexdesk/cortexrag/internal/cleanup"
	"github.com/cortexdesk/cortexrag/internal/config"
	"github.com/cortexdesk/cortexrag/internal/cortexerr"
	"github.com/cortexdesk/cortexrag/internal/decision"
	"github.com/cortexdesk/cortexrag/internal/embed"
	"github.com/cortexdesk/cortexrag/internal/index"
	"github.com/cortexdesk/cortexrag/internal/retrieve"
	"github.com/cortexdesk/cortexrag/internal/store"
	"github.com/cortexdesk/cortexrag/internal/watcher"
)

// Coordinator wires every component into a single construct-once,
// close-once unit. Its methods are the engine's only public surface;
// cmd/cortexrag and the MCP adapter both drive the engine exclusively
// through a Coordinator.
type Coordinator struct {
	cfg *config.Config
	log *slog.Logger

	store    store.MetadataStore
	embedder embed.Embedder
	chunker  chunk.Chunker
	pool     *index.Pool
	wtc      *watcher.Watcher
	retr     *retrieve.Retriever
	graph    *decision.Graph
	cleaner  *cleanup.Service

	workspaceID   string
	workspaceRoot string

	mu      sync.Mutex
	retries map[string]int
	watchWG sync.WaitGroup
	cancel  context.CancelFunc
}

// New constructs every component described by cfg and returns a ready
// Coordinator. workspaceRoot is the directory this instance watches and
// indexes; workspaceID identifies it in the store (the caller chooses
// this, typically derived from workspaceRoot).
func New(cfg *config.Config, workspaceID, workspaceRoot, dbPath string, log *slog.Logger) (*Coordinator, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	embedder, err := embed.New(cfg.Embeddings)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	chunker := chunk.NewMarkdownChunker(chunk.MarkdownChunkerOptions{
		ChunkSizeChars: cfg.Chunking.ChunkSizeChars,
		OverlapChars:   cfg.Chunking.OverlapChars,
	})

	caches := index.NewCaches(cfg.Embeddings.CacheSize)
	indexer := index.New(st, chunker, embedder, caches, log)
	pool := index.NewPool(indexer)

	retriever := retrieve.New(st, embedder, nil, log)
	graph := decision.New(retriever, nil, log)

	retention := time.Duration(cfg.Cleanup.RetentionDays) * 24 * time.Hour
	interval, perr := time.ParseDuration(cfg.Cleanup.CleanupInterval)
	if perr != nil {
		interval = 24 * time.Hour
	}
	// Session uploads the engine parks itself live next to the database;
	// cleanup may delete those files along with their document rows. An
	// in-memory database has no data directory and so no owned files.
	sessionTempDir := ""
	if dbPath != "" {
		sessionTempDir = filepath.Join(filepath.Dir(dbPath), "session_tmp")
	}
	cleaner := cleanup.New(st, sessionTempDir, retention, interval, log)

	watchOpts := watcher.Options{
		DebounceWindow: time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond,
		QueueCapacity:  cfg.Watch.QueueCapacity,
		PollFallback:   cfg.Watch.PollFallback,
		PollInterval:   time.Duration(cfg.Watch.PollIntervalSecs) * time.Second,
		ExcludeGlobs:   cfg.Watch.ExcludeGlobs,
	}
	wtc := watcher.New(watchOpts, log)

	if err := st.EnsureWorkspace(context.Background(), store.Workspace{
		ID:        workspaceID,
		Name:      workspaceID,
		RootPath:  workspaceRoot,
		CreatedAt: time.Now(),
	}); err != nil {
		_ = st.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}

	return &Coordinator{
		cfg:           cfg,
		log:           log,
		store:         st,
		embedder:      embedder,
		chunker:       chunker,
		pool:          pool,
		wtc:           wtc,
		retr:          retriever,
		graph:         graph,
		cleaner:       cleaner,
		workspaceID:   workspaceID,
		workspaceRoot: workspaceRoot,
		retries:       make(map[string]int),
	}, nil
}

// Close tears down every owned component regardless of whether any
// individual Close call fails, collecting and returning the first
// error encountered.
func (c *Coordinator) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	// A pending retry timer checks ctx.Err() as soon as it fires and
	// returns immediately once cancelled, so this wait is bounded by the
	// longest outstanding backoff (at most 4s) rather than blocking
	// indefinitely.
	c.watchWG.Wait()

	c.cleaner.Stop()
	_ = c.wtc.Stop()

	var firstErr error
	if err := c.embedder.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close embedder: %w", err)
	}
	if err := c.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}
	return firstErr
}

// IndexDocument runs req through the indexing pipeline synchronously
// and returns the outcome. This is the direct, non-watched path a CLI
// "index" command or an explicit paste-into-session action uses.
func (c *Coordinator) IndexDocument(ctx context.Context, req IndexDocumentRequest) (*IndexDocumentResult, error) {
	job := index.Job{
		WorkspaceID: req.WorkspaceID,
		SourcePath:  req.SourcePath,
		Content:     req.Content,
		Title:       req.Title,
		SessionID:   req.SessionID,
		SessionOnly: req.SessionOnly,
	}
	results := c.pool.IndexBatch(ctx, []index.Job{job})
	res := results[0]
	if res.Err != nil {
		return nil, fmt.Errorf("index document %s: %w", req.SourcePath, res.Err)
	}
	return &IndexDocumentResult{
		DocumentID: res.DocumentID,
		ChunkCount: res.ChunkCount,
		Skipped:    res.Skipped,
		Duration:   res.Duration,
	}, nil
}

// Retrieve runs the decision subgraph for req and returns its Output.
func (c *Coordinator) Retrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResult, error) {
	state := decision.State{
		UserMessage:      req.UserMessage,
		ConversationMode: req.ConversationMode,
		HasSessionPDF:    req.HasSessionPDF,
		WorkspaceID:      req.WorkspaceID,
		SessionID:        req.SessionID,
		Settings:         c.cfg.Snapshot(),
	}
	return c.graph.Run(ctx, state)
}

// ListRegistry reports the indexing state of documents visible under
// req.Scope.
func (c *Coordinator) ListRegistry(ctx context.Context, req ListRegistryRequest) ([]store.RegistryEntry, error) {
	return c.store.ListRegistry(ctx, req.Scope)
}

// CleanupStale triggers an on-demand cleanup pass. overrideRetention, if
// nonzero, replaces the configured retention window for this call only.
func (c *Coordinator) CleanupStale(ctx context.Context, overrideRetention time.Duration) (*CleanupResult, error) {
	n, err := c.cleaner.RunNow(ctx, overrideRetention)
	if err != nil {
		return nil, err
	}
	return &CleanupResult{RemovedCount: n, RanAt: time.Now()}, nil
}

// EnqueueFile reads path from disk and submits it as a single indexing
// job, the same pipeline the watcher uses for a live filesystem event.
func (c *Coordinator) EnqueueFile(ctx context.Context, relPath string) (*IndexDocumentResult, error) {
	absPath := filepath.Join(c.workspaceRoot, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, cortexerr.New(cortexerr.CodePathInvalid, fmt.Sprintf("read %s: %v", relPath, err))
	}
	return c.IndexDocument(ctx, IndexDocumentRequest{
		WorkspaceID: c.workspaceID,
		SourcePath:  relPath,
		Content:     string(content),
		Title:       filepath.Base(relPath),
	})
}

// Rescan walks the workspace root once, submitting every non-excluded
// file as a job. Hash-based dedup inside the indexer means an unchanged
// file costs a cheap lookup rather than a full re-chunk/re-embed.
func (c *Coordinator) Rescan(ctx context.Context) (*RescanResult, error) {
	start := time.Now()
	paths, err := c.wtc.Rescan(ctx, c.workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("rescan: %w", err)
	}

	jobs := make([]index.Job, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(filepath.Join(c.workspaceRoot, p))
		if err != nil {
			c.log.Warn("rescan_read_failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		jobs = append(jobs, index.Job{
			WorkspaceID: c.workspaceID,
			SourcePath:  p,
			Content:     string(content),
			Title:       filepath.Base(p),
		})
	}

	results := c.pool.IndexBatch(ctx, jobs)
	res := &RescanResult{FilesFound: len(paths)}
	for _, r := range results {
		switch {
		case r.Err != nil:
			res.FilesFailed++
		case r.Skipped:
			res.FilesSkipped++
		default:
			res.FilesIndexed++
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}
