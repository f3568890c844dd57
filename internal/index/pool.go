package index

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// MaxConcurrentJobs bounds how many documents the pool embeds and
// persists at once, keeping the embedding provider and the single-writer
// SQLite connection from being overwhelmed by a large batch.
const MaxConcurrentJobs = 5

// Pool runs a batch of Jobs through an Indexer with bounded concurrency.
type Pool struct {
	indexer *Indexer
}

// NewPool builds a Pool around indexer.
func NewPool(indexer *Indexer) *Pool {
	return &Pool{indexer: indexer}
}

// IndexBatch indexes jobs concurrently, up to MaxConcurrentJobs at a
// time, smallest documents first so a handful of large files don't hold
// up the whole batch behind them. Results preserve no particular order
// relative to jobs; each Result's SourcePath identifies which job it's
// for. A per-job error is captured on its Result rather than aborting
// the batch.
func (p *Pool) IndexBatch(ctx context.Context, jobs []Job) []Result {
	ordered := make([]Job, len(jobs))
	copy(ordered, jobs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Content) < len(ordered[j].Content)
	})

	results := make([]Result, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentJobs)

	for i, job := range ordered {
		i, job := i, job
		g.Go(func() error {
			results[i] = p.indexer.IndexDocument(gctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
