// Package cleanup implements the stale-session-document pruning
// service: a periodic timer plus an on-demand trigger that expires
// session bindings older than the retention window and deletes the
// session-only documents left with no binding. Documents not flagged
// session-only are never deleted.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cortexdesk/cortexrag/internal/store"
)

// Event is emitted after each timer-driven run, on the Events channel, so
// a caller (the coordinator, a CLI command) can report a removal count
// without polling. RunNow returns its count directly and emits no Event.
type Event struct {
	RemovedCount int
	RanAt        time.Time
	Err          error
}

// Service owns the periodic cleanup timer.
type Service struct {
	store           store.MetadataStore
	sessionTempDir  string
	retentionWindow time.Duration
	interval        time.Duration
	log             *slog.Logger

	events chan Event

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New builds a cleanup Service. retentionWindow and interval are
// independent settings: retentionWindow bounds document age, interval
// bounds how often the timer fires. sessionTempDir is the directory the
// engine parks session-upload files in; a removed document's source
// file is deleted only when it lives under that directory (files
// anywhere else belong to the host). Empty disables file deletion.
func New(st store.MetadataStore, sessionTempDir string, retentionWindow, interval time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if retentionWindow <= 0 {
		retentionWindow = 7 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Service{
		store:           st,
		sessionTempDir:  sessionTempDir,
		retentionWindow: retentionWindow,
		interval:        interval,
		log:             log,
		events:          make(chan Event, 8),
	}
}

// Events returns the channel of completed-run notifications.
func (s *Service) Events() <-chan Event {
	return s.events
}

// Start begins the periodic timer. Safe to call once; a second call is
// a no-op, also after Stop (a stopped Service is not restarted).
func (s *Service) Start(ctx context.Context) {
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(s.ctx)
			}
		}
	}()
}

// Stop halts the timer and waits for any in-flight run to finish. Safe
// to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

// RunNow triggers an on-demand cleanup pass, bypassing the timer, and
// returns the number of documents removed. overrideRetention, if
// nonzero, replaces the configured retention window for this call only;
// a negative value is legal and simply treats even fresh bindings as
// stale, useful for tests and for an operator forcing a full sweep.
func (s *Service) RunNow(ctx context.Context, overrideRetention time.Duration) (int, error) {
	retention := s.retentionWindow
	if overrideRetention != 0 {
		retention = overrideRetention
	}
	return s.runWithRetention(ctx, retention)
}

func (s *Service) runOnce(ctx context.Context) {
	n, err := s.runWithRetention(ctx, s.retentionWindow)
	select {
	case s.events <- Event{RemovedCount: n, RanAt: time.Now(), Err: err}:
	default:
		s.log.Warn("cleanup event channel full, dropping notification")
	}
}

func (s *Service) runWithRetention(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	removed, err := s.store.DeleteStaleSessionDocuments(ctx, cutoff)
	if err != nil {
		s.log.Error("cleanup_run_failed", slog.String("error", err.Error()))
		return 0, err
	}

	for _, d := range removed {
		if !s.inSessionTempDir(d.SourcePath) {
			continue
		}
		if err := os.Remove(d.SourcePath); err != nil && !os.IsNotExist(err) {
			s.log.Warn("cleanup_source_file_delete_failed",
				slog.String("path", d.SourcePath), slog.String("error", err.Error()))
		}
	}

	if len(removed) > 0 {
		s.log.Info("cleanup_run_complete", slog.Int("removed", len(removed)), slog.Time("cutoff", cutoff))
	}
	return len(removed), nil
}

// inSessionTempDir reports whether path lies under the configured
// session temp directory. Relative paths never qualify: session uploads
// are recorded with the absolute path the engine parked them at.
func (s *Service) inSessionTempDir(path string) bool {
	if s.sessionTempDir == "" || path == "" || !filepath.IsAbs(path) {
		return false
	}
	rel, err := filepath.Rel(s.sessionTempDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
