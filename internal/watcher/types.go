// Package watcher observes a directory for file changes, debounces the
// resulting bursts of events, and delivers a quiescent batch of
// candidate paths to the caller through a bounded queue. Producers
// block when the queue is full rather than dropping events, so a large
// bulk import throttles instead of losing files.
package watcher

import "time"

// Op identifies the kind of filesystem change an Event represents.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
	OpRename
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is a single filesystem change, already relative to the watched
// root and filtered against the configured exclude globs.
type Event struct {
	Path      string
	Op        Op
	IsDir     bool
	Timestamp time.Time
}

// Options configures a Watcher. Zero values are replaced by
// WithDefaults.
type Options struct {
	DebounceWindow time.Duration
	QueueCapacity  int
	PollFallback   bool
	PollInterval   time.Duration
	ExcludeGlobs   []string
}

// DefaultOptions mirrors the engine's default WatchConfig.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 500 * time.Millisecond,
		QueueCapacity:  1000,
		PollFallback:   true,
		PollInterval:   5 * time.Second,
	}
}

// WithDefaults fills zero fields with DefaultOptions' values.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = d.QueueCapacity
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	return o
}
