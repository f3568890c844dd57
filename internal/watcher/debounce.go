package watcher

import (
	"sync"
	"time"
)

// debouncer coalesces rapid events for the same path into one within a
// quiescence window: CREATE+MODIFY collapses to CREATE, CREATE+DELETE
// cancels out, MODIFY+DELETE collapses to DELETE, DELETE+CREATE becomes
// MODIFY (the file was replaced).
type debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	timer   *time.Timer
	output  chan []Event
	stopCh  chan struct{}
	stopped bool
}

type pendingEvent struct {
	event   Event
	firstOp Op
}

func newDebouncer(window time.Duration, outputCap int) *debouncer {
	return &debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []Event, outputCap),
		stopCh:  make(chan struct{}),
	}
}

// Add records ev, coalescing with any pending event for the same path,
// and (re)schedules a flush window/window-from-now.
func (d *debouncer) Add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if existing, ok := d.pending[ev.Path]; ok {
		coalesced := coalesce(existing, ev)
		if coalesced == nil {
			delete(d.pending, ev.Path)
		} else {
			existing.event = *coalesced
		}
	} else {
		d.pending[ev.Path] = &pendingEvent{event: ev, firstOp: ev.Op}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(existing *pendingEvent, next Event) *Event {
	switch existing.firstOp {
	case OpCreate:
		switch next.Op {
		case OpModify:
			return &existing.event
		case OpDelete:
			return nil
		default:
			return &next
		}
	case OpModify:
		return &next
	case OpDelete:
		if next.Op == OpCreate {
			replaced := next
			replaced.Op = OpModify
			return &replaced
		}
		return &next
	default:
		return &next
	}
}

// flush blocks until the batch is delivered, so a full output channel
// applies backpressure to the event source instead of dropping events.
func (d *debouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]Event, 0, len(d.pending))
	for _, pe := range d.pending {
		batch = append(batch, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)
	d.mu.Unlock()

	select {
	case d.output <- batch:
	case <-d.stopCh:
	}
}

// Output returns the channel debounced batches are delivered on.
func (d *debouncer) Output() <-chan []Event {
	return d.output
}

// Stop halts the pending timer and signals any in-flight flush to give
// up trying to deliver its batch. The output channel itself is never
// closed: a flush may be blocked mid-send when Stop is called, and
// closing a channel out from under a concurrent send would panic.
// Callers select on Output() alongside their own shutdown signal rather
// than ranging over it to completion.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.stopCh)
}
