package watcher

import (
	"sync"
	"time"
)

// BatchDebouncer collects events and emits them as one batch once no new
// event arrived for the delay. Events for the same path are merged.
type BatchDebouncer struct {
	delay  time.Duration
	timer  *time.Timer
	mu     sync.Mutex
	order  []string
	events map[string]Event
	emit   func([]Event)
}

// NewBatchDebouncer creates a new batch debouncer
func NewBatchDebouncer(delay time.Duration, emit func([]Event)) *BatchDebouncer {
	return &BatchDebouncer{
		delay:  delay,
		events: make(map[string]Event),
		emit:   emit,
	}
}

// Add adds an event to the batch and restarts the quiet period.
func (b *BatchDebouncer) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.events[event.Path]; ok {
		merged, keep := merge(prev, event)
		if keep {
			b.events[event.Path] = merged
		} else {
			delete(b.events, event.Path)
		}
	} else {
		b.order = append(b.order, event.Path)
		b.events[event.Path] = event
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.flush)
}

// merge folds next into prev. A file created and deleted inside one batch
// disappears from it.
func merge(prev, next Event) (Event, bool) {
	switch {
	case prev.Type == EventCreate && next.Type == EventDelete:
		return Event{}, false
	case prev.Type == EventCreate:
		next.Type = EventCreate
	case prev.Type == EventDelete && next.Type == EventCreate:
		next.Type = EventModify
	}
	return next, true
}

// flush emits collected events
func (b *BatchDebouncer) flush() {
	b.mu.Lock()
	events := make([]Event, 0, len(b.events))
	for _, path := range b.order {
		if ev, ok := b.events[path]; ok {
			events = append(events, ev)
			delete(b.events, path)
		}
	}
	b.order = nil
	b.events = make(map[string]Event)
	b.timer = nil
	b.mu.Unlock()

	if len(events) > 0 && b.emit != nil {
		b.emit(events)
	}
}

// Cancel cancels any pending emission
func (b *BatchDebouncer) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.order = nil
	b.events = make(map[string]Event)
}

// Flush immediately emits any pending events
func (b *BatchDebouncer) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	b.flush()
}

// EventCount returns the number of pending events
func (b *BatchDebouncer) EventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
