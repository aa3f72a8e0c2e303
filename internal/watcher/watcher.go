// Package watcher reports batches of changes to Terraform sources.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChangeHandler is called with every debounced batch of changes.
type ChangeHandler func(ctx context.Context, events []Event)

// Config contains watcher configuration
type Config struct {
	// Poll compares directory snapshots every PollInterval instead of
	// subscribing to filesystem notifications.
	Poll         bool
	PollInterval time.Duration
	Debounce     time.Duration
	// Ignore lists directory names that are never descended into.
	Ignore []string
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		Debounce:     500 * time.Millisecond,
		Ignore:       []string{".terraform", ".git"},
	}
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher detects changes to .tf files and tfdoc.toml declarations under a
// set of directories. It uses fsnotify and falls back to polling when
// notifications are unavailable.
type Watcher struct {
	config  Config
	dirs    []string
	ignore  map[string]bool
	logger  *slog.Logger
	handler ChangeHandler

	fsw   *fsnotify.Watcher
	state map[string]fileState
}

// New creates a watcher over dirs.
func New(config Config, dirs []string, logger *slog.Logger, handler ChangeHandler) *Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	ignore := make(map[string]bool, len(config.Ignore))
	for _, name := range config.Ignore {
		ignore[name] = true
	}
	return &Watcher{
		config:  config,
		dirs:    dirs,
		ignore:  ignore,
		logger:  logger,
		handler: handler,
	}
}

// Watch blocks until ctx is cancelled. Changes seen within the debounce
// window are delivered to the handler as one batch, and the handler never
// runs concurrently with itself.
func (w *Watcher) Watch(ctx context.Context) error {
	if !w.config.Poll {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			return w.watchNotify(ctx, fsw)
		}
		w.logger.Warn("Filesystem notifications unavailable, polling instead", "error", err.Error())
	}
	return w.watchPoll(ctx)
}

// batcher debounces events and hands complete batches to the Watch loop.
type batcher struct {
	debouncer *BatchDebouncer
	batches   chan []Event
}

func newBatcher(ctx context.Context, delay time.Duration) *batcher {
	b := &batcher{batches: make(chan []Event, 1)}
	b.debouncer = NewBatchDebouncer(delay, func(events []Event) {
		select {
		case b.batches <- events:
		case <-ctx.Done():
		}
	})
	return b
}

func (w *Watcher) deliver(ctx context.Context, events []Event) {
	w.logger.Info("Changes detected", "events", len(events))
	w.handler(ctx, events)
}

func (w *Watcher) watchNotify(ctx context.Context, fsw *fsnotify.Watcher) error {
	w.fsw = fsw
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := w.addTree(dir); err != nil {
			return err
		}
	}
	w.logger.Info("Watching Terraform sources", "dirs", w.dirs, "mode", "notify")

	b := newBatcher(ctx, w.config.Debounce)
	defer b.debouncer.Cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher: event channel closed")
			}
			for _, e := range w.translate(ev, time.Now()) {
				w.logger.Debug("File changed", "type", e.Type.String(), "path", e.Path)
				b.debouncer.Add(e)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher: error channel closed")
			}
			w.logger.Warn("Filesystem notification error", "error", err.Error())
		case events := <-b.batches:
			w.deliver(ctx, events)
		}
	}
}

// translate maps one notification onto watcher events. A created directory
// is added to the watch, and the files already inside it are reported as
// created since they may predate the subscription.
func (w *Watcher) translate(ev fsnotify.Event, now time.Time) []Event {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.skipDir(filepath.Base(ev.Name)) {
				return nil
			}
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("Cannot watch new directory", "dir", ev.Name, "error", err.Error())
			}
			var events []Event
			for path := range w.scan(ev.Name) {
				events = append(events, Event{Type: EventCreate, Path: path, Timestamp: now})
			}
			sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
			return events
		}
	}

	if !watched(filepath.Base(ev.Name)) {
		return nil
	}
	switch {
	case ev.Has(fsnotify.Create):
		return []Event{{Type: EventCreate, Path: ev.Name, Timestamp: now}}
	case ev.Has(fsnotify.Write):
		return []Event{{Type: EventModify, Path: ev.Name, Timestamp: now}}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return []Event{{Type: EventDelete, Path: ev.Name, Timestamp: now}}
	default:
		return nil
	}
}

// addTree subscribes to dir and every directory below it that is not
// skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("Skipping inaccessible path", "path", path, "error", err.Error())
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watcher: add directory %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) watchPoll(ctx context.Context) error {
	w.state = w.snapshot()
	w.logger.Info("Watching Terraform sources",
		"dirs", w.dirs,
		"mode", "poll",
		"files", len(w.state),
		"interval", w.config.PollInterval.String(),
	)

	b := newBatcher(ctx, w.config.Debounce)
	defer b.debouncer.Cancel()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, ev := range w.poll() {
				w.logger.Debug("File changed", "type", ev.Type.String(), "path", ev.Path)
				b.debouncer.Add(ev)
			}
		case events := <-b.batches:
			w.deliver(ctx, events)
		}
	}
}

// poll takes a new snapshot and returns what changed since the last one.
func (w *Watcher) poll() []Event {
	next := w.snapshot()
	events := diff(w.state, next, time.Now())
	w.state = next
	return events
}

func (w *Watcher) snapshot() map[string]fileState {
	out := make(map[string]fileState)
	for _, dir := range w.dirs {
		for path, st := range w.scan(dir) {
			out[path] = st
		}
	}
	return out
}

// scan lists the watched files below dir.
func (w *Watcher) scan(dir string) map[string]fileState {
	out := make(map[string]fileState)
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !watched(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out[path] = fileState{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return out
}

func (w *Watcher) skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || w.ignore[name]
}

func watched(name string) bool {
	return filepath.Ext(name) == ".tf" || name == "tfdoc.toml"
}

// diff compares two snapshots. Events are sorted by path.
func diff(prev, next map[string]fileState, now time.Time) []Event {
	var events []Event
	for path, st := range next {
		old, ok := prev[path]
		switch {
		case !ok:
			events = append(events, Event{Type: EventCreate, Path: path, Timestamp: now})
		case !old.modTime.Equal(st.modTime) || old.size != st.size:
			events = append(events, Event{Type: EventModify, Path: path, Timestamp: now})
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			events = append(events, Event{Type: EventDelete, Path: path, Timestamp: now})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}
