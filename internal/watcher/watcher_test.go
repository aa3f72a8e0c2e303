package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventCreate, "create"},
		{EventModify, "modify"},
		{EventDelete, "delete"},
		{EventType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want 1s", config.PollInterval)
	}
	if config.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v, want 500ms", config.Debounce)
	}
	if len(config.Ignore) != 2 {
		t.Errorf("Ignore = %v", config.Ignore)
	}
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.tf"), "variable \"a\" {}\n")
	writeFile(t, filepath.Join(dir, "tfdoc.toml"), "markup = \"md\"\n")
	writeFile(t, filepath.Join(dir, "README.md"), "not watched\n")
	writeFile(t, filepath.Join(dir, "modules", "net", "main.tf"), "")
	writeFile(t, filepath.Join(dir, ".terraform", "modules", "x.tf"), "")
	writeFile(t, filepath.Join(dir, "vendor", "y.tf"), "")

	cfg := DefaultConfig()
	cfg.Ignore = append(cfg.Ignore, "vendor")
	w := New(cfg, []string{dir}, quietLogger(), nil)

	snap := w.snapshot()
	for _, rel := range []string{"main.tf", "tfdoc.toml", filepath.Join("modules", "net", "main.tf")} {
		if _, ok := snap[filepath.Join(dir, rel)]; !ok {
			t.Errorf("snapshot missing %s", rel)
		}
	}
	if len(snap) != 3 {
		t.Errorf("snapshot has %d files, want 3: %v", len(snap), snap)
	}
}

func TestDiff(t *testing.T) {
	t0 := time.Unix(1000, 0)
	t1 := time.Unix(2000, 0)
	prev := map[string]fileState{
		"a.tf": {modTime: t0, size: 1},
		"b.tf": {modTime: t0, size: 1},
		"c.tf": {modTime: t0, size: 1},
		"d.tf": {modTime: t0, size: 1},
	}
	next := map[string]fileState{
		"a.tf": {modTime: t0, size: 1},
		"b.tf": {modTime: t1, size: 1},
		"c.tf": {modTime: t0, size: 2},
		"e.tf": {modTime: t1, size: 1},
	}

	events := diff(prev, next, t1)
	want := []struct {
		path string
		typ  EventType
	}{
		{"b.tf", EventModify},
		{"c.tf", EventModify},
		{"d.tf", EventDelete},
		{"e.tf", EventCreate},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v", events)
	}
	for i, w := range want {
		if events[i].Path != w.path || events[i].Type != w.typ {
			t.Errorf("events[%d] = %s %s, want %s %s", i, events[i].Type, events[i].Path, w.typ, w.path)
		}
	}
}

func TestWatcherPoll(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.tf")
	writeFile(t, main, "variable \"a\" {}\n")

	w := New(DefaultConfig(), []string{dir}, quietLogger(), nil)
	w.state = w.snapshot()

	if events := w.poll(); len(events) != 0 {
		t.Errorf("unchanged tree produced %+v", events)
	}

	writeFile(t, main, "variable \"a\" {}\nvariable \"b\" {}\n")
	extra := filepath.Join(dir, "extra.tf")
	writeFile(t, extra, "")

	events := w.poll()
	if len(events) != 2 || events[0].Path != extra || events[0].Type != EventCreate ||
		events[1].Path != main || events[1].Type != EventModify {
		t.Errorf("events = %+v", events)
	}

	if err := os.Remove(extra); err != nil {
		t.Fatal(err)
	}
	events = w.poll()
	if len(events) != 1 || events[0].Type != EventDelete {
		t.Errorf("events after delete = %+v", events)
	}
}

func TestWatcherWatch(t *testing.T) {
	for _, poll := range []bool{false, true} {
		name := "notify"
		if poll {
			name = "poll"
		}
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "main.tf"), "")

			batches := make(chan []Event, 16)
			handler := func(_ context.Context, events []Event) {
				select {
				case batches <- events:
				default:
				}
			}

			cfg := Config{Poll: poll, PollInterval: 10 * time.Millisecond, Debounce: 30 * time.Millisecond}
			w := New(cfg, []string{dir}, quietLogger(), handler)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- w.Watch(ctx) }()

			// Let the subscription or initial snapshot happen first.
			time.Sleep(50 * time.Millisecond)

			top := filepath.Join(dir, "new.tf")
			writeFile(t, top, "variable \"x\" {}\n")
			waitForPath(t, batches, top)

			nested := filepath.Join(dir, "modules", "net", "main.tf")
			writeFile(t, nested, "variable \"y\" {}\n")
			waitForPath(t, batches, nested)

			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned %v", err)
			}
		})
	}
}

func waitForPath(t *testing.T, batches <-chan []Event, path string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case events := <-batches:
			for _, ev := range events {
				if ev.Path == path && ev.Type == EventCreate {
					return
				}
			}
		case <-timeout:
			t.Fatalf("no create event for %s", path)
		}
	}
}

func TestTranslate(t *testing.T) {
	dir := t.TempDir()
	w := New(DefaultConfig(), []string{dir}, quietLogger(), nil)
	now := time.Now()
	tf := filepath.Join(dir, "main.tf")

	tests := []struct {
		name string
		ev   fsnotify.Event
		want []EventType
	}{
		{"create", fsnotify.Event{Name: tf, Op: fsnotify.Create}, []EventType{EventCreate}},
		{"write", fsnotify.Event{Name: tf, Op: fsnotify.Write}, []EventType{EventModify}},
		{"remove", fsnotify.Event{Name: tf, Op: fsnotify.Remove}, []EventType{EventDelete}},
		{"rename", fsnotify.Event{Name: tf, Op: fsnotify.Rename}, []EventType{EventDelete}},
		{"chmod", fsnotify.Event{Name: tf, Op: fsnotify.Chmod}, nil},
		{"declaration", fsnotify.Event{Name: filepath.Join(dir, "tfdoc.toml"), Op: fsnotify.Write}, []EventType{EventModify}},
		{"other file", fsnotify.Event{Name: filepath.Join(dir, "README.md"), Op: fsnotify.Write}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.translate(tt.ev, now)
			if len(got) != len(tt.want) {
				t.Fatalf("translate() = %+v, want %v", got, tt.want)
			}
			for i, typ := range tt.want {
				if got[i].Type != typ || got[i].Path != tt.ev.Name {
					t.Errorf("translate()[%d] = %s %s", i, got[i].Type, got[i].Path)
				}
			}
		})
	}
}

func TestTranslate_SkippedDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".terraform", "x.tf"), "")

	w := New(DefaultConfig(), []string{dir}, quietLogger(), nil)
	ev := fsnotify.Event{Name: filepath.Join(dir, ".terraform"), Op: fsnotify.Create}
	if got := w.translate(ev, time.Now()); len(got) != 0 {
		t.Errorf("translate() = %+v, want nothing", got)
	}
}

func TestBatchDebouncerAdd(t *testing.T) {
	var (
		mu      sync.Mutex
		emitted []Event
	)
	b := NewBatchDebouncer(30*time.Millisecond, func(events []Event) {
		mu.Lock()
		emitted = append(emitted, events...)
		mu.Unlock()
	})

	b.Add(Event{Type: EventModify, Path: "a.tf"})
	b.Add(Event{Type: EventModify, Path: "b.tf"})
	b.Add(Event{Type: EventModify, Path: "a.tf"})
	if n := b.EventCount(); n != 2 {
		t.Errorf("EventCount() = %d, want 2", n)
	}

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(emitted) != 2 || emitted[0].Path != "a.tf" || emitted[1].Path != "b.tf" {
		t.Errorf("emitted = %+v", emitted)
	}
}

func TestBatchDebouncerMerge(t *testing.T) {
	tests := []struct {
		name  string
		types []EventType
		want  []EventType
	}{
		{"create then modify", []EventType{EventCreate, EventModify}, []EventType{EventCreate}},
		{"create then delete", []EventType{EventCreate, EventDelete}, nil},
		{"delete then create", []EventType{EventDelete, EventCreate}, []EventType{EventModify}},
		{"modify then delete", []EventType{EventModify, EventDelete}, []EventType{EventDelete}},
		{"create delete create", []EventType{EventCreate, EventDelete, EventCreate}, []EventType{EventCreate}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var emitted []Event
			b := NewBatchDebouncer(time.Hour, func(events []Event) { emitted = events })
			for _, typ := range tt.types {
				b.Add(Event{Type: typ, Path: "main.tf"})
			}
			b.Flush()

			if len(emitted) != len(tt.want) {
				t.Fatalf("emitted = %+v, want types %v", emitted, tt.want)
			}
			for i, typ := range tt.want {
				if emitted[i].Type != typ {
					t.Errorf("emitted[%d] = %s, want %s", i, emitted[i].Type, typ)
				}
			}
		})
	}
}

func TestBatchDebouncerCancel(t *testing.T) {
	called := false
	b := NewBatchDebouncer(20*time.Millisecond, func([]Event) { called = true })
	b.Add(Event{Type: EventCreate, Path: "a.tf"})
	b.Cancel()

	time.Sleep(60 * time.Millisecond)
	if called {
		t.Error("emit called after Cancel")
	}
	if b.EventCount() != 0 {
		t.Error("events should be cleared after Cancel")
	}
}

func TestBatchDebouncerNoEmitWithNoEvents(t *testing.T) {
	called := false
	b := NewBatchDebouncer(10*time.Millisecond, func([]Event) { called = true })
	b.Flush()
	if called {
		t.Error("emit should not be called without events")
	}
}
