package tracker

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vendz/NL2SQL/internal/logging"
)

// EventKind classifies a file-system change.
type EventKind int

const (
	Added EventKind = iota
	Changed
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Event is one debounced file-system notification.
type Event struct {
	Kind EventKind
	Path string
}

// Watcher converts raw fsnotify notifications on accepted files into a
// debounced event stream. Rapid successive writes to one file within
// the stability window coalesce into a single event, so one logical
// save produces exactly one reload downstream.
type Watcher struct {
	fsw      *fsnotify.Watcher
	dir      string
	debounce time.Duration
	accept   func(name string) bool

	mu      sync.Mutex
	pending map[string]pendingEvent

	events chan Event
	stopCh chan struct{}
	doneCh chan struct{}
}

type pendingEvent struct {
	kind EventKind
	at   time.Time
}

// NewWatcher starts watching dir. The accept filter decides which file
// names qualify; debounce is the stability window.
func NewWatcher(dir string, debounce time.Duration, accept func(name string) bool) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}

	w := &Watcher{
		fsw:      fsw,
		dir:      dir,
		debounce: debounce,
		accept:   accept,
		pending:  make(map[string]pendingEvent),
		events:   make(chan Event, 16),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run()

	logging.Watch("watching directory: %s (debounce %v)", dir, debounce)
	return w, nil
}

// Events returns the debounced event stream. The channel is closed
// when the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops the watcher and waits for the run loop to drain.
func (w *Watcher) Close() error {
	close(w.stopCh)
	<-w.doneCh
	return w.fsw.Close()
}

// run is the main event loop: raw notifications are recorded into the
// pending map; a ticker flushes entries that have settled past the
// stability window.
func (w *Watcher) run() {
	defer close(w.doneCh)
	defer close(w.events)

	tick := w.debounce / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watch error: %v", err)

		case <-ticker.C:
			for _, ev := range w.settled() {
				select {
				case w.events <- ev:
				case <-w.stopCh:
					return
				}
			}
		}
	}
}

// handleEvent records one raw notification into the pending map.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.accept(event.Name) {
		return
	}

	var kind EventKind
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = Added
	case event.Op&fsnotify.Write != 0:
		kind = Changed
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		kind = Removed
	default:
		return // chmod etc.
	}

	logging.WatchDebug("%s: %s", kind, event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.pending[event.Name]; ok && prev.kind == Added && kind == Changed {
		// a create followed by writes is still one logical add
		kind = Added
	}
	w.pending[event.Name] = pendingEvent{kind: kind, at: time.Now()}
}

// settled removes and returns the pending events whose last
// notification is older than the stability window.
func (w *Watcher) settled() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var out []Event
	for path, p := range w.pending {
		if now.Sub(p.at) >= w.debounce {
			out = append(out, Event{Kind: p.kind, Path: path})
			delete(w.pending, path)
		}
	}
	return out
}
