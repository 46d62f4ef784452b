// Package tracker owns the single current Schema Snapshot: it exposes
// reload, and watches the models directory so file mutations trigger a
// full re-extraction. Snapshots are replaced wholesale, never patched.
package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vendz/NL2SQL/internal/extract"
	"github.com/vendz/NL2SQL/internal/logging"
	"github.com/vendz/NL2SQL/internal/schema"
)

// Builder runs one full extraction pass over a directory.
// *extract.Scanner is the production implementation.
type Builder interface {
	Build(ctx context.Context, dir string) (*schema.Snapshot, []extract.Diagnostic, error)
}

// Stats tracks tracker activity for the watch command and tests.
type Stats struct {
	Reloads       int
	FailedReloads int
	LastEventPath string
	LastEventKind string
}

// Tracker holds the current snapshot and the watch machinery.
// The snapshot reference is swapped atomically: a concurrent read
// observes either the prior or the new snapshot in full, never a
// mixture. Reloads are not queued or deduplicated; whichever build
// finishes last wins.
type Tracker struct {
	dir      string
	builder  Builder
	debounce time.Duration

	current atomic.Pointer[schema.Snapshot]

	mu       sync.Mutex // guards watch state and stats
	watcher  *Watcher
	cancel   context.CancelFunc
	loopDone chan struct{}
	watching bool
	lastErr  error
	stats    Stats
}

// New creates a tracker for the given models directory.
func New(dir string, builder Builder, debounce time.Duration) *Tracker {
	return &Tracker{
		dir:      dir,
		builder:  builder,
		debounce: debounce,
	}
}

// Load runs the initial build and installs the first snapshot.
// Discovery failures (no directory, zero entities) are fatal here.
func (t *Tracker) Load(ctx context.Context) ([]extract.Diagnostic, error) {
	snapshot, diags, err := t.builder.Build(ctx, t.dir)
	if err != nil {
		return diags, err
	}
	t.current.Store(snapshot)
	return diags, nil
}

// Current returns the current snapshot, or nil before the first Load.
func (t *Tracker) Current() *schema.Snapshot {
	return t.current.Load()
}

// Reload re-runs extraction end-to-end. The new snapshot is fully
// assembled off to the side before the swap; on failure the previous
// snapshot stays installed and the error is returned.
func (t *Tracker) Reload(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryWatch, "Reload")
	defer timer.Stop()

	snapshot, _, err := t.builder.Build(ctx, t.dir)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.stats.FailedReloads++
		t.lastErr = err
		logging.Get(logging.CategoryWatch).Error("reload failed, keeping previous snapshot: %v", err)
		return err
	}

	t.current.Store(snapshot)
	t.stats.Reloads++
	t.lastErr = nil
	logging.Watch("reload complete: %d entities", len(snapshot.Entities))
	return nil
}

// StartWatch begins watching the models directory. Each settled
// add/change/remove event on a recognized source file triggers a full
// Reload followed by onChanged on success. Calling StartWatch while
// already watching is a no-op.
func (t *Tracker) StartWatch(ctx context.Context, onChanged func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.watching {
		logging.Get(logging.CategoryWatch).Warn("StartWatch called while already watching, ignoring")
		return nil
	}

	watcher, err := NewWatcher(t.dir, t.debounce, extract.IsSourceFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	t.watcher = watcher
	t.cancel = cancel
	t.loopDone = make(chan struct{})
	t.watching = true

	go t.reconcile(ctx, watcher, onChanged)
	return nil
}

// StopWatch stops watching. Stopping when not watching is a no-op.
func (t *Tracker) StopWatch() {
	t.mu.Lock()
	if !t.watching {
		t.mu.Unlock()
		return
	}
	watcher := t.watcher
	cancel := t.cancel
	done := t.loopDone
	t.watching = false
	t.watcher = nil
	t.cancel = nil
	t.mu.Unlock()

	cancel()
	if err := watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher: %v", err)
	}
	<-done
	logging.Watch("stopped watching %s", t.dir)
}

// IsWatching reports whether the watch loop is running.
func (t *Tracker) IsWatching() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watching
}

// LastReloadError returns the error of the most recent failed reload,
// or nil if the last reload succeeded. Watch-triggered reload failures
// surface here instead of crashing the event loop.
func (t *Tracker) LastReloadError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Stats returns a copy of the tracker statistics.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// reconcile is the single reconciliation loop consuming the debounced
// event stream. Every qualifying event triggers a full reload, never
// an incremental patch.
func (t *Tracker) reconcile(ctx context.Context, watcher *Watcher, onChanged func()) {
	defer close(t.loopDone)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events():
			if !ok {
				return
			}

			t.mu.Lock()
			t.stats.LastEventPath = ev.Path
			t.stats.LastEventKind = ev.Kind.String()
			t.mu.Unlock()

			logging.Watch("%s %s, reloading schema", ev.Kind, ev.Path)
			if err := t.Reload(ctx); err != nil {
				continue // previous snapshot retained, error recorded
			}
			if onChanged != nil {
				onChanged()
			}
		}
	}
}
