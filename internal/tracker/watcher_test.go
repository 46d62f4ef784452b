package tracker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := NewWatcher(dir, 100*time.Millisecond, func(name string) bool {
		return strings.HasSuffix(name, ".js")
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestWatcherCoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	path := filepath.Join(dir, "user.js")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("// rev"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	ev := waitEvent(t, w)
	assert.Equal(t, Added, ev.Kind, "a create followed by writes is one logical add")
	assert.Equal(t, path, ev.Path)

	select {
	case extra := <-w.Events():
		t.Fatalf("unexpected second event: %+v", extra)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.js")
	require.NoError(t, os.WriteFile(path, []byte("// model"), 0644))

	w := newTestWatcher(t, dir)
	require.NoError(t, os.Remove(path))

	ev := waitEvent(t, w)
	assert.Equal(t, Removed, ev.Kind)
	assert.Equal(t, path, ev.Path)
}

func TestWatcherFiltersUnacceptedFiles(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0644))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for filtered file: %+v", ev)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "changed", Changed.String())
	assert.Equal(t, "removed", Removed.String())
}
