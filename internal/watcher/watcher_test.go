package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) callback(ctx context.Context, paths []string) {
	r.mu.Lock()
	r.batches = append(r.batches, paths)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func startWatcher(t *testing.T, dir string, rec *recorder, opts ...Option) *DirWatcher {
	t.Helper()
	opts = append([]Option{WithDebounce(150 * time.Millisecond), WithCallback(rec.callback)}, opts...)
	w, err := New(dir, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestDirWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, dir, rec)

	for i := 0; i < 5; i++ {
		os.WriteFile(filepath.Join(dir, "app.log"), []byte(strings.Repeat("x", i+1)), 0o644)
	}
	os.WriteFile(filepath.Join(dir, "db.log"), []byte("y"), 0o644)

	paths := rec.wait(t)
	joined := strings.Join(paths, ",")
	if !strings.Contains(joined, "app.log") || !strings.Contains(joined, "db.log") {
		t.Errorf("batch = %v", paths)
	}
	seen := map[string]bool{}
	for _, p := range paths {
		if seen[p] {
			t.Errorf("duplicate path %s in batch", p)
		}
		seen[p] = true
	}
}

func TestDirWatcherIgnoresHiddenAndFiltered(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, dir, rec, WithIgnore(func(name string) bool { return name == "ticket_metadata.txt" }))

	os.WriteFile(filepath.Join(dir, ".download-123"), []byte("tmp"), 0o644)
	os.WriteFile(filepath.Join(dir, "ticket_metadata.txt"), []byte("meta"), 0o644)
	os.WriteFile(filepath.Join(dir, "real.log"), []byte("z"), 0o644)

	paths := rec.wait(t)
	if len(paths) != 1 || filepath.Base(paths[0]) != "real.log" {
		t.Errorf("batch = %v, want only real.log", paths)
	}
}

func TestDirWatcherFollowsNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, dir, rec)

	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)

	os.WriteFile(filepath.Join(sub, "inner.log"), []byte("n"), 0o644)
	paths := rec.wait(t)
	if !strings.Contains(strings.Join(paths, ","), "inner.log") {
		t.Errorf("batch = %v", paths)
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	w, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.fsw.Close()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory not created: %v", err)
	}
	if w.debounce != DefaultDebounce {
		t.Errorf("debounce = %v", w.debounce)
	}
}
