// Package watcher provides directory watching with debouncing using fsnotify.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the directory must be quiet before a change
// batch is delivered.
const DefaultDebounce = 500 * time.Millisecond

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// ChangeCallback receives the sorted, de-duplicated paths changed since the
// previous batch.
type ChangeCallback func(ctx context.Context, paths []string)

// DirWatcher watches a directory tree and reports batches of changes.
type DirWatcher struct {
	root     string
	debounce time.Duration
	onChange ChangeCallback
	ignore   func(name string) bool
	logger   *slog.Logger

	fsw        *fsnotify.Watcher
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Option configures a DirWatcher.
type Option func(*DirWatcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *DirWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithCallback sets the function called for each change batch.
func WithCallback(cb ChangeCallback) Option {
	return func(w *DirWatcher) { w.onChange = cb }
}

// WithIgnore adds a predicate on base names; matching entries are not
// reported. Hidden entries are always ignored.
func WithIgnore(fn func(name string) bool) Option {
	return func(w *DirWatcher) { w.ignore = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *DirWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a watcher for root. The directory is created if missing.
func New(root string, opts ...Option) (*DirWatcher, error) {
	w := &DirWatcher{
		root:     root,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", root, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	w.fsw = fsw
	return w, nil
}

// Start subscribes to root and every non-hidden subdirectory, then processes
// events in a background goroutine until ctx is done or Stop is called.
func (w *DirWatcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		_ = w.fsw.Close()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Debug("watching directory", "dir", w.root, "debounce", w.debounce)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit.
func (w *DirWatcher) Stop() {
	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()
	_ = w.fsw.Close()
}

func (w *DirWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.skip(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *DirWatcher) skip(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return w.ignore != nil && w.ignore(name)
}

func (w *DirWatcher) run(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.skip(filepath.Base(event.Name)) || event.Op == fsnotify.Chmod {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("could not watch new directory", "dir", event.Name, "error", err)
					}
				}
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})
			w.logger.Debug("directory changed", "dir", w.root, "paths", len(paths))
			if w.onChange != nil {
				w.onChange(ctx, paths)
			}
		}
	}
}
