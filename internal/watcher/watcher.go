// Package watcher reloads the catalog when its database files change on disk.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches a set of files and calls onChange once per burst of changes.
// It watches each file's parent directory so that files replaced by rename and
// SQLite side files (-wal, -journal) are seen.
type Watcher struct {
	files    []string
	onChange func()
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	done     chan struct{}
	started  bool
	logger   *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long the watcher waits after the last event before calling onChange.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for files. onChange runs on its own goroutine.
func NewWatcher(files []string, onChange func(), opts ...WatcherOption) *Watcher {
	clean := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		clean = append(clean, filepath.Clean(f))
	}
	w := &Watcher{
		files:    clean,
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
// A stopped watcher can be started again.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if len(w.files) == 0 {
		return errors.New("watcher has no files to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := make(map[string]bool)
	for _, f := range w.files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return err
		}
		dirs[dir] = true
	}
	w.watcher = fsw
	w.done = make(chan struct{})
	w.started = true
	w.logger.Debug("watcher starting", zap.Strings("files", w.files), zap.Duration("debounce", w.debounce))
	go w.run(ctx, fsw, w.done)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			// Only stop the run this goroutine belongs to.
			if w.done == done {
				w.stopLocked()
			}
			w.mu.Unlock()
			return
		case <-done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !w.matches(ev.Name) {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	w.schedule()
}

// matches reports whether path is a watched file or one of its SQLite side files.
// The shared-memory file is ignored; readers touch it.
func (w *Watcher) matches(path string) bool {
	clean := filepath.Clean(path)
	for _, f := range w.files {
		if clean == f {
			return true
		}
		if rest, ok := strings.CutPrefix(clean, f); ok && (rest == "-wal" || rest == "-journal") {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		active := w.started
		w.mu.Unlock()
		if !active {
			return
		}
		w.logger.Debug("watcher change settled, notifying")
		if w.onChange != nil {
			w.onChange()
		}
	})
}

// Files returns the watched file paths.
func (w *Watcher) Files() []string {
	return append([]string(nil), w.files...)
}

// Stop stops the watcher and releases resources. Pending notifications are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Watcher) stopLocked() {
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	close(w.done)
}
