// Package watcher reprocesses shows when their archive documents
// change. Events are filtered to storage-key files, mapped to their
// show prefix, and batched behind a trailing debounce so one sync of
// many files triggers one reprocess.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kikigaki/internal/archive"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches the archive directory and reports dirty prefixes.
type Watcher struct {
	dir        string
	extensions []string
	debounce   time.Duration
	onDirty    func(prefixes []string)
	logger     *zap.Logger // optional; when set, logs events and flushes

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dirty    map[string]struct{}
	timer    *time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for event and flush diagnostics.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher over the archive directory. onDirty receives
// the touched show prefixes once events have settled for the debounce
// window; debounce <= 0 selects the default.
func New(dir string, extensions []string, debounce time.Duration, onDirty func(prefixes []string), opts ...WatcherOption) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	w := &Watcher{
		dir:        dir,
		extensions: extensions,
		debounce:   debounce,
		onDirty:    onDirty,
		dirty:      make(map[string]struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. The archive directory is created when absent.
// The watcher runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.mu.Unlock()
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Info("watching archive", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))
	}
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
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
			if err != nil && w.logger != nil {
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}
	if !matchExtension(ev.Name, w.extensions) {
		return
	}
	prefix, _, ok := archive.ParseKey(filepath.Base(ev.Name))
	if !ok {
		return
	}
	if w.logger != nil {
		w.logger.Debug("archive event", zap.String("op", ev.Op.String()), zap.String("key", filepath.Base(ev.Name)))
	}
	w.markDirty(prefix)
}

// markDirty records a touched prefix and pushes the flush timer back,
// so a burst of writes produces one reprocess.
func (w *Watcher) markDirty(prefix string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty[prefix] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	prefixes := make([]string, 0, len(w.dirty))
	for p := range w.dirty {
		prefixes = append(prefixes, p)
	}
	w.dirty = make(map[string]struct{})
	w.timer = nil
	logger := w.logger
	w.mu.Unlock()

	if len(prefixes) == 0 {
		return
	}
	sort.Strings(prefixes)
	if logger != nil {
		logger.Info("archive settled", zap.Strings("prefixes", prefixes))
	}
	if w.onDirty != nil {
		w.onDirty(prefixes)
	}
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// Stop stops the watcher and releases resources. A pending debounce
// flush is dropped; the next process run covers anything unflushed.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	fsw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if fsw != nil {
		_ = fsw.Close()
	}
	w.stopOnce.Do(func() { close(w.done) })
}
