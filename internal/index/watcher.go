// Package index provides file watching for automatic live indexing.
package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher bridges filesystem notifications to indexer operations, keeping
// the index current without manual re-scans.
//
// A created file is not read immediately: it sits in a pending set for a
// settling delay first, to avoid encoding a partially written file. This
// is best effort; a truncated read fails the encode and the file is
// picked up by a later event or scan.
type Watcher struct {
	indexer *Indexer
	root    string

	watcher     *fsnotify.Watcher
	settleDelay time.Duration

	pendingMu    sync.Mutex
	pendingFiles map[string]time.Time
}

// WatcherConfig contains watcher configuration.
type WatcherConfig struct {
	Root        string
	Indexer     *Indexer
	SettleDelay time.Duration // Default: 500ms
}

// NewWatcher creates a new file watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	settleDelay := cfg.SettleDelay
	if settleDelay == 0 {
		settleDelay = 500 * time.Millisecond
	}

	return &Watcher{
		indexer:      cfg.Indexer,
		root:         cfg.Root,
		watcher:      watcher,
		settleDelay:  settleDelay,
		pendingFiles: make(map[string]time.Time),
	}, nil
}

// Watch starts watching for file changes under the root, recursively.
// It blocks until the context is cancelled; cancellation stops event
// delivery and lets any in-flight single-file operation finish.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.addWatchDirs(w.root); err != nil {
		return err
	}

	slog.Info("watching for screenshots", "dir", w.root)

	// Settle processor drains the pending set
	go w.processSettled(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping watcher")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// addWatchDirs recursively adds directories to the watch set.
func (w *Watcher) addWatchDirs(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.IsDir() {
			// Skip hidden directories (including the .snapseek data dir)
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				slog.Warn("failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
}

// handleEvent processes a filesystem event.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// New subdirectory: watch it and enqueue anything already inside
			if event.Has(fsnotify.Create) {
				w.addCreatedDir(path)
			}
			return
		}

		if !HasAllowedExtension(path) {
			return
		}

		w.pendingMu.Lock()
		w.pendingFiles[path] = time.Now()
		w.pendingMu.Unlock()

		slog.Debug("file event", "path", path, "op", event.Op.String())

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename arrives as remove(old) + create(new). Deletion is
		// cheap and idempotent, so no extension filtering is needed.
		w.pendingMu.Lock()
		delete(w.pendingFiles, path)
		w.pendingMu.Unlock()

		if err := w.indexer.DeleteByPath(ctx, path); err != nil {
			slog.Warn("failed to delete from index", "path", path, "error", err)
		}
	}
}

// addCreatedDir watches a newly created directory tree and enqueues any
// images that landed in it before the watch was in place.
func (w *Watcher) addCreatedDir(dir string) {
	if err := w.addWatchDirs(dir); err != nil {
		slog.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}

	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !HasAllowedExtension(path) {
			return nil
		}
		w.pendingMu.Lock()
		w.pendingFiles[path] = time.Now()
		w.pendingMu.Unlock()
		return nil
	})
}

// processSettled indexes pending files once they have been quiet for the
// settling delay.
func (w *Watcher) processSettled(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range w.takeSettled() {
				if ctx.Err() != nil {
					return
				}
				if err := w.indexer.IndexFile(ctx, path); err != nil {
					slog.Warn("failed to index file", "path", path, "error", err)
				}
			}
		}
	}
}

// takeSettled removes and returns the pending paths that have settled.
func (w *Watcher) takeSettled() []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	var settled []string
	for path, seenAt := range w.pendingFiles {
		if now.Sub(seenAt) >= w.settleDelay {
			settled = append(settled, path)
			delete(w.pendingFiles, path)
		}
	}
	return settled
}

// Close closes the underlying notification source.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
