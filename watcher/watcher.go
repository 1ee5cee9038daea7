package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// IgnoreChecker is used by the watcher to check if a path should be ignored.
type IgnoreChecker interface {
	ShouldIgnoreDir(absolutePath string) bool
	ShouldIgnore(absolutePath string) bool
}

// Reloader is implemented by ignore checkers whose rules live in files
// inside the watched tree.
type Reloader interface {
	IsIgnoreFile(absolutePath string) bool
	Reload()
}

// Handler receives the five event kinds, one call at a time.
type Handler interface {
	OnFileUpdated(ctx context.Context, path string)
	OnFileAdded(ctx context.Context, path string)
	OnFileDeleted(ctx context.Context, path string)
	OnDirAdded(ctx context.Context, path string)
	OnDirDeleted(ctx context.Context, path string)
}

// Watcher turns fsnotify notifications for a directory tree into file and
// directory events. fsnotify is not recursive, so the watcher registers every
// non-ignored directory and remembers them to tell directory removals apart
// from file removals.
type Watcher struct {
	fsWatcher     *fsnotify.Watcher
	ignoreChecker IgnoreChecker
	rootDir       string
	logger        *slog.Logger

	mu   sync.Mutex
	dirs map[string]struct{}
	// removed holds directories already reported as deleted. inotify reports a
	// removed directory twice (from the parent and from the directory itself).
	removed map[string]struct{}
}

// NewWatcher creates a recursive file watcher on the given root directory.
// It registers all non-ignored subdirectories for watching.
func NewWatcher(rootDir string, ignoreChecker IgnoreChecker, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher:     fsWatcher,
		ignoreChecker: ignoreChecker,
		rootDir:       rootDir,
		logger:        logger,
		dirs:          make(map[string]struct{}),
		removed:       make(map[string]struct{}),
	}

	if err := w.watchTree(rootDir); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

// watchTree registers dir and every non-ignored directory beneath it.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries that can't be read
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.rootDir && w.ignoreChecker.ShouldIgnoreDir(path) {
			return filepath.SkipDir
		}
		if watchErr := w.fsWatcher.Add(path); watchErr != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", watchErr)
			return nil
		}
		w.mu.Lock()
		w.dirs[path] = struct{}{}
		delete(w.removed, path)
		w.mu.Unlock()
		return nil
	})
}

// WatchedDirCount returns the number of directories currently registered.
func (w *Watcher) WatchedDirCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

// Run dispatches events to handler until ctx is cancelled or the watcher is
// closed. Events are delivered serially from the calling goroutine.
func (w *Watcher) Run(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event, handler)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			// Overflow drops events; periodic reconciliation picks them up.
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// handleEvent translates a single fsnotify event into a Handler call.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event, handler Handler) {
	path := event.Name
	if path == w.rootDir {
		return
	}
	w.reloadIgnoreRules(path)

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if w.ignoreChecker.ShouldIgnoreDir(path) {
				return
			}
			// Directories created together with this one produce no events of
			// their own; register them all now.
			if err := w.watchTree(path); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
			handler.OnDirAdded(ctx, path)
			return
		}
		if w.ignoreChecker.ShouldIgnore(path) {
			return
		}
		handler.OnFileAdded(ctx, path)

	case event.Has(fsnotify.Write):
		if w.isWatchedDir(path) || w.ignoreChecker.ShouldIgnore(path) {
			return
		}
		handler.OnFileUpdated(ctx, path)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.forgetDir(path) {
			handler.OnDirDeleted(ctx, path)
			return
		}
		if w.wasRemovedDir(path) || w.ignoreChecker.ShouldIgnore(path) {
			return
		}
		handler.OnFileDeleted(ctx, path)
	}
}

// reloadIgnoreRules re-reads ignore files when one of them changes.
func (w *Watcher) reloadIgnoreRules(path string) {
	r, ok := w.ignoreChecker.(Reloader)
	if !ok || !r.IsIgnoreFile(path) {
		return
	}
	r.Reload()
	w.logger.Info("reloaded ignore rules", "trigger", filepath.Base(path))
}

func (w *Watcher) isWatchedDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.dirs[path]
	return ok
}

// forgetDir drops path and its descendants from the watched set.
// Returns false if path was not a watched directory.
func (w *Watcher) forgetDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.dirs[path]; !ok {
		return false
	}
	w.removed[path] = struct{}{}
	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
			// fsnotify drops watches of removed directories itself; renamed
			// directories keep theirs until removed explicitly.
			_ = w.fsWatcher.Remove(dir)
		}
	}
	return true
}

// wasRemovedDir consumes the duplicate removal of an already reported directory.
func (w *Watcher) wasRemovedDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.removed[path]; !ok {
		return false
	}
	delete(w.removed, path)
	return true
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}
