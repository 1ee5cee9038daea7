package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lexandro/buildwatch/classify"
	"github.com/lexandro/buildwatch/ignore"
	"github.com/lexandro/buildwatch/index"
	"github.com/lexandro/buildwatch/watcher"
)

// ReconcileResult holds the outcome of one comparison between the index and disk.
type ReconcileResult struct {
	MissingFiles  int // on disk but not indexed
	StaleFiles    int // indexed but gone from disk
	ModifiedFiles int // ModTime differs
	Duration      time.Duration
}

// reconciler catches changes the watcher missed, e.g. after an fsnotify queue
// overflow. It compares the source index with disk on an interval and reports
// every difference to the handler as a synthetic file event.
type reconciler struct {
	rootDir  string
	index    *index.SourceIndex
	ignore   *ignore.Matcher
	interval time.Duration
	logger   *slog.Logger
}

// Run implements listener.Source.
func (r *reconciler) Run(ctx context.Context, handler watcher.Handler) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("periodic reconcile started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("periodic reconcile stopped")
			return
		case <-ticker.C:
			result := r.reconcile(ctx, handler)
			total := result.MissingFiles + result.StaleFiles + result.ModifiedFiles
			if total > 0 {
				r.logger.Info("reconcile complete",
					"missing", result.MissingFiles,
					"stale", result.StaleFiles,
					"modified", result.ModifiedFiles,
					"duration", result.Duration,
				)
			} else {
				r.logger.Debug("reconcile complete, index is in sync", "duration", result.Duration)
			}
		}
	}
}

// reconcile walks the root once and emits events for every difference.
func (r *reconciler) reconcile(ctx context.Context, handler watcher.Handler) ReconcileResult {
	start := time.Now()
	var result ReconcileResult

	diskFiles := make(map[string]os.FileInfo) // key: relative path (forward slashes)
	filepath.WalkDir(r.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != r.rootDir && r.ignore.ShouldIgnoreDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if r.ignore.ShouldIgnore(path) || !classify.IsRelevantFile(filepath.ToSlash(path)) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(r.rootDir, path)
		diskFiles[filepath.ToSlash(rel)] = info
		return nil
	})
	if ctx.Err() != nil {
		return result
	}

	indexed := make(map[string]index.SourceFile)
	for _, f := range r.index.Files() {
		indexed[f.RelativePath] = f
	}

	for rel, info := range diskFiles {
		abs := filepath.Join(r.rootDir, filepath.FromSlash(rel))
		f, ok := indexed[rel]
		switch {
		case !ok:
			handler.OnFileAdded(ctx, abs)
			result.MissingFiles++
		case !info.ModTime().Equal(f.ModTime):
			handler.OnFileUpdated(ctx, abs)
			result.ModifiedFiles++
		}
	}
	for rel, f := range indexed {
		if _, ok := diskFiles[rel]; !ok {
			handler.OnFileDeleted(ctx, f.Path)
			result.StaleFiles++
		}
	}

	result.Duration = time.Since(start)
	return result
}
