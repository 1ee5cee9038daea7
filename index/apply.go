package index

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/lexandro/buildwatch/changeset"
)

const reindexWorkers = 8

// ReindexResult summarizes a full reindex.
type ReindexResult struct {
	Files    int
	Bytes    int64
	Duration time.Duration
}

// Build applies a snapshot to the index. A config change rebuilds the whole
// index; otherwise deleted directories drop everything beneath them, deleted
// files are removed and added or updated files are re-read.
func (si *SourceIndex) Build(ctx context.Context, snapshot changeset.Snapshot) error {
	if snapshot.ConfigUpdated {
		_, err := si.Reindex(ctx)
		return err
	}

	for _, dir := range snapshot.DirsDeleted {
		if rel, ok := si.relative(dir); ok {
			n := si.RemoveDir(rel)
			si.logger.Debug("removed directory from index", "path", rel, "files", n)
		}
	}
	for _, p := range snapshot.FilesDeleted {
		if rel, ok := si.relative(p); ok && si.Remove(rel) {
			si.logger.Debug("removed from index", "path", rel)
		}
	}

	var errs []error
	for _, group := range [][]string{snapshot.FilesAdded, snapshot.FilesUpdated} {
		for _, p := range group {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := si.IndexFile(ctx, p)
			switch {
			case err == nil:
				si.logger.Debug("updated index", "path", p)
			case errors.Is(err, ErrSkipped):
				si.logger.Debug("skipped file", "error", err)
			default:
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Reindex clears the index and walks the root with a bounded worker pool.
func (si *SourceIndex) Reindex(ctx context.Context) (ReindexResult, error) {
	start := time.Now()
	if err := si.Clear(); err != nil {
		return ReindexResult{}, err
	}

	var result ReindexResult
	var mu sync.Mutex
	jobs := make(chan string, 100)

	var wg sync.WaitGroup
	for i := 0; i < reindexWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if err := si.IndexFile(ctx, p); err != nil {
					si.logger.Debug("skipped file", "path", p, "error", err)
					continue
				}
				rel, _ := si.relative(p)
				f, _ := si.File(rel)
				mu.Lock()
				result.Files++
				result.Bytes += f.SizeBytes
				mu.Unlock()
			}
		}()
	}

	root := filepath.FromSlash(si.rootDir)
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p != root && si.ignore != nil && si.ignore.ShouldIgnoreDir(p) {
				return filepath.SkipDir
			}
			return nil
		}
		jobs <- filepath.ToSlash(p)
		return nil
	})
	close(jobs)
	wg.Wait()

	result.Duration = time.Since(start)
	if walkErr != nil {
		return result, walkErr
	}
	si.logger.Info("index rebuilt", "files", result.Files, "totalSize", result.Bytes, "duration", result.Duration)
	return result, nil
}
