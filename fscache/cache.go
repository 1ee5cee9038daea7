// Package fscache is the caching filesystem used by the watch session.
//
// File content is cached together with its blake3 digest, which is what
// HasFileChanged compares against to tell real edits from duplicate or no-op
// notifications. Recursive directory listings are cached until invalidated.
package fscache

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// ErrNotCached is returned by Cached for paths that were never read.
var ErrNotCached = errors.New("file not cached")

// IgnoreChecker filters directories and files out of listings.
type IgnoreChecker interface {
	ShouldIgnoreDir(absolutePath string) bool
	ShouldIgnore(absolutePath string) bool
}

type entry struct {
	digest  [32]byte
	content []byte // nil when the file exceeds the content limit
	size    int64
}

// Options configures a Cache.
type Options struct {
	Ignore          IgnoreChecker // optional
	MaxContentBytes int64         // larger files keep only their digest
	Logger          *slog.Logger
}

// Cache is safe for concurrent use.
type Cache struct {
	mu    sync.RWMutex
	files map[string]*entry
	dirs  map[string][]string // recursive listings keyed by directory

	ignore          IgnoreChecker
	maxContentBytes int64
	logger          *slog.Logger
}

// New creates an empty cache.
func New(options Options) *Cache {
	c := &Cache{
		files:           make(map[string]*entry),
		dirs:            make(map[string][]string),
		ignore:          options.Ignore,
		maxContentBytes: options.MaxContentBytes,
		logger:          options.Logger,
	}
	if c.maxContentBytes <= 0 {
		c.maxContentBytes = 1024 * 1024 // 1MB default
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// ReadFile returns the content of path. With useCache the cached copy is
// served when present; otherwise the file is read from disk and the cache
// refreshed.
func (c *Cache) ReadFile(ctx context.Context, path string, useCache bool) ([]byte, error) {
	if useCache {
		c.mu.RLock()
		e, ok := c.files[path]
		c.mu.RUnlock()
		if ok && e.content != nil {
			return e.content, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := readFileWithRetry(path)
	if err != nil {
		return nil, err
	}
	c.store(path, data)
	return data, nil
}

// HasFileChanged reads path from disk, bypassing the cache, and reports
// whether its content differs from the cached digest. A file that was never
// cached counts as changed. A file that disappeared counts as changed if it
// was cached.
func (c *Cache) HasFileChanged(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	data, err := readFileWithRetry(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.mu.Lock()
		_, existed := c.files[path]
		delete(c.files, path)
		c.mu.Unlock()
		return existed, nil
	}
	if err != nil {
		return false, err
	}

	digest := blake3.Sum256(data)
	c.mu.RLock()
	previous, ok := c.files[path]
	c.mu.RUnlock()

	c.store(path, data)
	return !ok || previous.digest != digest, nil
}

// Cached returns the cached content of path without touching the disk.
func (c *Cache) Cached(path string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.files[path]
	if !ok || e.content == nil {
		return nil, ErrNotCached
	}
	return e.content, nil
}

func (c *Cache) store(path string, data []byte) {
	e := &entry{
		digest: blake3.Sum256(data),
		size:   int64(len(data)),
	}
	if e.size <= c.maxContentBytes {
		e.content = data
	}

	c.mu.Lock()
	_, existed := c.files[path]
	c.files[path] = e
	if !existed {
		// A new file changes the listings of every cached ancestor.
		c.dropAncestorListingsLocked(path)
	}
	c.mu.Unlock()
}

// ClearFileCache forgets the cached content of path.
func (c *Cache) ClearFileCache(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, path)
	c.dropAncestorListingsLocked(path)
}

// ClearDirCache forgets the listing of dir and everything cached beneath it.
func (c *Cache) ClearDirCache(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := strings.TrimSuffix(dir, "/") + "/"
	for p := range c.files {
		if strings.HasPrefix(p, prefix) {
			delete(c.files, p)
		}
	}
	for d := range c.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(c.dirs, d)
		}
	}
	c.dropAncestorListingsLocked(dir)
}

func (c *Cache) dropAncestorListingsLocked(path string) {
	for d := range c.dirs {
		if strings.HasPrefix(path, strings.TrimSuffix(d, "/")+"/") {
			delete(c.dirs, d)
		}
	}
}

// Readdir lists the absolute, slash-separated file paths under dir.
// Directories themselves are not listed; ignored entries are skipped.
// If the walk fails part way the entries found so far are returned with the error.
func (c *Cache) Readdir(ctx context.Context, dir string, recursive bool) ([]string, error) {
	if recursive {
		c.mu.RLock()
		cached, ok := c.dirs[dir]
		c.mu.RUnlock()
		if ok {
			return append([]string(nil), cached...), nil
		}
	}

	var paths []string
	root := filepath.FromSlash(dir)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p == root {
				return nil
			}
			if !recursive || (c.ignore != nil && c.ignore.ShouldIgnoreDir(p)) {
				return filepath.SkipDir
			}
			return nil
		}
		if c.ignore != nil && c.ignore.ShouldIgnore(p) {
			return nil
		}
		paths = append(paths, filepath.ToSlash(p))
		return nil
	})
	if err != nil {
		c.logger.Debug("readdir stopped early", "dir", dir, "found", len(paths), "error", err)
		return paths, err
	}

	if recursive {
		c.mu.Lock()
		c.dirs[dir] = append([]string(nil), paths...)
		c.mu.Unlock()
	}
	return paths, nil
}

// Stats returns the number of cached files and directory listings.
func (c *Cache) Stats() (files int, dirs int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files), len(c.dirs)
}

// readFileWithRetry attempts to read a file, retrying once after a short delay
// if the file is locked (common on Windows when editors are saving).
func readFileWithRetry(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		time.Sleep(50 * time.Millisecond)
		data, err = os.ReadFile(filepath.FromSlash(path))
	}
	return data, err
}
