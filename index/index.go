// Package index keeps a searchable in-memory copy of the project sources,
// updated incrementally from change snapshots.
package index

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

	"github.com/blevesearch/bleve/v2"
	"github.com/lexandro/buildwatch/classify"
	"github.com/lexandro/buildwatch/fscache"
)

// ErrSkipped is returned by IndexFile for files that are not indexed: ignored,
// gone, too large, binary or outside the root.
var ErrSkipped = errors.New("file not indexable")

// FileReader provides file content. fscache.Cache implements it.
type FileReader interface {
	ReadFile(ctx context.Context, path string, useCache bool) ([]byte, error)
}

// IgnoreChecker decides which paths stay out of the index.
type IgnoreChecker interface {
	ShouldIgnoreDir(absolutePath string) bool
	ShouldIgnore(absolutePath string) bool
}

// Options configures a SourceIndex.
type Options struct {
	RootDir     string
	Reader      FileReader
	Ignore      IgnoreChecker
	MaxFileSize int64 // zero disables the limit
	Logger      *slog.Logger
	// Filter limits the index to accepted paths (absolute, forward slashes).
	// Nil accepts every text file.
	Filter func(path string) bool
}

// SourceIndex maps relative paths to file metadata and content, with a Bleve
// full-text index over the content.
type SourceIndex struct {
	rootDir     string
	reader      FileReader
	ignore      IgnoreChecker
	maxFileSize int64
	logger      *slog.Logger
	filter      func(path string) bool

	mu          sync.RWMutex
	bleve       bleve.Index
	files       map[string]SourceFile
	contents    map[string]string
	sortedPaths []string
}

// NewSourceIndex creates an empty index. Call Reindex to fill it.
func NewSourceIndex(opts Options) (*SourceIndex, error) {
	bleveIndex, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root := filepath.ToSlash(filepath.Clean(opts.RootDir))
	return &SourceIndex{
		rootDir:     root,
		reader:      opts.Reader,
		ignore:      opts.Ignore,
		maxFileSize: opts.MaxFileSize,
		logger:      logger,
		filter:      opts.Filter,
		bleve:       bleveIndex,
		files:       make(map[string]SourceFile),
		contents:    make(map[string]string),
	}, nil
}

// RootDir returns the indexed root with forward slashes.
func (si *SourceIndex) RootDir() string {
	return si.rootDir
}

// IndexFile reads one file and adds or replaces it in the index. A file that
// is no longer indexable is removed and ErrSkipped returned.
func (si *SourceIndex) IndexFile(ctx context.Context, absolutePath string) error {
	absolutePath = filepath.ToSlash(absolutePath)
	rel, ok := si.relative(absolutePath)
	if !ok {
		return fmt.Errorf("%s: outside root: %w", absolutePath, ErrSkipped)
	}
	file, content, err := si.load(ctx, absolutePath, rel)
	if err != nil {
		si.Remove(rel)
		return err
	}
	return si.store(file, content)
}

func (si *SourceIndex) load(ctx context.Context, absolutePath, rel string) (SourceFile, string, error) {
	if si.filter != nil && !si.filter(absolutePath) {
		return SourceFile{}, "", fmt.Errorf("%s: filtered: %w", rel, ErrSkipped)
	}
	native := filepath.FromSlash(absolutePath)
	if si.ignore != nil && si.ignore.ShouldIgnore(native) {
		return SourceFile{}, "", fmt.Errorf("%s: ignored: %w", rel, ErrSkipped)
	}
	info, err := os.Stat(native)
	if errors.Is(err, fs.ErrNotExist) {
		// Deleted before the build ran.
		return SourceFile{}, "", fmt.Errorf("%s: gone: %w", rel, ErrSkipped)
	}
	if err != nil {
		return SourceFile{}, "", fmt.Errorf("stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return SourceFile{}, "", fmt.Errorf("%s: directory: %w", rel, ErrSkipped)
	}
	if si.maxFileSize > 0 && info.Size() > si.maxFileSize {
		return SourceFile{}, "", fmt.Errorf("%s: %d bytes: %w", rel, info.Size(), ErrSkipped)
	}

	var content []byte
	if si.reader != nil {
		content, err = si.reader.ReadFile(ctx, absolutePath, true)
	} else {
		content, err = os.ReadFile(native)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return SourceFile{}, "", fmt.Errorf("%s: gone: %w", rel, ErrSkipped)
	}
	if err != nil {
		return SourceFile{}, "", fmt.Errorf("reading %s: %w", rel, err)
	}
	if fscache.IsBinaryContent(content) {
		return SourceFile{}, "", fmt.Errorf("%s: binary: %w", rel, ErrSkipped)
	}

	text := string(content)
	return SourceFile{
		Path:         absolutePath,
		RelativePath: rel,
		Kind:         classify.Kind(absolutePath).String(),
		SizeBytes:    info.Size(),
		ModTime:      info.ModTime(),
		LineCount:    strings.Count(text, "\n") + 1,
	}, text, nil
}

func (si *SourceIndex) store(file SourceFile, content string) error {
	si.mu.Lock()
	defer si.mu.Unlock()

	doc := bleveDocument{Content: content, Path: file.RelativePath, Kind: file.Kind}
	if err := si.bleve.Index(file.RelativePath, doc); err != nil {
		return fmt.Errorf("indexing %s: %w", file.RelativePath, err)
	}
	if _, exists := si.files[file.RelativePath]; !exists {
		idx := sort.SearchStrings(si.sortedPaths, file.RelativePath)
		si.sortedPaths = append(si.sortedPaths, "")
		copy(si.sortedPaths[idx+1:], si.sortedPaths[idx:])
		si.sortedPaths[idx] = file.RelativePath
	}
	si.files[file.RelativePath] = file
	si.contents[file.RelativePath] = content
	return nil
}

// Remove drops one file by relative path. Returns false if it was not indexed.
func (si *SourceIndex) Remove(relativePath string) bool {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.removeLocked(relativePath)
}

func (si *SourceIndex) removeLocked(rel string) bool {
	if _, ok := si.files[rel]; !ok {
		return false
	}
	delete(si.files, rel)
	delete(si.contents, rel)
	if err := si.bleve.Delete(rel); err != nil {
		si.logger.Warn("failed to remove document", "path", rel, "error", err)
	}
	idx := sort.SearchStrings(si.sortedPaths, rel)
	if idx < len(si.sortedPaths) && si.sortedPaths[idx] == rel {
		si.sortedPaths = append(si.sortedPaths[:idx], si.sortedPaths[idx+1:]...)
	}
	return true
}

// RemoveDir drops every file under the relative directory and returns how
// many were removed.
func (si *SourceIndex) RemoveDir(relativeDir string) int {
	prefix := strings.TrimSuffix(relativeDir, "/") + "/"

	si.mu.Lock()
	defer si.mu.Unlock()

	start := sort.SearchStrings(si.sortedPaths, prefix)
	var doomed []string
	for _, p := range si.sortedPaths[start:] {
		if !strings.HasPrefix(p, prefix) {
			break
		}
		doomed = append(doomed, p)
	}
	for _, p := range doomed {
		si.removeLocked(p)
	}
	return len(doomed)
}

// File returns the metadata for a relative path.
func (si *SourceIndex) File(relativePath string) (SourceFile, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()
	f, ok := si.files[relativePath]
	return f, ok
}

// Content returns the indexed content of a relative path.
func (si *SourceIndex) Content(relativePath string) (string, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()
	c, ok := si.contents[strings.ReplaceAll(relativePath, "\\", "/")]
	return c, ok
}

// Files returns all indexed files sorted by relative path.
func (si *SourceIndex) Files() []SourceFile {
	si.mu.RLock()
	defer si.mu.RUnlock()
	out := make([]SourceFile, 0, len(si.sortedPaths))
	for _, p := range si.sortedPaths {
		out = append(out, si.files[p])
	}
	return out
}

// Count returns the number of indexed files.
func (si *SourceIndex) Count() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.files)
}

// TotalSizeBytes returns the summed size of all indexed files.
func (si *SourceIndex) TotalSizeBytes() int64 {
	si.mu.RLock()
	defer si.mu.RUnlock()
	var total int64
	for _, f := range si.files {
		total += f.SizeBytes
	}
	return total
}

// KindCounts returns the number of indexed files per kind.
func (si *SourceIndex) KindCounts() map[string]int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	counts := make(map[string]int)
	for _, f := range si.files {
		counts[f.Kind]++
	}
	return counts
}

// Clear empties the index.
func (si *SourceIndex) Clear() error {
	si.mu.Lock()
	defer si.mu.Unlock()

	if err := si.bleve.Close(); err != nil {
		return fmt.Errorf("closing old index: %w", err)
	}
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("creating new index: %w", err)
	}
	si.bleve = fresh
	si.files = make(map[string]SourceFile)
	si.contents = make(map[string]string)
	si.sortedPaths = nil
	return nil
}

// Close releases the Bleve index.
func (si *SourceIndex) Close() error {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.bleve.Close()
}

// relative converts an absolute forward-slash path to a root-relative one.
func (si *SourceIndex) relative(absolutePath string) (string, bool) {
	prefix := strings.TrimSuffix(si.rootDir, "/") + "/"
	if !strings.HasPrefix(absolutePath, prefix) {
		return "", false
	}
	return strings.TrimPrefix(absolutePath, prefix), true
}
