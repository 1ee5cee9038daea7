// Package listener turns filesystem events into coalesced rebuild requests.
//
// A Listener receives the five event kinds from an event source, classifies
// each path, records relevant changes in its accumulator and re-arms a single
// debounce timer. When the timer fires after a quiet period the accumulated
// changes are frozen into a snapshot and handed to the rebuild trigger.
//
// Handlers must be called serially (watcher.Watcher does this). The timer
// fires on its own goroutine; the accumulator's snapshot swap is the only
// point where the two meet.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lexandro/buildwatch/changeset"
	"github.com/lexandro/buildwatch/classify"
	"github.com/lexandro/buildwatch/watcher"
)

// FileSystem is the caching filesystem the listener consults and invalidates.
type FileSystem interface {
	// HasFileChanged reads path bypassing the cache and reports whether its
	// content differs from the cached version.
	HasFileChanged(ctx context.Context, path string) (bool, error)
	ClearFileCache(path string)
	ClearDirCache(path string)
	// Readdir lists absolute file paths under path. On failure it returns
	// the entries found so far together with the error.
	Readdir(ctx context.Context, path string, recursive bool) ([]string, error)
	ReadFile(ctx context.Context, path string, useCache bool) ([]byte, error)
}

// Trigger accepts a non-empty snapshot and owns the build that follows.
type Trigger interface {
	TriggerRebuild(snapshot changeset.Snapshot) error
}

// Config holds what the listener needs from the project configuration.
type Config struct {
	ConfigPath string // build config file; a change sets ConfigUpdated
	RootDir    string // used for log output only
	Logger     *slog.Logger
	CopyTasks  classify.CopyMatcher
	Delay      time.Duration // quiescence window, defaults to watcher.DefaultDelay
}

// Stats counts what a listener has seen since it was created.
type Stats struct {
	Events          int64 `json:"events"`
	Ignored         int64 `json:"ignored"`
	Failures        int64 `json:"failures"`
	Cycles          int64 `json:"cycles"`
	DiscardedCycles int64 `json:"discardedCycles"`
}

// Listener binds event handlers to the accumulator, scheduler and rebuild trigger.
type Listener struct {
	configPath string
	rootDir    string
	logger     *slog.Logger
	copyTasks  classify.CopyMatcher

	fs        FileSystem
	trigger   Trigger
	acc       *changeset.Accumulator
	scheduler *watcher.Scheduler

	// cycleMu is held while a rebuild cycle runs.
	cycleMu sync.Mutex
	closed  bool

	events    atomic.Int64
	ignored   atomic.Int64
	failures  atomic.Int64
	cycles    atomic.Int64
	discarded atomic.Int64
}

var _ watcher.Handler = (*Listener)(nil)

// New creates a listener. The config path, when set, must be absolute.
func New(cfg Config, fs FileSystem, trigger Trigger) (*Listener, error) {
	if fs == nil || trigger == nil {
		return nil, fmt.Errorf("listener needs a filesystem and a rebuild trigger")
	}

	configPath := cfg.ConfigPath
	if configPath != "" {
		normalized, err := classify.NormalizePath(configPath)
		if err != nil {
			return nil, fmt.Errorf("config path: %w", err)
		}
		configPath = normalized
	}

	rootDir := cfg.RootDir
	if rootDir != "" {
		if normalized, err := classify.NormalizePath(rootDir); err == nil {
			rootDir = normalized
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		configPath: configPath,
		rootDir:    rootDir,
		logger:     logger,
		copyTasks:  cfg.CopyTasks,
		fs:         fs,
		trigger:    trigger,
		acc:        changeset.NewAccumulator(),
		scheduler:  watcher.NewScheduler(cfg.Delay),
	}, nil
}

// OnFileUpdated handles a modified file.
func (l *Listener) OnFileUpdated(ctx context.Context, filePath string) {
	l.handle("fileUpdate", filePath, func(p string) (bool, error) {
		return l.fileUpdated(ctx, p)
	})
}

// OnFileAdded handles a created file.
func (l *Listener) OnFileAdded(ctx context.Context, filePath string) {
	l.handle("fileAdd", filePath, func(p string) (bool, error) {
		return l.fileAdded(ctx, p)
	})
}

// OnFileDeleted handles a removed file.
func (l *Listener) OnFileDeleted(ctx context.Context, filePath string) {
	l.handle("fileDelete", filePath, func(p string) (bool, error) {
		return l.fileDeleted(p), nil
	})
}

// OnDirAdded handles a created directory, expanding it into file additions.
func (l *Listener) OnDirAdded(ctx context.Context, dirPath string) {
	l.handle("dirAdd", dirPath, func(p string) (bool, error) {
		return l.dirAdded(ctx, p)
	})
}

// OnDirDeleted handles a removed directory. Descendants are not enumerated.
func (l *Listener) OnDirDeleted(ctx context.Context, dirPath string) {
	l.handle("dirDelete", dirPath, func(p string) (bool, error) {
		return l.dirDeleted(p), nil
	})
}

// handle runs the steps shared by every handler. Failures are logged and
// swallowed; whatever was recorded before a failure stays recorded and is
// still scheduled.
func (l *Listener) handle(op string, rawPath string, fn func(path string) (bool, error)) {
	l.events.Add(1)
	defer func() {
		if r := recover(); r != nil {
			l.failures.Add(1)
			l.logger.Error("watcher handler panicked", "op", op, "path", rawPath, "panic", r)
		}
	}()

	normalized, err := classify.NormalizePath(rawPath)
	if err != nil {
		l.fail(op, &ClassificationError{Path: rawPath, Err: err})
		return
	}

	if classify.IsGeneratedDeclarationsFile(normalized) {
		l.ignored.Add(1)
		return
	}

	changed, err := fn(normalized)
	if changed {
		l.scheduler.Schedule(l.startRebuildCycle)
	}
	if err != nil {
		l.fail(op, err)
	}
}

func (l *Listener) fail(op string, err error) {
	l.failures.Add(1)
	l.logger.Error("watcher, "+op, "error", err)
}

// recordConfigOrCopy applies the config and copy-task rules to a file event.
// The config file always lands in filesUpdated; copy-task files land in bucket.
func (l *Listener) recordConfigOrCopy(op string, filePath string, bucket changeset.FileBucket) bool {
	switch {
	case classify.IsConfigFile(filePath, l.configPath):
		l.logger.Debug("watcher, "+op+", config", "path", l.relPath(filePath))
		l.acc.MarkConfigUpdated()
		l.acc.AddFile(filePath, changeset.FilesUpdated)
		return true
	case classify.IsCopyTaskFile(filePath, l.copyTasks):
		l.logger.Debug("watcher, "+op+", copy task file", "path", l.relPath(filePath))
		l.acc.MarkCopyChanges()
		l.acc.AddFile(filePath, bucket)
		return true
	}
	return false
}

func (l *Listener) fileUpdated(ctx context.Context, filePath string) (bool, error) {
	changed := l.recordConfigOrCopy("fileUpdate", filePath, changeset.FilesUpdated)

	if !classify.IsRelevantFile(filePath) {
		l.clearFileCache(filePath)
		return changed, nil
	}

	hasChanged, err := l.fs.HasFileChanged(ctx, filePath)
	if err != nil {
		return changed, &CollaboratorIOError{Op: "hasFileChanged", Path: filePath, Err: err}
	}
	if !hasChanged {
		l.logger.Debug("watcher, fileUpdate, file unchanged", "path", l.relPath(filePath))
		return changed, nil
	}

	l.logger.Debug("watcher, fileUpdate", "path", l.relPath(filePath))
	l.acc.AddFile(filePath, changeset.FilesUpdated)
	return true, nil
}

func (l *Listener) fileAdded(ctx context.Context, filePath string) (bool, error) {
	l.logger.Debug("watcher, fileAdd", "path", l.relPath(filePath))
	changed := l.recordConfigOrCopy("fileAdd", filePath, changeset.FilesAdded)

	if !classify.IsRelevantFile(filePath) {
		l.clearFileCache(filePath)
		return changed, nil
	}

	// Fresh read so the cache holds the new content before the build asks for it.
	if _, err := l.fs.ReadFile(ctx, filePath, false); err != nil {
		return changed, &CollaboratorIOError{Op: "readFile", Path: filePath, Err: err}
	}
	l.acc.AddFile(filePath, changeset.FilesAdded)
	return true, nil
}

func (l *Listener) fileDeleted(filePath string) bool {
	l.logger.Debug("watcher, fileDelete", "path", l.relPath(filePath))
	l.fs.ClearFileCache(filePath)

	changed := l.recordConfigOrCopy("fileDelete", filePath, changeset.FilesDeleted)
	if classify.IsRelevantFile(filePath) {
		l.acc.AddFile(filePath, changeset.FilesDeleted)
		changed = true
	}
	return changed
}

func (l *Listener) dirAdded(ctx context.Context, dirPath string) (bool, error) {
	l.logger.Debug("watcher, dirAdd", "path", l.relPath(dirPath))
	l.fs.ClearDirCache(dirPath)

	// The OS reports only the directory; files created with it must be listed.
	items, err := l.fs.Readdir(ctx, dirPath, true)
	recorded := false
	for _, item := range items {
		filePath, normErr := classify.NormalizePath(item)
		if normErr != nil {
			l.logger.Debug("watcher, dirAdd, skipped entry", "path", item, "error", normErr)
			continue
		}
		if classify.IsGeneratedDeclarationsFile(filePath) {
			continue
		}
		l.acc.AddFile(filePath, changeset.FilesAdded)
		recorded = true
	}
	if err != nil {
		return recorded, &CollaboratorIOError{Op: "readdir", Path: dirPath, Err: err}
	}

	l.acc.AddDir(dirPath, changeset.DirsAdded)
	if classify.IsCopyTaskFile(dirPath, l.copyTasks) {
		l.acc.MarkCopyChanges()
	}
	return true, nil
}

func (l *Listener) dirDeleted(dirPath string) bool {
	l.logger.Debug("watcher, dirDelete", "path", l.relPath(dirPath))
	l.fs.ClearDirCache(dirPath)

	l.acc.AddDir(dirPath, changeset.DirsDeleted)
	if classify.IsCopyTaskFile(dirPath, l.copyTasks) {
		l.acc.MarkCopyChanges()
	}
	return true
}

func (l *Listener) clearFileCache(filePath string) {
	l.fs.ClearFileCache(filePath)
	l.logger.Debug("clear file cache", "path", filePath)
}

// startRebuildCycle runs when the quiescence window elapses.
func (l *Listener) startRebuildCycle() {
	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()
	if l.closed {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.failures.Add(1)
			l.logger.Error("watcher, startRebuild panicked", "panic", r)
		}
	}()

	snapshot := l.acc.SnapshotAndReset()
	if snapshot.IsEmpty() {
		l.discarded.Add(1)
		return
	}

	l.cycles.Add(1)
	l.logger.Debug("watcher, startRebuild", "changes", snapshot.Summary())
	if err := l.trigger.TriggerRebuild(snapshot); err != nil {
		l.fail("startRebuild", &CollaboratorIOError{Op: "triggerRebuild", Err: err})
	}
}

// Stats returns a copy of the listener's counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Events:          l.events.Load(),
		Ignored:         l.ignored.Load(),
		Failures:        l.failures.Load(),
		Cycles:          l.cycles.Load(),
		DiscardedCycles: l.discarded.Load(),
	}
}

// Subscribe feeds events from source into the listener. It blocks until
// the source stops.
func (l *Listener) Subscribe(ctx context.Context, source Source) {
	source.Run(ctx, l)
}

// Close cancels a pending rebuild cycle and stops scheduling new ones. A cycle
// already running is allowed to hand its snapshot to the trigger first.
func (l *Listener) Close() {
	l.scheduler.Stop()
	l.cycleMu.Lock()
	l.closed = true
	l.cycleMu.Unlock()
}

func (l *Listener) relPath(p string) string {
	if l.rootDir == "" {
		return p
	}
	if rel, ok := strings.CutPrefix(p, l.rootDir+"/"); ok {
		return rel
	}
	return p
}
