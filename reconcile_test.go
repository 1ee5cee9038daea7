package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lexandro/buildwatch/classify"
	"github.com/lexandro/buildwatch/ignore"
	"github.com/lexandro/buildwatch/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(kind, path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, kind+" "+filepath.Base(path))
}

func (e *eventLog) sorted() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]string(nil), e.events...)
	sort.Strings(out)
	return out
}

func (e *eventLog) OnFileUpdated(_ context.Context, p string) { e.add("updated", p) }
func (e *eventLog) OnFileAdded(_ context.Context, p string)   { e.add("added", p) }
func (e *eventLog) OnFileDeleted(_ context.Context, p string) { e.add("deleted", p) }
func (e *eventLog) OnDirAdded(_ context.Context, p string)    { e.add("dirAdded", p) }
func (e *eventLog) OnDirDeleted(_ context.Context, p string)  { e.add("dirDeleted", p) }

func newTestReconciler(t *testing.T, files map[string]string) (*reconciler, string) {
	t.Helper()
	rootDir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(rootDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	matcher := ignore.NewMatcher(ignore.MatcherOptions{RootDir: rootDir})
	idx, err := index.NewSourceIndex(index.Options{
		RootDir: rootDir,
		Ignore:  matcher,
		Logger:  logger,
		Filter:  classify.IsRelevantFile,
	})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	_, err = idx.Reindex(context.Background())
	require.NoError(t, err)

	return &reconciler{
		rootDir:  rootDir,
		index:    idx,
		ignore:   matcher,
		interval: 10 * time.Millisecond,
		logger:   logger,
	}, rootDir
}

func Test_Reconciler_InSync(t *testing.T) {
	r, _ := newTestReconciler(t, map[string]string{
		"src/app.ts":     "export {}\n",
		"src/button.tsx": "export {}\n",
	})

	events := &eventLog{}
	result := r.reconcile(context.Background(), events)

	assert.Zero(t, result.MissingFiles+result.StaleFiles+result.ModifiedFiles)
	assert.Empty(t, events.sorted())
}

func Test_Reconciler_ReportsDifferences(t *testing.T) {
	r, rootDir := newTestReconciler(t, map[string]string{
		"src/app.ts":  "export {}\n",
		"src/old.ts":  "export {}\n",
		"src/keep.ts": "export {}\n",
	})

	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "src", "new.ts"), []byte("export {}\n"), 0644))
	require.NoError(t, os.Remove(filepath.Join(rootDir, "src", "old.ts")))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(rootDir, "src", "app.ts"), later, later))
	// Not a source file; never indexed and never reported.
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "notes.txt"), []byte("x"), 0644))

	events := &eventLog{}
	result := r.reconcile(context.Background(), events)

	assert.Equal(t, 1, result.MissingFiles)
	assert.Equal(t, 1, result.StaleFiles)
	assert.Equal(t, 1, result.ModifiedFiles)
	assert.Equal(t, []string{"added new.ts", "deleted old.ts", "updated app.ts"}, events.sorted())
}

func Test_Reconciler_SkipsIgnoredDirs(t *testing.T) {
	r, rootDir := newTestReconciler(t, map[string]string{
		"src/app.ts": "export {}\n",
	})
	dep := filepath.Join(rootDir, "node_modules", "lib")
	require.NoError(t, os.MkdirAll(dep, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dep, "index.ts"), []byte("export {}\n"), 0644))

	events := &eventLog{}
	r.reconcile(context.Background(), events)

	assert.Empty(t, events.sorted())
}

func Test_Reconciler_RunStopsOnCancel(t *testing.T) {
	r, rootDir := newTestReconciler(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "late.ts"), []byte("export {}\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	events := &eventLog{}
	done := make(chan struct{})
	go func() {
		r.Run(ctx, events)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(events.sorted()) > 0
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Contains(t, events.sorted(), "added late.ts")
}
