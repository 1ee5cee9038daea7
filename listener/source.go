package listener

import (
	"context"
	"sync"

	"github.com/lexandro/buildwatch/watcher"
)

// Source delivers filesystem events to a handler until ctx is done.
// watcher.Watcher implements it.
type Source interface {
	Run(ctx context.Context, handler watcher.Handler)
}

// Merge combines sources into one. Each source runs in its own goroutine and
// handler calls are serialized, so the listener still sees one event at a time.
// Run returns once every source has stopped.
func Merge(sources ...Source) Source {
	return merged(sources)
}

type merged []Source

func (m merged) Run(ctx context.Context, handler watcher.Handler) {
	serial := &serialHandler{next: handler}
	var wg sync.WaitGroup
	for _, src := range m {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			src.Run(ctx, serial)
		}(src)
	}
	wg.Wait()
}

type serialHandler struct {
	mu   sync.Mutex
	next watcher.Handler
}

func (s *serialHandler) OnFileUpdated(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next.OnFileUpdated(ctx, path)
}

func (s *serialHandler) OnFileAdded(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next.OnFileAdded(ctx, path)
}

func (s *serialHandler) OnFileDeleted(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next.OnFileDeleted(ctx, path)
}

func (s *serialHandler) OnDirAdded(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next.OnDirAdded(ctx, path)
}

func (s *serialHandler) OnDirDeleted(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next.OnDirDeleted(ctx, path)
}
