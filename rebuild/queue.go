// Package rebuild runs builds for the change snapshots produced by the watch
// listener, one build at a time.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexandro/buildwatch/changeset"
)

// ErrQueueClosed is returned by TriggerRebuild after Close.
var ErrQueueClosed = errors.New("rebuild queue closed")

// Builder runs one build for a snapshot.
type Builder interface {
	Build(ctx context.Context, snapshot changeset.Snapshot) error
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context, snapshot changeset.Snapshot) error

func (f BuilderFunc) Build(ctx context.Context, snapshot changeset.Snapshot) error {
	return f(ctx, snapshot)
}

// Stats describes the queue's history.
type Stats struct {
	Builds       int
	Failures     int
	Merged       int
	Running      bool
	Pending      bool
	LastSnapshot *changeset.Snapshot
	LastError    string
	LastDuration time.Duration
	LastFinished time.Time
}

// Queue serializes builds. A snapshot triggered while a build is running waits
// for it; snapshots that pile up in the meantime are merged into one.
type Queue struct {
	builder Builder
	logger  *slog.Logger
	wake    chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	pending *changeset.Snapshot
	started bool
	closed  bool
	cancel  context.CancelFunc
	stats   Stats
}

// NewQueue creates a queue feeding builder. Call Start before triggering.
func NewQueue(builder Builder, logger *slog.Logger) *Queue {
	return &Queue{
		builder: builder,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the build loop. It stops when ctx is cancelled or Close is called.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	go q.run(ctx)
}

// TriggerRebuild enqueues a snapshot. It never blocks on a running build.
func (q *Queue) TriggerRebuild(snapshot changeset.Snapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.pending != nil {
		merged := changeset.Merge(*q.pending, snapshot)
		q.pending = &merged
		q.stats.Merged++
		q.logger.Debug("merged pending rebuild", "id", merged.ID, "changes", merged.Summary())
	} else {
		q.pending = &snapshot
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stats returns a copy of the queue's counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = q.pending != nil
	if s.LastSnapshot != nil {
		last := *s.LastSnapshot
		s.LastSnapshot = &last
	}
	return s
}

// Close stops accepting snapshots, cancels a running build and waits for the
// loop to exit. Pending snapshots are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	started := q.started
	cancel := q.cancel
	q.pending = nil
	q.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-q.done
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
		for {
			snapshot, ok := q.next()
			if !ok {
				break
			}
			q.build(ctx, snapshot)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (q *Queue) next() (changeset.Snapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil || q.closed {
		return changeset.Snapshot{}, false
	}
	snapshot := Annotate(*q.pending)
	q.pending = nil
	q.stats.Running = true
	return snapshot, true
}

func (q *Queue) build(ctx context.Context, snapshot changeset.Snapshot) {
	start := time.Now()
	q.logger.Info("build started", "id", snapshot.ID, "changes", snapshot.Summary())

	err := q.safeBuild(ctx, snapshot)
	elapsed := time.Since(start)

	q.mu.Lock()
	q.stats.Running = false
	q.stats.Builds++
	q.stats.LastSnapshot = &snapshot
	q.stats.LastDuration = elapsed
	q.stats.LastFinished = time.Now()
	q.stats.LastError = ""
	if err != nil {
		q.stats.Failures++
		q.stats.LastError = err.Error()
	}
	q.mu.Unlock()

	if err != nil {
		q.logger.Error("build failed", "id", snapshot.ID, "duration", elapsed, "error", err)
		return
	}
	q.logger.Info("build finished", "id", snapshot.ID, "duration", elapsed.Round(time.Millisecond))
}

func (q *Queue) safeBuild(ctx context.Context, snapshot changeset.Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build panicked: %v", r)
		}
	}()
	return q.builder.Build(ctx, snapshot)
}
