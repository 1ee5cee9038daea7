package changeset

import (
	"sync"
	"time"
)

// FileBucket selects which file collection a path is recorded in.
type FileBucket int

const (
	FilesAdded FileBucket = iota
	FilesDeleted
	FilesUpdated
)

func (b FileBucket) String() string {
	switch b {
	case FilesAdded:
		return "filesAdded"
	case FilesDeleted:
		return "filesDeleted"
	case FilesUpdated:
		return "filesUpdated"
	default:
		return "unknown"
	}
}

// DirBucket selects which directory collection a path is recorded in.
type DirBucket int

const (
	DirsAdded DirBucket = iota
	DirsDeleted
)

func (b DirBucket) String() string {
	if b == DirsDeleted {
		return "dirsDeleted"
	}
	return "dirsAdded"
}

// pathSet is an insertion-ordered set of paths.
type pathSet struct {
	index map[string]struct{}
	order []string
}

func newPathSet() *pathSet {
	return &pathSet{index: make(map[string]struct{})}
}

func (s *pathSet) add(path string) bool {
	if _, exists := s.index[path]; exists {
		return false
	}
	s.index[path] = struct{}{}
	s.order = append(s.order, path)
	return true
}

func (s *pathSet) len() int {
	return len(s.order)
}

// slice returns a copy; never nil so snapshots serialize as [] rather than null.
func (s *pathSet) slice() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *pathSet) reset() {
	clear(s.index)
	s.order = s.order[:0]
}

// buffer is the mutable counterpart of a Snapshot.
type buffer struct {
	files          [3]*pathSet
	dirs           [2]*pathSet
	configUpdated  bool
	hasCopyChanges bool
}

func newBuffer() *buffer {
	b := &buffer{}
	for i := range b.files {
		b.files[i] = newPathSet()
	}
	for i := range b.dirs {
		b.dirs[i] = newPathSet()
	}
	return b
}

func (b *buffer) freeze() Snapshot {
	return Snapshot{
		CreatedAt:         time.Now(),
		DirsAdded:         b.dirs[DirsAdded].slice(),
		DirsDeleted:       b.dirs[DirsDeleted].slice(),
		FilesAdded:        b.files[FilesAdded].slice(),
		FilesDeleted:      b.files[FilesDeleted].slice(),
		FilesUpdated:      b.files[FilesUpdated].slice(),
		ConfigUpdated:     b.configUpdated,
		HasCopyChanges:    b.hasCopyChanges,
		FilesChanged:      []string{},
		ChangedExtensions: []string{},
	}
}

func (b *buffer) reset() {
	for _, s := range b.files {
		s.reset()
	}
	for _, s := range b.dirs {
		s.reset()
	}
	b.configUpdated = false
	b.hasCopyChanges = false
}

// Accumulator is the live change buffer of a watch session.
//
// It holds two buffers. SnapshotAndReset swaps the active pointer to the spare
// (already empty) buffer under the lock and freezes the retired one afterwards,
// so a writer never sees a half-cleared buffer and no write lands in a buffer
// being frozen.
type Accumulator struct {
	mu     sync.Mutex
	active *buffer
	spare  *buffer
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		active: newBuffer(),
		spare:  newBuffer(),
	}
}

// AddFile records path in the given file bucket. Returns false if it was already there.
func (a *Accumulator) AddFile(path string, bucket FileBucket) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active.files[bucket].add(path)
}

// AddDir records path in the given directory bucket. Returns false if it was already there.
func (a *Accumulator) AddDir(path string, bucket DirBucket) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active.dirs[bucket].add(path)
}

// MarkConfigUpdated flags that the build config file changed.
func (a *Accumulator) MarkConfigUpdated() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active.configUpdated = true
}

// MarkCopyChanges flags that a copy-task file or directory changed.
func (a *Accumulator) MarkCopyChanges() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active.hasCopyChanges = true
}

// Len returns the number of paths recorded across all collections.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, s := range a.active.files {
		n += s.len()
	}
	for _, s := range a.active.dirs {
		n += s.len()
	}
	return n
}

// SnapshotAndReset returns a frozen copy of everything recorded since the last
// call and leaves the accumulator empty.
func (a *Accumulator) SnapshotAndReset() Snapshot {
	a.mu.Lock()
	retired := a.active
	next := a.spare
	if next == nil {
		// A concurrent flush still holds the spare.
		next = newBuffer()
	}
	a.active = next
	a.spare = nil
	a.mu.Unlock()

	snapshot := retired.freeze()
	retired.reset()

	a.mu.Lock()
	if a.spare == nil {
		a.spare = retired
	}
	a.mu.Unlock()

	return snapshot
}
