package changeset

import (
	"fmt"
	"sync"
	"testing"
)

func Test_Accumulator_DedupAllBuckets(t *testing.T) {
	acc := NewAccumulator()

	for _, bucket := range []FileBucket{FilesAdded, FilesDeleted, FilesUpdated} {
		if !acc.AddFile("/proj/src/foo.ts", bucket) {
			t.Errorf("%s: expected first add to report new path", bucket)
		}
		if acc.AddFile("/proj/src/foo.ts", bucket) {
			t.Errorf("%s: expected second add to report duplicate", bucket)
		}
	}
	for _, bucket := range []DirBucket{DirsAdded, DirsDeleted} {
		acc.AddDir("/proj/src/components", bucket)
		acc.AddDir("/proj/src/components", bucket)
	}

	snap := acc.SnapshotAndReset()

	collections := map[string][]string{
		"filesAdded":   snap.FilesAdded,
		"filesDeleted": snap.FilesDeleted,
		"filesUpdated": snap.FilesUpdated,
		"dirsAdded":    snap.DirsAdded,
		"dirsDeleted":  snap.DirsDeleted,
	}
	for name, paths := range collections {
		if len(paths) != 1 {
			t.Errorf("%s: expected 1 entry, got %d (%v)", name, len(paths), paths)
		}
	}
}

func Test_Accumulator_SnapshotAndReset(t *testing.T) {
	acc := NewAccumulator()
	acc.AddFile("/proj/src/a.ts", FilesAdded)
	acc.AddFile("/proj/src/b.ts", FilesAdded)
	acc.MarkConfigUpdated()
	acc.MarkCopyChanges()

	snap := acc.SnapshotAndReset()

	if len(snap.FilesAdded) != 2 || snap.FilesAdded[0] != "/proj/src/a.ts" || snap.FilesAdded[1] != "/proj/src/b.ts" {
		t.Errorf("expected insertion order [a.ts b.ts], got %v", snap.FilesAdded)
	}
	if !snap.ConfigUpdated || !snap.HasCopyChanges {
		t.Error("expected both flags to be set in snapshot")
	}
	if snap.IsEmpty() {
		t.Error("expected non-empty snapshot")
	}

	// Accumulator is empty again
	next := acc.SnapshotAndReset()
	if !next.IsEmpty() {
		t.Errorf("expected empty snapshot after reset, got %s", next.Summary())
	}
	if acc.Len() != 0 {
		t.Errorf("expected 0 recorded paths, got %d", acc.Len())
	}

	// A path from the previous cycle may be recorded again
	if !acc.AddFile("/proj/src/a.ts", FilesAdded) {
		t.Error("expected path to be new in the next cycle")
	}
}

func Test_Accumulator_SnapshotIsNotAliased(t *testing.T) {
	acc := NewAccumulator()
	acc.AddFile("/proj/src/a.ts", FilesUpdated)
	snap := acc.SnapshotAndReset()

	// Reusing the retired buffer must not rewrite the frozen slice
	acc.AddFile("/proj/src/z.ts", FilesUpdated)
	acc.SnapshotAndReset()
	acc.AddFile("/proj/src/y.ts", FilesUpdated)

	if snap.FilesUpdated[0] != "/proj/src/a.ts" {
		t.Errorf("expected frozen snapshot to keep a.ts, got %v", snap.FilesUpdated)
	}
}

func Test_Accumulator_ConcurrentFlushLosesNothing(t *testing.T) {
	acc := NewAccumulator()
	const total = 2000

	var collected []string
	var collectMu sync.Mutex
	collect := func(s Snapshot) {
		collectMu.Lock()
		collected = append(collected, s.FilesUpdated...)
		collectMu.Unlock()
	}

	done := make(chan struct{})
	var flusher sync.WaitGroup
	flusher.Add(1)
	go func() {
		defer flusher.Done()
		for {
			select {
			case <-done:
				return
			default:
				collect(acc.SnapshotAndReset())
			}
		}
	}()

	for i := 0; i < total; i++ {
		acc.AddFile(fmt.Sprintf("/proj/src/f%d.ts", i), FilesUpdated)
	}
	close(done)
	flusher.Wait()
	collect(acc.SnapshotAndReset())

	if len(collected) != total {
		t.Fatalf("expected %d paths across snapshots, got %d", total, len(collected))
	}
}

func Test_Snapshot_IsEmpty(t *testing.T) {
	if !(Snapshot{}).IsEmpty() {
		t.Error("expected zero snapshot to be empty")
	}
	if (Snapshot{ConfigUpdated: true}).IsEmpty() {
		t.Error("expected config flag to make snapshot non-empty")
	}
	if (Snapshot{HasCopyChanges: true}).IsEmpty() {
		t.Error("expected copy flag to make snapshot non-empty")
	}
	if (Snapshot{DirsDeleted: []string{"/proj/src"}}).IsEmpty() {
		t.Error("expected deleted dir to make snapshot non-empty")
	}
}

func Test_Snapshot_PlaceholdersAreEmpty(t *testing.T) {
	acc := NewAccumulator()
	acc.AddFile("/proj/src/app.css", FilesUpdated)
	snap := acc.SnapshotAndReset()

	if snap.FilesChanged == nil || len(snap.FilesChanged) != 0 {
		t.Errorf("expected empty FilesChanged, got %v", snap.FilesChanged)
	}
	if len(snap.ChangedExtensions) != 0 {
		t.Errorf("expected empty ChangedExtensions, got %v", snap.ChangedExtensions)
	}
	if snap.HasBuildChanges || snap.HasScriptChanges || snap.HasStyleChanges {
		t.Error("expected derived flags to be false")
	}
}

func Test_Merge(t *testing.T) {
	earlier := Snapshot{
		ID:           "first",
		FilesAdded:   []string{"/p/a.ts"},
		FilesUpdated: []string{"/p/b.ts"},
	}
	later := Snapshot{
		ID:            "second",
		FilesAdded:    []string{"/p/a.ts", "/p/c.ts"},
		DirsDeleted:   []string{"/p/old"},
		ConfigUpdated: true,
	}

	merged := Merge(earlier, later)

	if merged.ID != "second" {
		t.Errorf("expected later ID, got %q", merged.ID)
	}
	if len(merged.FilesAdded) != 2 {
		t.Errorf("expected 2 deduplicated added files, got %v", merged.FilesAdded)
	}
	if len(merged.FilesUpdated) != 1 || len(merged.DirsDeleted) != 1 {
		t.Errorf("expected collections from both snapshots, got %+v", merged)
	}
	if !merged.ConfigUpdated {
		t.Error("expected config flag to be ORed")
	}
}

func Test_Snapshot_Summary(t *testing.T) {
	s := Snapshot{ConfigUpdated: true, FilesAdded: []string{"/a", "/b"}, DirsDeleted: []string{"/d"}}
	want := "config, +2 files, -1 dirs"
	if got := s.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
	if got := (Snapshot{}).Summary(); got != "no changes" {
		t.Errorf("Summary() of empty = %q", got)
	}
}
