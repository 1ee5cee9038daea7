// Package changeset accumulates classified filesystem changes for one debounce cycle
// and freezes them into immutable snapshots.
package changeset

import (
	"fmt"
	"strings"
	"time"
)

// Snapshot is a frozen copy of one debounce cycle's accumulated changes.
// The accumulator never keeps references to a snapshot's slices.
type Snapshot struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	DirsAdded    []string `json:"dirsAdded"`
	DirsDeleted  []string `json:"dirsDeleted"`
	FilesAdded   []string `json:"filesAdded"`
	FilesDeleted []string `json:"filesDeleted"`
	FilesUpdated []string `json:"filesUpdated"`

	ConfigUpdated  bool `json:"configUpdated"`
	HasCopyChanges bool `json:"hasCopyChanges"`

	// Filled in by the build side. The watch core always leaves them empty.
	FilesChanged      []string `json:"filesChanged"`
	ChangedExtensions []string `json:"changedExtensions"`
	HasBuildChanges   bool     `json:"hasBuildChanges"`
	HasScriptChanges  bool     `json:"hasScriptChanges"`
	HasStyleChanges   bool     `json:"hasStyleChanges"`
}

// IsEmpty reports whether the snapshot carries no change at all.
// Empty snapshots are never forwarded to a rebuild.
func (s Snapshot) IsEmpty() bool {
	return !s.ConfigUpdated &&
		!s.HasCopyChanges &&
		len(s.DirsAdded) == 0 &&
		len(s.DirsDeleted) == 0 &&
		len(s.FilesAdded) == 0 &&
		len(s.FilesDeleted) == 0 &&
		len(s.FilesUpdated) == 0
}

// Summary renders a compact one-line description, e.g. "config, +3 files, -1 dirs".
func (s Snapshot) Summary() string {
	var parts []string
	if s.ConfigUpdated {
		parts = append(parts, "config")
	}
	if s.HasCopyChanges {
		parts = append(parts, "copy")
	}
	appendCount := func(prefix string, n int, noun string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s%d %s", prefix, n, noun))
		}
	}
	appendCount("+", len(s.FilesAdded), "files")
	appendCount("~", len(s.FilesUpdated), "files")
	appendCount("-", len(s.FilesDeleted), "files")
	appendCount("+", len(s.DirsAdded), "dirs")
	appendCount("-", len(s.DirsDeleted), "dirs")
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// Merge combines two snapshots in order: later entries are appended after
// earlier ones and duplicates within a collection are dropped. Flags are ORed.
// The result keeps the ID and timestamp of the later snapshot.
func Merge(earlier, later Snapshot) Snapshot {
	return Snapshot{
		ID:                later.ID,
		CreatedAt:         later.CreatedAt,
		DirsAdded:         union(earlier.DirsAdded, later.DirsAdded),
		DirsDeleted:       union(earlier.DirsDeleted, later.DirsDeleted),
		FilesAdded:        union(earlier.FilesAdded, later.FilesAdded),
		FilesDeleted:      union(earlier.FilesDeleted, later.FilesDeleted),
		FilesUpdated:      union(earlier.FilesUpdated, later.FilesUpdated),
		ConfigUpdated:     earlier.ConfigUpdated || later.ConfigUpdated,
		HasCopyChanges:    earlier.HasCopyChanges || later.HasCopyChanges,
		FilesChanged:      []string{},
		ChangedExtensions: []string{},
	}
}

func union(a, b []string) []string {
	set := newPathSet()
	for _, p := range a {
		set.add(p)
	}
	for _, p := range b {
		set.add(p)
	}
	return set.slice()
}
