package rebuild

import (
	"slices"

	"github.com/lexandro/buildwatch/changeset"
	"github.com/lexandro/buildwatch/classify"
)

// Annotate fills in the fields the watch listener leaves empty: the combined
// list of changed files, their sorted extensions and the per-kind change flags.
func Annotate(s changeset.Snapshot) changeset.Snapshot {
	s.FilesChanged = nil
	s.ChangedExtensions = nil
	s.HasScriptChanges = false
	s.HasStyleChanges = false

	seen := make(map[string]struct{})
	for _, group := range [][]string{s.FilesAdded, s.FilesUpdated, s.FilesDeleted} {
		for _, p := range group {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			s.FilesChanged = append(s.FilesChanged, p)

			if ext := classify.Extension(p); ext != "" && !slices.Contains(s.ChangedExtensions, ext) {
				s.ChangedExtensions = append(s.ChangedExtensions, ext)
			}
			switch classify.Kind(p) {
			case classify.KindScript, classify.KindMarkup:
				s.HasScriptChanges = true
			case classify.KindStyle:
				s.HasStyleChanges = true
			}
		}
	}
	if s.FilesChanged == nil {
		s.FilesChanged = []string{}
	}
	if s.ChangedExtensions == nil {
		s.ChangedExtensions = []string{}
	}
	slices.Sort(s.ChangedExtensions)
	s.HasBuildChanges = s.ConfigUpdated || s.HasScriptChanges || s.HasStyleChanges ||
		len(s.DirsAdded) > 0 || len(s.DirsDeleted) > 0
	return s
}
