package rebuild

import (
	"context"
	"io"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"github.com/lexandro/buildwatch/changeset"
)

// Printer writes a colored summary of each snapshot.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	rootDir string

	header  *color.Color
	added   *color.Color
	updated *color.Color
	deleted *color.Color
	flag    *color.Color
}

// NewPrinter creates a printer writing to out. Paths are shown relative to rootDir.
func NewPrinter(out io.Writer, rootDir string, noColor bool) *Printer {
	p := &Printer{
		out:     out,
		rootDir: rootDir,
		header:  color.New(color.Bold),
		added:   color.New(color.FgGreen),
		updated: color.New(color.FgYellow),
		deleted: color.New(color.FgRed),
		flag:    color.New(color.FgCyan),
	}
	if noColor {
		for _, c := range []*color.Color{p.header, p.added, p.updated, p.deleted, p.flag} {
			c.DisableColor()
		}
	}
	return p
}

// Build prints the snapshot. It never fails.
func (p *Printer) Build(_ context.Context, s changeset.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	p.header.Fprintf(p.out, "build %s: %s\n", id, s.Summary())

	if s.ConfigUpdated {
		p.flag.Fprintln(p.out, "  * build config changed")
	}
	if s.HasCopyChanges {
		p.flag.Fprintln(p.out, "  * copy task changed")
	}
	p.list(p.added, "+", s.DirsAdded, "/")
	p.list(p.deleted, "-", s.DirsDeleted, "/")
	p.list(p.added, "+", s.FilesAdded, "")
	p.list(p.updated, "~", s.FilesUpdated, "")
	p.list(p.deleted, "-", s.FilesDeleted, "")
	return nil
}

func (p *Printer) list(c *color.Color, mark string, paths []string, suffix string) {
	for _, path := range paths {
		c.Fprintf(p.out, "  %s %s%s\n", mark, p.rel(path), suffix)
	}
}

func (p *Printer) rel(path string) string {
	if p.rootDir == "" {
		return path
	}
	rel, err := filepath.Rel(p.rootDir, filepath.FromSlash(path))
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

