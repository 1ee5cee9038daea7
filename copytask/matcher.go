// Package copytask matches paths against the project's copy-task rules:
// files that are copied verbatim into the build output instead of compiled.
package copytask

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher matches absolute, slash-separated paths against glob patterns
// relative to the project root. A pattern without glob characters matches
// the named path and everything beneath it.
type Matcher struct {
	rootDir  string
	patterns []string
}

// NewMatcher validates patterns and returns a matcher rooted at rootDir.
// Backslashes in rootDir are accepted and converted.
func NewMatcher(rootDir string, patterns []string) (*Matcher, error) {
	m := &Matcher{rootDir: strings.TrimSuffix(strings.ReplaceAll(rootDir, "\\", "/"), "/")}
	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(strings.ReplaceAll(pattern, "\\", "/"), "./")
		pattern = strings.TrimSuffix(pattern, "/")
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid copy task pattern: %s", pattern)
		}
		m.patterns = append(m.patterns, pattern)
	}
	return m, nil
}

// Patterns returns the normalized patterns.
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Match reports whether path is covered by a copy task.
func (m *Matcher) Match(path string) bool {
	relativePath, ok := strings.CutPrefix(path, m.rootDir+"/")
	if !ok {
		return false
	}

	for _, pattern := range m.patterns {
		if !strings.ContainsAny(pattern, "*?[{") {
			if relativePath == pattern || strings.HasPrefix(relativePath, pattern+"/") {
				return true
			}
			continue
		}
		if matched, err := doublestar.Match(pattern, relativePath); err == nil && matched {
			return true
		}
	}
	return false
}
