package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"
)

// ProjectIgnoreFile holds watch-specific ignore rules, in .gitignore syntax.
const ProjectIgnoreFile = ".buildwatchignore"

// Matcher decides which paths the watch session never looks at.
// It combines default patterns, .gitignore rules, .buildwatchignore rules and custom patterns.
// Thread-safe: Reload() acquires a write lock, ShouldIgnore()/ShouldIgnoreDir() acquire a read lock.
type Matcher struct {
	mu             sync.RWMutex
	rootDir        string
	gitIgnore      gitignore.GitIgnore
	projectIgnore  gitignore.GitIgnore
	customPatterns []string
}

// MatcherOptions configures the ignore matcher.
type MatcherOptions struct {
	RootDir        string
	CustomPatterns []string // doublestar patterns relative to RootDir
}

// NewMatcher creates an ignore matcher rooted at options.RootDir.
func NewMatcher(options MatcherOptions) *Matcher {
	matcher := &Matcher{
		rootDir: options.RootDir,
	}
	for _, pattern := range options.CustomPatterns {
		pattern = filepath.ToSlash(strings.TrimSpace(pattern))
		if pattern != "" && doublestar.ValidatePattern(pattern) {
			matcher.customPatterns = append(matcher.customPatterns, pattern)
		}
	}
	matcher.gitIgnore, matcher.projectIgnore = loadIgnoreFiles(options.RootDir)
	return matcher
}

// IsIgnoreFile reports whether path is one of the ignore files Reload reads.
func (m *Matcher) IsIgnoreFile(absolutePath string) bool {
	dir, base := filepath.Split(filepath.FromSlash(absolutePath))
	if filepath.Clean(dir) != filepath.Clean(filepath.FromSlash(m.rootDir)) {
		return false
	}
	return base == ".gitignore" || base == ProjectIgnoreFile
}

// ShouldIgnore returns true if the given absolute path is excluded from watching.
func (m *Matcher) ShouldIgnore(absolutePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	relativePath, err := filepath.Rel(filepath.FromSlash(m.rootDir), filepath.FromSlash(absolutePath))
	if err != nil {
		relativePath = absolutePath
	}
	relativePath = filepath.ToSlash(relativePath)

	if matchesDefaultPatterns(relativePath) {
		return true
	}

	// Deleted paths no longer stat; they are matched as files.
	isDir := false
	if info, err := os.Stat(absolutePath); err == nil {
		isDir = info.IsDir()
	}

	// Relative() doesn't require the file to exist on disk
	for _, rules := range []gitignore.GitIgnore{m.gitIgnore, m.projectIgnore} {
		if rules == nil {
			continue
		}
		if match := rules.Relative(relativePath, isDir); match != nil && match.Ignore() {
			return true
		}
	}

	return m.matchesCustomPatterns(relativePath)
}

// ShouldIgnoreDir returns true if a directory should be skipped entirely during traversal.
func (m *Matcher) ShouldIgnoreDir(absolutePath string) bool {
	if _, ok := defaultIgnoredDirs[filepath.Base(absolutePath)]; ok {
		return true
	}
	return m.ShouldIgnore(absolutePath)
}

// matchesDefaultPatterns checks every path component against the default names
// and the base name against the default globs.
func matchesDefaultPatterns(relativePath string) bool {
	parts := strings.Split(relativePath, "/")
	for _, part := range parts[:len(parts)-1] {
		if _, ok := defaultIgnoredDirs[part]; ok {
			return true
		}
	}

	baseName := strings.ToLower(parts[len(parts)-1])
	if _, ok := defaultIgnoredDirs[baseName]; ok {
		return true
	}
	for _, pattern := range DefaultIgnoredFiles {
		if matched, err := filepath.Match(pattern, baseName); err == nil && matched {
			return true
		}
	}
	return false
}

// matchesCustomPatterns checks the relative path, then the base name.
func (m *Matcher) matchesCustomPatterns(relativePath string) bool {
	baseName := filepath.Base(relativePath)
	for _, pattern := range m.customPatterns {
		if matched, err := doublestar.Match(pattern, relativePath); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, baseName); err == nil && matched {
			return true
		}
	}
	return false
}

// Reload re-reads .gitignore and .buildwatchignore from disk.
// Used when the watcher reports a change to either file.
func (m *Matcher) Reload() {
	gitIgnore, projectIgnore := loadIgnoreFiles(m.rootDir)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gitIgnore = gitIgnore
	m.projectIgnore = projectIgnore
}

func loadIgnoreFiles(rootDir string) (gitignore.GitIgnore, gitignore.GitIgnore) {
	return loadIgnoreFile(filepath.Join(rootDir, ".gitignore"), rootDir),
		loadIgnoreFile(filepath.Join(rootDir, ProjectIgnoreFile), rootDir)
}

// loadIgnoreFile reads an ignore file and creates a GitIgnore matcher from it.
// Uses io.Reader approach to ensure the file handle is properly closed on Windows.
func loadIgnoreFile(filePath string, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	return gitignore.New(f, baseDir, nil)
}
