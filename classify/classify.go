// Package classify decides which filesystem paths matter to a rebuild.
// Every predicate is a pure function of its arguments.
package classify

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// GeneratedDeclarationsFile is the aggregate declarations file written by the compiler.
// Events on it are never treated as input, otherwise every build would trigger the next.
const GeneratedDeclarationsFile = "components.d.ts"

// declarationSuffix marks a type-declaration file.
const declarationSuffix = ".d.ts"

var (
	ErrEmptyPath    = errors.New("empty path")
	ErrRelativePath = errors.New("path is not absolute")
)

// FileKind is the coarse category of a watched file.
type FileKind int

const (
	KindOther FileKind = iota
	KindScript
	KindMarkup
	KindStyle
	KindDeclaration
)

func (k FileKind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindMarkup:
		return "markup"
	case KindStyle:
		return "style"
	case KindDeclaration:
		return "declaration"
	default:
		return "other"
	}
}

// sourceExtensions maps recognized source extensions (without dot) to their kind.
// Images, fonts and other binary assets are intentionally absent.
var sourceExtensions = map[string]FileKind{
	// Scripts
	"ts": KindScript, "tsx": KindScript,
	"js": KindScript, "jsx": KindScript, "mjs": KindScript, "cjs": KindScript,
	// Markup
	"html": KindMarkup, "htm": KindMarkup,
	// Styles
	"css": KindStyle, "scss": KindStyle, "sass": KindStyle,
	"less": KindStyle, "styl": KindStyle, "pcss": KindStyle,
}

// CopyMatcher reports whether a path is covered by a copy task.
type CopyMatcher interface {
	Match(path string) bool
}

// NormalizePath returns the OS-independent absolute form of p: forward slashes,
// cleaned, no trailing separator. Relative paths are rejected.
func NormalizePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", ErrEmptyPath
	}
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if !isAbs(p) {
		return "", fmt.Errorf("%w: %s", ErrRelativePath, p)
	}
	return p, nil
}

// isAbs accepts unix roots and windows drive roots (C:/...).
func isAbs(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && p[2] == '/' &&
		((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

// IsConfigFile reports whether path is the project's build config file.
// Both arguments must already be normalized.
func IsConfigFile(path, configPath string) bool {
	return configPath != "" && path == configPath
}

// IsCopyTaskFile delegates to the configured copy rules. A nil matcher matches nothing.
func IsCopyTaskFile(path string, matcher CopyMatcher) bool {
	if matcher == nil {
		return false
	}
	return matcher.Match(path)
}

// IsSourceFile reports whether path is a script, markup or stylesheet.
// Declaration files are not source files; see IsDeclarationFile.
func IsSourceFile(filePath string) bool {
	if IsDeclarationFile(filePath) {
		return false
	}
	_, ok := sourceExtensions[Extension(filePath)]
	return ok
}

// IsDeclarationFile reports whether path is a type-declaration file.
func IsDeclarationFile(filePath string) bool {
	return strings.HasSuffix(strings.ToLower(filePath), declarationSuffix)
}

// IsGeneratedDeclarationsFile reports whether path is the compiler-owned declarations file.
func IsGeneratedDeclarationsFile(filePath string) bool {
	return path.Base(filePath) == GeneratedDeclarationsFile
}

// IsRelevantFile reports whether a change to path should trigger a rebuild.
func IsRelevantFile(filePath string) bool {
	return IsSourceFile(filePath) ||
		(IsDeclarationFile(filePath) && !IsGeneratedDeclarationsFile(filePath))
}

// Kind returns the category of path.
func Kind(filePath string) FileKind {
	if IsDeclarationFile(filePath) {
		return KindDeclaration
	}
	if kind, ok := sourceExtensions[Extension(filePath)]; ok {
		return kind
	}
	return KindOther
}

// Extension returns the lowercase extension of path without the dot.
func Extension(filePath string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filePath), "."))
}
