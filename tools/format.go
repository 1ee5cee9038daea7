package tools

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexandro/buildwatch/changeset"
	"github.com/lexandro/buildwatch/index"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FormatSearchResults renders search hits grouped by file with line numbers.
func FormatSearchResults(results []index.SearchResult, totalMatches int) string {
	if len(results) == 0 {
		return "No matches found."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Found %d matches in %d files:\n\n", totalMatches, len(results)))
	for i, result := range results {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf("── %s ──\n", result.RelativePath))
		for _, match := range result.Matches {
			for _, line := range match.ContextBefore {
				builder.WriteString(fmt.Sprintf("  %s\n", line))
			}
			builder.WriteString(fmt.Sprintf("  %d: %s\n", match.LineNumber, match.LineText))
			for _, line := range match.ContextAfter {
				builder.WriteString(fmt.Sprintf("  %s\n", line))
			}
		}
	}
	return builder.String()
}

// FormatFileResults renders glob results, optionally as bare paths.
func FormatFileResults(files []index.SourceFile, nameOnly bool) string {
	if len(files) == 0 {
		return "No files matched."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Found %d files:\n\n", len(files)))
	for _, f := range files {
		if nameOnly {
			builder.WriteString(f.RelativePath)
			builder.WriteString("\n")
			continue
		}
		builder.WriteString(fmt.Sprintf("  %s  (%s, %s, %d lines)\n",
			f.RelativePath, f.Kind, formatFileSize(f.SizeBytes), f.LineCount))
	}
	return builder.String()
}

// FormatFileContent renders content with 1-based line numbers. offset is the
// first line to show (1-based, 0 means from the start); limit caps the number
// of lines (0 means no cap).
func FormatFileContent(content string, offset, limit int) string {
	lines := strings.Split(content, "\n")
	start := 0
	if offset > 1 {
		start = offset - 1
	}
	if start >= len(lines) {
		return fmt.Sprintf("Offset exceeds file length (%d lines).", len(lines))
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	width := len(fmt.Sprintf("%d", end))
	var builder strings.Builder
	for i := start; i < end; i++ {
		builder.WriteString(fmt.Sprintf("%*d: %s\n", width, i+1, lines[i]))
	}
	return builder.String()
}

// FormatSnapshot renders a snapshot with paths relative to rootDir.
func FormatSnapshot(s changeset.Snapshot, rootDir string) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Build %s at %s: %s\n", s.ID, s.CreatedAt.Format(time.TimeOnly), s.Summary()))
	section := func(title string, paths []string) {
		if len(paths) == 0 {
			return
		}
		builder.WriteString(fmt.Sprintf("  %s:\n", title))
		for _, p := range paths {
			builder.WriteString(fmt.Sprintf("    %s\n", relativeTo(rootDir, p)))
		}
	}
	section("Directories added", s.DirsAdded)
	section("Directories deleted", s.DirsDeleted)
	section("Files added", s.FilesAdded)
	section("Files updated", s.FilesUpdated)
	section("Files deleted", s.FilesDeleted)
	if len(s.ChangedExtensions) > 0 {
		builder.WriteString(fmt.Sprintf("  Extensions: %s\n", strings.Join(s.ChangedExtensions, ", ")))
	}
	return builder.String()
}

func relativeTo(rootDir, p string) string {
	if rootDir == "" {
		return p
	}
	rel, err := filepath.Rel(filepath.FromSlash(rootDir), filepath.FromSlash(p))
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return filepath.ToSlash(rel)
}

// formatFileSize converts bytes to a human-readable string.
func formatFileSize(bytes int64) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	case bytes >= 1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	totalMinutes := totalSeconds / 60
	if totalMinutes < 60 {
		return fmt.Sprintf("%dm%ds", totalMinutes, totalSeconds%60)
	}
	return fmt.Sprintf("%dh%dm", totalMinutes/60, totalMinutes%60)
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
