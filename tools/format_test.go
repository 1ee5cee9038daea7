package tools

import (
	"strings"
	"testing"
	"time"

	"github.com/lexandro/buildwatch/changeset"
	"github.com/lexandro/buildwatch/index"
)

func Test_FormatFileSize(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatFileSize(tt.bytes); got != tt.expected {
			t.Errorf("formatFileSize(%d) = %q, want %q", tt.bytes, got, tt.expected)
		}
	}
}

func Test_FormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"Seconds_zero", 0, "0s"},
		{"Seconds_59", 59 * time.Second, "59s"},
		{"Minutes_5m30s", 5*time.Minute + 30*time.Second, "5m30s"},
		{"Hours_1h30m", 90 * time.Minute, "1h30m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func Test_FormatSearchResults(t *testing.T) {
	if got := FormatSearchResults(nil, 0); got != "No matches found." {
		t.Errorf("unexpected empty output: %q", got)
	}

	got := FormatSearchResults([]index.SearchResult{{
		RelativePath: "src/a.ts",
		Matches: []index.LineMatch{{
			LineNumber:    4,
			LineText:      "target",
			ContextBefore: []string{"before"},
			ContextAfter:  []string{"after"},
		}},
	}}, 1)
	want := "Found 1 matches in 1 files:\n\n── src/a.ts ──\n  before\n  4: target\n  after\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func Test_FormatFileResults(t *testing.T) {
	files := []index.SourceFile{{RelativePath: "src/a.ts", Kind: "script", SizeBytes: 2048, LineCount: 10}}

	if got := FormatFileResults(nil, false); got != "No files matched." {
		t.Errorf("unexpected empty output: %q", got)
	}
	if got := FormatFileResults(files, true); got != "Found 1 files:\n\nsrc/a.ts\n" {
		t.Errorf("unexpected nameOnly output: %q", got)
	}
	if got := FormatFileResults(files, false); !strings.Contains(got, "src/a.ts  (script, 2.0 KB, 10 lines)") {
		t.Errorf("unexpected metadata output: %q", got)
	}
}

func Test_FormatFileContent(t *testing.T) {
	content := "a\nb\nc\nd\ne\nf\ng\nh\ni\nj"

	if got := FormatFileContent(content, 0, 2); got != "1: a\n2: b\n" {
		t.Errorf("unexpected limited output: %q", got)
	}
	got := FormatFileContent(content, 9, 0)
	if got != " 9: i\n10: j\n" {
		t.Errorf("unexpected offset output: %q", got)
	}
	if got := FormatFileContent(content, 100, 0); !strings.Contains(got, "Offset exceeds file length") {
		t.Errorf("expected offset error, got %q", got)
	}
}

func Test_FormatSnapshot(t *testing.T) {
	got := FormatSnapshot(changeset.Snapshot{
		ID:                "b-1",
		CreatedAt:         time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
		DirsDeleted:       []string{"/p/src/old"},
		FilesAdded:        []string{"/p/src/a.tsx"},
		ChangedExtensions: []string{"tsx"},
	}, "/p")

	for _, want := range []string{
		"Build b-1 at 10:30:00: +1 files, -1 dirs",
		"Directories deleted:\n    src/old\n",
		"Files added:\n    src/a.tsx\n",
		"Extensions: tsx",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
}
