package classify

import (
	"errors"
	"testing"
)

func Test_NormalizePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"Clean", "/proj/src/foo.ts", "/proj/src/foo.ts", nil},
		{"DotSegments", "/proj/src/../src/./foo.ts", "/proj/src/foo.ts", nil},
		{"TrailingSlash", "/proj/src/", "/proj/src", nil},
		{"Backslashes", `C:\proj\src\foo.ts`, "C:/proj/src/foo.ts", nil},
		{"Relative", "src/foo.ts", "", ErrRelativePath},
		{"Empty", "  ", "", ErrEmptyPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePath(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NormalizePath(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePath(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func Test_IsRelevantFile(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/proj/src/foo.ts", true},
		{"/proj/src/foo.tsx", true},
		{"/proj/src/foo.js", true},
		{"/proj/src/index.html", true},
		{"/proj/src/app.css", true},
		{"/proj/src/app.SCSS", true},
		{"/proj/src/app.less", true},
		{"/proj/src/types.d.ts", true},
		{"/proj/src/components.d.ts", false},
		{"/proj/src/logo.png", false},
		{"/proj/src/logo.svg", false},
		{"/proj/src/data.json", false},
		{"/proj/README", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsRelevantFile(tt.path); got != tt.expected {
				t.Errorf("IsRelevantFile(%q) = %v, want %v", tt.path, got, tt.expected)
			}
			// Pure function of the path: a second call must agree.
			if again := IsRelevantFile(tt.path); again != tt.expected {
				t.Errorf("IsRelevantFile(%q) changed between calls", tt.path)
			}
		})
	}
}

func Test_IsSourceFile_ExcludesDeclarations(t *testing.T) {
	if IsSourceFile("/proj/src/types.d.ts") {
		t.Error("expected .d.ts to be classified as declaration, not source")
	}
	if !IsDeclarationFile("/proj/src/types.d.ts") {
		t.Error("expected .d.ts to be a declaration file")
	}
}

func Test_IsGeneratedDeclarationsFile(t *testing.T) {
	if !IsGeneratedDeclarationsFile("/proj/src/components.d.ts") {
		t.Error("expected components.d.ts to be the generated declarations file")
	}
	if IsGeneratedDeclarationsFile("/proj/src/mycomponents.d.ts") {
		t.Error("expected only the exact base name to match")
	}
}

func Test_IsConfigFile(t *testing.T) {
	if !IsConfigFile("/proj/stencil.config.ts", "/proj/stencil.config.ts") {
		t.Error("expected exact path to match")
	}
	if IsConfigFile("/proj/other/stencil.config.ts", "/proj/stencil.config.ts") {
		t.Error("expected different directory to not match")
	}
	if IsConfigFile("/proj/stencil.config.ts", "") {
		t.Error("expected empty config path to match nothing")
	}
}

type prefixMatcher string

func (p prefixMatcher) Match(path string) bool {
	return len(path) >= len(p) && path[:len(p)] == string(p)
}

func Test_IsCopyTaskFile(t *testing.T) {
	matcher := prefixMatcher("/proj/src/assets/")
	if !IsCopyTaskFile("/proj/src/assets/logo.png", matcher) {
		t.Error("expected asset to be a copy task file")
	}
	if IsCopyTaskFile("/proj/src/foo.ts", matcher) {
		t.Error("expected source file to not be a copy task file")
	}
	if IsCopyTaskFile("/proj/src/assets/logo.png", nil) {
		t.Error("expected nil matcher to match nothing")
	}
}

func Test_Kind(t *testing.T) {
	tests := []struct {
		path     string
		expected FileKind
	}{
		{"/p/a.ts", KindScript},
		{"/p/a.html", KindMarkup},
		{"/p/a.scss", KindStyle},
		{"/p/a.d.ts", KindDeclaration},
		{"/p/a.png", KindOther},
	}
	for _, tt := range tests {
		if got := Kind(tt.path); got != tt.expected {
			t.Errorf("Kind(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}
