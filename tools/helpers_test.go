package tools

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexandro/buildwatch/index"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestIndex builds a source index over files written to a temp root.
func newTestIndex(t *testing.T, files map[string]string) *index.SourceIndex {
	t.Helper()
	root := t.TempDir()
	si, err := index.NewSourceIndex(index.Options{RootDir: root, Logger: testLogger()})
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	t.Cleanup(func() { si.Close() })

	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if err := si.IndexFile(context.Background(), filepath.ToSlash(p)); err != nil {
			t.Fatalf("index %s: %v", rel, err)
		}
	}
	return si
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty result content")
	}
	return result.Content[0].(*mcp.TextContent).Text
}
