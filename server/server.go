package server

import (
	"github.com/lexandro/buildwatch/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Handlers bundles the tool handlers. Search, Files and Read are optional and
// registered only when set.
type Handlers struct {
	Status  *tools.StatusHandler
	Rebuild *tools.RebuildHandler
	Search  *tools.SearchHandler
	Files   *tools.FilesHandler
	Read    *tools.ReadHandler
}

// Setup creates the MCP server and registers the watch session tools.
func Setup(h Handlers) *mcp.Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "buildwatch",
			Version: Version,
		},
		&mcp.ServerOptions{
			Instructions: `This server runs a file watcher that rebuilds the project when sources change.
- Use buildwatch_status to see whether the last build succeeded and which files it covered
- Use buildwatch_rebuild to force a full rebuild
- Use buildwatch_search, buildwatch_files and buildwatch_read to query the in-memory source index, which is kept current by the watcher`,
		},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "buildwatch_status",
		Description: "Show watch session status: event counters, build history, last change set, index size and uptime.",
	}, h.Status.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "buildwatch_rebuild",
		Description: "Queue a full rebuild, as if the build configuration had changed. Returns immediately.",
	}, h.Rebuild.Handle)

	if h.Search != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name: "buildwatch_search",
			Description: `Search project sources using the full-text index.

Query formats:
  - Plain text: word-level matching (e.g., "Component")
  - "quoted text": exact phrase matching (e.g., "\"@Prop() name\"")
  - /regex/: regular expression matching (e.g., "/my-\w+/")

Filtering:
  - filePath: exact relative path to search in a single file. Overrides fileGlob.
  - fileGlob: glob pattern (e.g., "src/**/*.tsx").
  - kind: script, markup, style, declaration or other.`,
		}, h.Search.Handle)
	}

	if h.Files != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name: "buildwatch_files",
			Description: `Find indexed files by glob pattern.

Pattern examples:
  - "src/**/*.tsx" - component sources
  - "**/*.css" - all stylesheets`,
		}, h.Files.Handle)
	}

	if h.Read != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "buildwatch_read",
			Description: `Read an indexed file from memory. Returns numbered lines (format: "N: content").`,
		}, h.Read.Handle)
	}

	return mcpServer
}
