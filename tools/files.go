package tools

import (
	"context"
	"log/slog"

	"github.com/lexandro/buildwatch/index"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FilesArgs defines the input parameters for the buildwatch_files tool.
type FilesArgs struct {
	Pattern    string `json:"pattern" jsonschema:"Glob pattern to match files (e.g. src/**/*.tsx)"`
	NameOnly   bool   `json:"nameOnly,omitempty" jsonschema:"If true return only file paths without metadata"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"Maximum number of results to return (default 50)"`
}

// FilesHandler lists indexed files by glob.
type FilesHandler struct {
	Index  *index.SourceIndex
	Logger *slog.Logger
}

// Handle processes a buildwatch_files request.
func (h *FilesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args FilesArgs) (*mcp.CallToolResult, any, error) {
	if args.Pattern == "" {
		h.Logger.Warn("buildwatch_files called with empty pattern")
		return errorResult("Error: pattern parameter is required"), nil, nil
	}

	files, err := h.Index.Glob(args.Pattern, args.MaxResults)
	if err != nil {
		h.Logger.Error("buildwatch_files failed", "pattern", args.Pattern, "error", err)
		return errorResult("Search error: %v", err), nil, nil
	}

	h.Logger.Info("buildwatch_files", "pattern", args.Pattern, "results", len(files))
	return textResult(FormatFileResults(files, args.NameOnly)), nil, nil
}
