package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lexandro/buildwatch/index"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReadArgs defines the input parameters for the buildwatch_read tool.
type ReadArgs struct {
	FilePath string `json:"filePath" jsonschema:"Relative file path to read from the index (e.g. src/components/my-button.tsx)"`
	Offset   int    `json:"offset,omitempty" jsonschema:"First line to return, 1-based"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of lines to return"`
}

// ReadHandler serves file content from the source index.
type ReadHandler struct {
	Index  *index.SourceIndex
	Logger *slog.Logger
}

// Handle processes a buildwatch_read request.
func (h *ReadHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReadArgs) (*mcp.CallToolResult, any, error) {
	if args.FilePath == "" {
		h.Logger.Warn("buildwatch_read called with empty filePath")
		return errorResult("Error: filePath parameter is required"), nil, nil
	}

	content, ok := h.Index.Content(args.FilePath)
	if !ok {
		h.Logger.Info("buildwatch_read file not found", "filePath", args.FilePath)
		return errorResult("File not found in index: %s", args.FilePath), nil, nil
	}

	h.Logger.Info("buildwatch_read", "filePath", args.FilePath)
	header := fmt.Sprintf("── %s ──\n", args.FilePath)
	return textResult(header + FormatFileContent(content, args.Offset, args.Limit)), nil, nil
}
