package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/lexandro/buildwatch/changeset"
	"github.com/lexandro/buildwatch/listener"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RebuildArgs defines the input parameters for the buildwatch_rebuild tool.
type RebuildArgs struct {
	Reason string `json:"reason,omitempty" jsonschema:"Optional note recorded in the log"`
}

// RebuildHandler forces a full rebuild by enqueueing a config-updated snapshot.
type RebuildHandler struct {
	Trigger listener.Trigger
	Logger  *slog.Logger
}

// Handle processes a buildwatch_rebuild request.
func (h *RebuildHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args RebuildArgs) (*mcp.CallToolResult, any, error) {
	snapshot := changeset.Snapshot{
		CreatedAt:     time.Now(),
		ConfigUpdated: true,
	}
	if err := h.Trigger.TriggerRebuild(snapshot); err != nil {
		h.Logger.Error("buildwatch_rebuild failed", "error", err)
		return errorResult("Rebuild error: %v", err), nil, nil
	}

	h.Logger.Info("buildwatch_rebuild queued", "reason", args.Reason)
	return textResult("Full rebuild queued."), nil, nil
}
