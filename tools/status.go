package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/lexandro/buildwatch/index"
	"github.com/lexandro/buildwatch/listener"
	"github.com/lexandro/buildwatch/rebuild"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatusArgs defines the input parameters for the buildwatch_status tool (none required).
type StatusArgs struct{}

// ListenerStats reports event counters.
type ListenerStats interface {
	Stats() listener.Stats
}

// QueueStats reports build history.
type QueueStats interface {
	Stats() rebuild.Stats
}

// CacheStats reports filesystem cache sizes.
type CacheStats interface {
	Stats() (files int, dirs int)
}

// DirCounter reports how many directories are being watched.
type DirCounter interface {
	WatchedDirCount() int
}

// StatusHandler reports on the running watch session. Index may be nil.
type StatusHandler struct {
	Listener  ListenerStats
	Queue     QueueStats
	Cache     CacheStats
	Watcher   DirCounter
	Index     *index.SourceIndex
	StartTime time.Time
	RootDir   string
	Logger    *slog.Logger
}

// Handle processes a buildwatch_status request.
func (h *StatusHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatusArgs) (*mcp.CallToolResult, any, error) {
	var builder strings.Builder
	uptime := time.Since(h.StartTime)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	builder.WriteString("=== buildwatch Status ===\n\n")
	builder.WriteString(fmt.Sprintf("Root directory: %s\n", h.RootDir))
	builder.WriteString(fmt.Sprintf("Uptime: %s\n", formatDuration(uptime)))
	builder.WriteString(fmt.Sprintf("Memory usage: %s\n", formatFileSize(int64(memStats.Alloc))))
	if h.Watcher != nil {
		builder.WriteString(fmt.Sprintf("Watched directories: %d\n", h.Watcher.WatchedDirCount()))
	}
	if h.Cache != nil {
		files, dirs := h.Cache.Stats()
		builder.WriteString(fmt.Sprintf("Cached files: %d, cached listings: %d\n", files, dirs))
	}

	if h.Listener != nil {
		ls := h.Listener.Stats()
		builder.WriteString("\nEvents:\n")
		builder.WriteString(fmt.Sprintf("  received: %d, ignored: %d, failures: %d\n", ls.Events, ls.Ignored, ls.Failures))
		builder.WriteString(fmt.Sprintf("  rebuild cycles: %d, discarded empty: %d\n", ls.Cycles, ls.DiscardedCycles))
	}

	var qs rebuild.Stats
	if h.Queue != nil {
		qs = h.Queue.Stats()
		builder.WriteString("\nBuilds:\n")
		builder.WriteString(fmt.Sprintf("  run: %d, failed: %d, merged: %d\n", qs.Builds, qs.Failures, qs.Merged))
		state := "idle"
		switch {
		case qs.Running:
			state = "running"
		case qs.Pending:
			state = "pending"
		}
		builder.WriteString(fmt.Sprintf("  state: %s\n", state))
		if qs.LastSnapshot != nil {
			builder.WriteString(fmt.Sprintf("  last duration: %s\n", qs.LastDuration.Round(time.Millisecond)))
		}
		if qs.LastError != "" {
			builder.WriteString(fmt.Sprintf("  last error: %s\n", qs.LastError))
		}
	}

	if h.Index != nil {
		builder.WriteString(fmt.Sprintf("\nIndexed files: %d (%s)\n", h.Index.Count(), formatFileSize(h.Index.TotalSizeBytes())))
		writeKindCounts(&builder, h.Index.KindCounts())
	}

	if qs.LastSnapshot != nil {
		builder.WriteString("\nLast change set:\n")
		builder.WriteString(FormatSnapshot(*qs.LastSnapshot, h.RootDir))
	}

	h.Logger.Info("buildwatch_status", "builds", qs.Builds, "uptime", uptime)
	return textResult(builder.String()), nil, nil
}

func writeKindCounts(builder *strings.Builder, counts map[string]int) {
	type kindEntry struct {
		kind  string
		count int
	}
	entries := make([]kindEntry, 0, len(counts))
	for kind, count := range counts {
		entries = append(entries, kindEntry{kind, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].kind < entries[j].kind
	})
	for _, e := range entries {
		builder.WriteString(fmt.Sprintf("  %-12s %d files\n", e.kind, e.count))
	}
}
