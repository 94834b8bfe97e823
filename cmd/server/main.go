package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/monkeyman192/stampy/internal/report"
	"github.com/monkeyman192/stampy/internal/snapshot"
	"github.com/monkeyman192/stampy/internal/stamp"
)

// splitPath turns a slash-separated frame path into its components.
func splitPath(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "/")
}

// getRecorder resolves the optional "recorder" argument; an empty name
// matches the sole existing recorder.
func getRecorder(request mcp.CallToolRequest) (*stamp.Recorder, error) {
	name := request.GetString("recorder", "")
	rec, err := stamp.Get(name)
	if err != nil {
		return nil, fmt.Errorf("recorder not found (use create_recorder first): %w", err)
	}
	return rec, nil
}

func main() {
	// Create MCP server
	s := server.NewMCPServer(
		"stampy-recorder",
		"1.0.0",
		server.WithLogging(),
	)

	// Tool 1: Create Recorder
	createRecorderTool := mcp.NewTool("create_recorder",
		mcp.WithDescription("Create (or fetch) a named timing recorder. All other tools record into or query a recorder created here."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the recorder; repeated calls with the same name return the same recorder"),
		),
		mcp.WithBoolean("retain_values",
			mcp.Description("Keep every raw value in order, enabling difference queries and full-history snapshots (default: false)"),
		),
	)

	s.AddTool(createRecorderTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var opts []stamp.Option
		if request.GetBool("retain_values", false) {
			opts = append(opts, stamp.WithRetention())
		}
		rec := stamp.New(name, opts...)

		return mcp.NewToolResultText(fmt.Sprintf("Recorder '%s' ready (%d series recorded so far).", rec.Name(), rec.Store().Len())), nil
	})

	// Tool 2: Begin Call
	beginCallTool := mcp.NewTool("begin_call",
		mcp.WithDescription("Open a call at a nested frame path (e.g. 'outer/inner'). Returns the occurrence id that disambiguates recursive or overlapping calls."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Slash-separated frame path, outermost frame first"),
		),
		mcp.WithString("recorder",
			mcp.Description("Recorder name (optional when exactly one recorder exists)"),
		),
		mcp.WithNumber("timestamp",
			mcp.Description("Start timestamp in seconds (default: the recorder's clock)"),
		),
	)

	s.AddTool(beginCallTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pathArg, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rec, err := getRecorder(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		path := splitPath(pathArg)
		var id uint64
		if ts := request.GetFloat("timestamp", -1); ts >= 0 {
			id = rec.BeginCallAt(ts, path...)
		} else {
			id = rec.BeginCall(path...)
		}

		return mcp.NewToolResultText(fmt.Sprintf("Call opened at %s (occurrence %d, open depth %d).", pathArg, id, rec.OpenDepth(path...))), nil
	})

	// Tool 3: End Call
	endCallTool := mcp.NewTool("end_call",
		mcp.WithDescription("Close the most recently opened call at a frame path (LIFO matching) and record its duration."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Slash-separated frame path, outermost frame first"),
		),
		mcp.WithString("recorder",
			mcp.Description("Recorder name (optional when exactly one recorder exists)"),
		),
		mcp.WithNumber("timestamp",
			mcp.Description("End timestamp in seconds (default: the recorder's clock)"),
		),
	)

	s.AddTool(endCallTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pathArg, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rec, err := getRecorder(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		path := splitPath(pathArg)
		var duration float64
		if ts := request.GetFloat("timestamp", -1); ts >= 0 {
			duration, err = rec.EndCallAt(ts, path...)
		} else {
			duration, err = rec.EndCall(path...)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to close call: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Call at %s took %gs.", pathArg, duration)), nil
	})

	// Tool 4: Record Event
	recordEventTool := mcp.NewTool("record_event",
		mcp.WithDescription("Record a labeled ad-hoc timestamp, either free or attributed to a frame path. Events are stored directly and never take part in start/end pairing."),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("Event label"),
		),
		mcp.WithString("path",
			mcp.Description("Slash-separated frame path to attribute the event to (optional)"),
		),
		mcp.WithString("recorder",
			mcp.Description("Recorder name (optional when exactly one recorder exists)"),
		),
		mcp.WithNumber("timestamp",
			mcp.Description("Event timestamp in seconds (default: the recorder's clock)"),
		),
	)

	s.AddTool(recordEventTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		description, err := request.RequireString("description")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rec, err := getRecorder(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		path := splitPath(request.GetString("path", ""))
		ts := request.GetFloat("timestamp", -1)
		switch {
		case len(path) == 0 && ts >= 0:
			err = rec.EventAt(ts, description)
		case len(path) == 0:
			err = rec.Event(description)
		case ts >= 0:
			err = rec.ScopedEventAt(ts, description, path...)
		default:
			err = rec.ScopedEvent(description, path...)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to record event: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Event '%s' recorded.", description)), nil
	})

	// Tool 5: Get Statistics
	getStatsTool := mcp.NewTool("get_stats",
		mcp.WithDescription("Get count, sum, and mean for a recorded series: either a free event label or a frame path's completed-call durations."),
		mcp.WithString("description",
			mcp.Description("Free event label (provide this or 'path')"),
		),
		mcp.WithString("path",
			mcp.Description("Slash-separated frame path whose duration series to query; combined with 'description', queries the scoped event"),
		),
		mcp.WithString("recorder",
			mcp.Description("Recorder name (optional when exactly one recorder exists)"),
		),
	)

	s.AddTool(getStatsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rec, err := getRecorder(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		description := request.GetString("description", "")
		path := splitPath(request.GetString("path", ""))

		var (
			stats stamp.SeriesStats
			label string
		)
		switch {
		case description != "":
			stats, err = rec.EventStats(description, path...)
			label = fmt.Sprintf("'%s'", description)
		case len(path) > 0:
			stats, err = rec.DurationStats(path...)
			label = request.GetString("path", "")
		default:
			return mcp.NewToolResultError("Provide 'description' and/or 'path'."), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get stats: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("📊 STATS for %s\n\n", label))
		sb.WriteString(fmt.Sprintf("Count: %d\n", stats.Count))
		sb.WriteString(fmt.Sprintf("Sum:   %gs\n", stats.Sum))
		sb.WriteString(fmt.Sprintf("Mean:  %gs\n", stats.Mean))

		return mcp.NewToolResultText(sb.String()), nil
	})

	// Tool 6: Query Frame
	queryFrameTool := mcp.NewTool("query_frame",
		mcp.WithDescription("View one frame: completed-call duration statistics, current open-call depth, and every event label stamped at exactly that path."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Slash-separated frame path, outermost frame first"),
		),
		mcp.WithString("recorder",
			mcp.Description("Recorder name (optional when exactly one recorder exists)"),
		),
	)

	s.AddTool(queryFrameTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pathArg, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rec, err := getRecorder(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		frame, err := rec.Query(splitPath(pathArg)...)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to query frame: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("🖼  FRAME %s\n", pathArg))
		sb.WriteString("═══════════════════════════════════════════════════\n\n")
		sb.WriteString(fmt.Sprintf("Completed calls: %d\n", frame.CallCount()))
		if mean, err := frame.MeanRuntime(); err == nil {
			sb.WriteString(fmt.Sprintf("Mean runtime:    %gs\n", mean))
			sb.WriteString(fmt.Sprintf("Total runtime:   %gs\n", frame.Durations.Sum))
		}
		sb.WriteString(fmt.Sprintf("Open calls:      %d\n", frame.OpenDepth))

		events := frame.EventNames()
		if len(events) > 0 {
			sb.WriteString("\nStamped events:\n")
			for _, label := range events {
				sb.WriteString(fmt.Sprintf("  '%s': %d event(s)\n", label, frame.Events[label].Count))
			}
		}

		return mcp.NewToolResultText(sb.String()), nil
	})

	// Tool 7: Report
	reportTool := mcp.NewTool("report",
		mcp.WithDescription("Render a timing report over every frame instrumented through the recorder."),
		mcp.WithString("recorder",
			mcp.Description("Recorder name (optional when exactly one recorder exists)"),
		),
	)

	s.AddTool(reportTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rec, err := getRecorder(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(report.Render(rec)), nil
	})

	// Tool 8: Export Snapshot
	exportSnapshotTool := mcp.NewTool("export_snapshot",
		mcp.WithDescription("Serialize a recorder's aggregated series as JSON. The snapshot is the minimal state needed to resume aggregation elsewhere via merge_snapshot."),
		mcp.WithString("recorder",
			mcp.Description("Recorder name (optional when exactly one recorder exists)"),
		),
	)

	s.AddTool(exportSnapshotTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rec, err := getRecorder(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := snapshot.Export(rec.Store())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to export snapshot: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	})

	// Tool 9: Merge Snapshot
	mergeSnapshotTool := mcp.NewTool("merge_snapshot",
		mcp.WithDescription("Merge a previously exported snapshot into a recorder, combining counts and sums per key."),
		mcp.WithString("snapshot",
			mcp.Required(),
			mcp.Description("JSON produced by export_snapshot"),
		),
		mcp.WithString("recorder",
			mcp.Description("Recorder name (optional when exactly one recorder exists)"),
		),
	)

	s.AddTool(mergeSnapshotTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := request.RequireString("snapshot")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rec, err := getRecorder(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		restored, err := snapshot.Restore([]byte(data), rec.Store().Retaining())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to restore snapshot: %v", err)), nil
		}
		rec.Store().Merge(restored)

		return mcp.NewToolResultText(fmt.Sprintf("Snapshot merged: %d series now recorded.", rec.Store().Len())), nil
	})

	// Start the server
	if err := server.ServeStdio(s); err != nil {
		logrus.WithError(err).Fatal("Server error")
	}
}
