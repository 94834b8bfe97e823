package report

import (
	"fmt"
	"strings"

	"github.com/monkeyman192/stampy/internal/stamp"
)

// FuncRuntime renders the runtime summary line for one frame: the single
// measured duration when the frame ran once, the run count and average
// otherwise.
func FuncRuntime(name string, stats stamp.SeriesStats) string {
	if stats.Count == 1 {
		return fmt.Sprintf("Function '%s' took %gs to run", name, stats.Sum)
	}
	return fmt.Sprintf("Function '%s' was run %d time(s) with an average run time of %gs",
		name, stats.Count, stats.Mean)
}

// Difference renders the elapsed-time summary between two labeled events.
func Difference(startDesc, endDesc string, stats stamp.SeriesStats) string {
	if stats.Count == 1 {
		return fmt.Sprintf("Time from '%s' to '%s': %gs", startDesc, endDesc, stats.Sum)
	}
	return fmt.Sprintf("Average time between '%s' and '%s' over %d runs: %gs",
		startDesc, endDesc, stats.Count, stats.Mean)
}

// NestedDifference renders the elapsed-time summary between two labeled
// events stamped inside a frame.
func NestedDifference(startDesc, endDesc, frameName string, stats stamp.SeriesStats) string {
	return fmt.Sprintf("Average time between '%s' and '%s' inside function '%s' over %d repetitions: %gs",
		startDesc, endDesc, frameName, stats.Count, stats.Mean)
}

// Render assembles a human-readable timing report over every frame the
// recorder instrumented through Time.
func Render(rec *stamp.Recorder) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⏱  TIMING REPORT (recorder '%s')\n", rec.Name()))
	sb.WriteString("═══════════════════════════════════════════════════\n\n")

	paths := rec.ReportedPaths()
	if len(paths) == 0 {
		sb.WriteString("No instrumented functions recorded.\n")
		return sb.String()
	}

	for i, path := range paths {
		name := strings.Join(path, "/")
		frame, err := rec.Query(path...)
		if err != nil {
			sb.WriteString(fmt.Sprintf("#%d: %s\n    no data recorded\n\n", i+1, name))
			continue
		}

		sb.WriteString(fmt.Sprintf("#%d: %s\n", i+1, name))
		if frame.CallCount() > 0 {
			sb.WriteString("    " + FuncRuntime(name, frame.Durations) + "\n")
		}
		if frame.OpenDepth > 0 {
			sb.WriteString(fmt.Sprintf("    Open calls: %d\n", frame.OpenDepth))
		}

		events := frame.EventNames()
		if len(events) > 0 {
			sb.WriteString("    Stamps:\n")
			for _, label := range events {
				stats := frame.Events[label]
				sb.WriteString(fmt.Sprintf("      '%s': %d event(s)\n", label, stats.Count))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
