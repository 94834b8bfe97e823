package stamp

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Frame is a read-only projection over everything recorded for one
// frame path: the completed-call duration statistics, the current
// open-call depth, and the labeled event series stamped at exactly this
// path. It is a snapshot assembled at query time, never mutated and
// never kept in sync with the store; re-query to refresh.
type Frame struct {
	Path      string
	Durations SeriesStats
	OpenDepth int
	Events    map[string]SeriesStats

	path []string
}

// ForPath assembles the frame for path from the store and tracker.
// Fails with ErrUnknownPath when nothing was ever recorded at the path
// and no call is open there.
func ForPath(store *SampleStore, tracker *CallStackTracker, path []string) (*Frame, error) {
	frame := &Frame{
		Path:   strings.Join(path, "/"),
		Events: make(map[string]SeriesStats),
		path:   slices.Clone(path),
	}

	found := false
	store.Each(func(key Key, stats SeriesStats) {
		if !slices.Equal(key.Path, path) {
			return
		}
		switch key.Marker {
		case Duration:
			frame.Durations = stats
			found = true
		case Description:
			frame.Events[key.Description] = stats
			found = true
		}
	})

	frame.OpenDepth = tracker.OpenDepth(path)
	if !found && frame.OpenDepth == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPath, frame.Path)
	}
	return frame, nil
}

// CallCount returns the number of completed calls at this frame.
func (f *Frame) CallCount() uint64 {
	return f.Durations.Count
}

// MeanRuntime returns the mean elapsed time per completed call. Fails
// with ErrEmptySeries when no call has completed yet (the frame may
// still exist through open calls or stamped events).
func (f *Frame) MeanRuntime() (float64, error) {
	if f.Durations.Count == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptySeries, f.Path)
	}
	return f.Durations.Mean, nil
}

// EventStats returns the statistics for one labeled event stamped at
// exactly this frame path.
func (f *Frame) EventStats(description string) (SeriesStats, error) {
	stats, ok := f.Events[description]
	if !ok {
		return SeriesStats{}, fmt.Errorf("%w: %s", ErrEmptySeries, ScopedKey(f.path, description))
	}
	return stats, nil
}

// EventNames returns the labels stamped at this frame, sorted.
func (f *Frame) EventNames() []string {
	names := make([]string, 0, len(f.Events))
	for name := range f.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
