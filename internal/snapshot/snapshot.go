// Package snapshot persists sample store state as JSON: per key, the
// count and sum (plus raw values when retained) — the minimal state
// needed to resume aggregation through Merge.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/monkeyman192/stampy/internal/stamp"
)

// Series is the persisted form of one recorded series.
type Series struct {
	Path        []string  `json:"path,omitempty"`
	Marker      string    `json:"marker"`
	Description string    `json:"description,omitempty"`
	Count       uint64    `json:"count"`
	Sum         float64   `json:"sum"`
	Values      []float64 `json:"values,omitempty"`
}

// Snapshot is the persisted form of a whole sample store.
type Snapshot struct {
	Series []Series `json:"series"`
}

// Export serializes the store. Series are ordered by key for stable
// output.
func Export(store *stamp.SampleStore) ([]byte, error) {
	snap := Snapshot{}
	var exportErr error

	store.Each(func(key stamp.Key, stats stamp.SeriesStats) {
		s := Series{
			Path:        key.Path,
			Marker:      key.Marker.String(),
			Description: key.Description,
			Count:       stats.Count,
			Sum:         stats.Sum,
		}
		if store.Retaining() {
			values, err := store.Values(key)
			if err != nil {
				exportErr = fmt.Errorf("failed to read values for %s: %w", key, err)
				return
			}
			s.Values = values
		}
		snap.Series = append(snap.Series, s)
	})
	if exportErr != nil {
		return nil, exportErr
	}

	sort.Slice(snap.Series, func(i, j int) bool {
		return seriesKey(snap.Series[i]).String() < seriesKey(snap.Series[j]).String()
	})
	return json.MarshalIndent(snap, "", "  ")
}

// Restore deserializes a snapshot into a fresh store, which can then be
// merged into a live one. retainValues must be set to carry over raw
// value sequences.
func Restore(data []byte, retainValues bool) (*stamp.SampleStore, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	store := stamp.NewSampleStore(retainValues)
	for _, s := range snap.Series {
		marker, err := parseMarker(s.Marker)
		if err != nil {
			return nil, err
		}
		key := stamp.Key{Path: s.Path, Marker: marker, Description: s.Description}
		store.LoadSeries(key, s.Count, s.Sum, s.Values)
	}
	return store, nil
}

func seriesKey(s Series) stamp.Key {
	marker, err := parseMarker(s.Marker)
	if err != nil {
		marker = stamp.Description
	}
	return stamp.Key{Path: s.Path, Marker: marker, Description: s.Description}
}

func parseMarker(name string) (stamp.Marker, error) {
	switch name {
	case "description":
		return stamp.Description, nil
	case "start":
		return stamp.Start, nil
	case "end":
		return stamp.End, nil
	case "duration":
		return stamp.Duration, nil
	}
	return 0, fmt.Errorf("invalid marker %q in snapshot", name)
}
