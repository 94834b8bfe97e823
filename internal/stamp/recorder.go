package stamp

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Option configures a Recorder at creation time.
type Option func(*Recorder)

// WithRetention makes the recorder's store keep every raw value in
// order, enabling Difference and other whole-history queries.
func WithRetention() Option {
	return func(r *Recorder) { r.retain = true }
}

// WithClock replaces the wall clock used when no explicit timestamp is
// given. The clock returns seconds as a float64.
func WithClock(clock func() float64) Option {
	return func(r *Recorder) { r.clock = clock }
}

// Recorder ties a key registry, call-stack tracker, and sample store
// into the recording surface the instrumentation layer talks to.
//
// A recorder owns a single sequential call timeline: use one per
// concurrent execution context and combine results with Merge, rather
// than sharing one recorder across goroutines.
type Recorder struct {
	name     string
	retain   bool
	clock    func() float64
	registry *KeyRegistry
	store    *SampleStore

	mu       sync.Mutex // guards tracker and reported
	tracker  *CallStackTracker
	reported map[string][]string
}

var (
	recordersMu sync.Mutex
	recorders   = make(map[string]*Recorder)
)

// New returns the recorder registered under name, creating it on first
// use. Repeated calls with the same name return the same instance, so
// instrumentation spread across files shares one timeline without
// plumbing the recorder around. Options only apply on creation.
func New(name string, opts ...Option) *Recorder {
	recordersMu.Lock()
	defer recordersMu.Unlock()
	if r, ok := recorders[name]; ok {
		return r
	}

	r := &Recorder{
		name: name,
		clock: func() float64 {
			return float64(time.Now().UnixNano()) / 1e9
		},
		registry: NewKeyRegistry(),
		tracker:  NewCallStackTracker(),
		reported: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.store = NewSampleStore(r.retain)
	recorders[name] = r
	return r
}

// Get looks up a previously created recorder. With an empty name it
// returns the sole existing recorder, failing with ErrNoRecorder when
// none or several exist.
func Get(name string) (*Recorder, error) {
	recordersMu.Lock()
	defer recordersMu.Unlock()
	if name == "" {
		if len(recorders) != 1 {
			return nil, fmt.Errorf("%w: %d recorders exist, name required", ErrNoRecorder, len(recorders))
		}
		for _, r := range recorders {
			return r, nil
		}
	}
	r, ok := recorders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoRecorder, name)
	}
	return r, nil
}

// Name returns the recorder's registered name.
func (r *Recorder) Name() string { return r.name }

// Store exposes the underlying sample store, for reporting and
// persistence collaborators.
func (r *Recorder) Store() *SampleStore { return r.store }

// Keys returns every canonical key seen by this recorder.
func (r *Recorder) Keys() []Key { return r.registry.Keys() }

// BeginCall opens a call at path using the recorder's clock and returns
// its occurrence id.
func (r *Recorder) BeginCall(path ...string) uint64 {
	return r.BeginCallAt(r.clock(), path...)
}

// BeginCallAt opens a call at path with an externally captured start
// timestamp. Never fails.
func (r *Recorder) BeginCallAt(startTime float64, path ...string) uint64 {
	r.registry.Register(markerKey(Start, path))
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracker.OnStart(path, startTime)
}

// EndCall closes the most recent open call at path using the recorder's
// clock, records the elapsed duration, and returns it.
func (r *Recorder) EndCall(path ...string) (float64, error) {
	return r.EndCallAt(r.clock(), path...)
}

// EndCallAt closes the most recent open call at path against the given
// end timestamp. The elapsed duration is stored under the path's
// duration key. Fails with ErrUnmatchedEnd when no call is open.
func (r *Recorder) EndCallAt(timestamp float64, path ...string) (float64, error) {
	r.registry.Register(markerKey(End, path))
	r.mu.Lock()
	duration, err := r.tracker.OnEnd(path, timestamp)
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}
	r.store.Record(r.registry.Register(DurationKey(path...)), duration)
	return duration, nil
}

// OpenDepth returns the number of currently open calls at path.
func (r *Recorder) OpenDepth(path ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracker.OpenDepth(path)
}

// Event records a free labeled timestamp using the recorder's clock.
func (r *Recorder) Event(description string) error {
	return r.EventAt(r.clock(), description)
}

// EventAt records a free labeled timestamp.
func (r *Recorder) EventAt(timestamp float64, description string) error {
	key, err := Canonicalize(description)
	if err != nil {
		return err
	}
	r.store.Record(r.registry.Register(key), timestamp)
	return nil
}

// ScopedEvent records a labeled timestamp attributed to the given frame
// path, using the recorder's clock.
func (r *Recorder) ScopedEvent(description string, path ...string) error {
	return r.ScopedEventAt(r.clock(), description, path...)
}

// ScopedEventAt records a labeled timestamp attributed to the given
// frame path. Scoped events are stored directly and never take part in
// start/end pairing.
func (r *Recorder) ScopedEventAt(timestamp float64, description string, path ...string) error {
	key := ScopedKey(path, description)
	if err := key.validate(); err != nil {
		return err
	}
	r.store.Record(r.registry.Register(key), timestamp)
	return nil
}

// Stamp records a labeled timestamp scoped to the innermost currently
// open call, or as a free event when no call is open.
func (r *Recorder) Stamp(description string) error {
	return r.StampAt(r.clock(), description)
}

// StampAt is Stamp with an externally captured timestamp.
func (r *Recorder) StampAt(timestamp float64, description string) error {
	r.mu.Lock()
	path := r.tracker.CurrentPath()
	r.mu.Unlock()
	if len(path) == 0 {
		return r.EventAt(timestamp, description)
	}
	return r.ScopedEventAt(timestamp, description, path...)
}

// Observe routes one raw (key, timestamp) observation: start and end
// markers go through call pairing, descriptions are stored directly.
func (r *Recorder) Observe(raw any, timestamp float64) error {
	key, err := Canonicalize(raw)
	if err != nil {
		return err
	}
	switch key.Marker {
	case Start:
		r.BeginCallAt(timestamp, key.Path...)
		return nil
	case End:
		_, err := r.EndCallAt(timestamp, key.Path...)
		return err
	default:
		r.store.Record(r.registry.Register(key), timestamp)
		return nil
	}
}

// Query assembles the frame view for path.
func (r *Recorder) Query(path ...string) (*Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ForPath(r.store, r.tracker, path)
}

// Stats returns aggregate statistics for a description or a path. A
// string is a free description key; a sequence of frame names is the
// path's duration series; a Key is used as-is.
func (r *Recorder) Stats(raw any) (SeriesStats, error) {
	switch v := raw.(type) {
	case Key:
		return r.store.Stats(v)
	case string:
		key, err := Canonicalize(v)
		if err != nil {
			return SeriesStats{}, err
		}
		return r.store.Stats(key)
	case []string:
		if len(v) == 0 {
			return SeriesStats{}, fmt.Errorf("%w: empty path", ErrInvalidKey)
		}
		return r.store.Stats(DurationKey(v...))
	}
	return SeriesStats{}, fmt.Errorf("%w: unsupported raw key type %T", ErrInvalidKey, raw)
}

// DurationStats returns the completed-call statistics for path.
func (r *Recorder) DurationStats(path ...string) (SeriesStats, error) {
	return r.store.Stats(DurationKey(path...))
}

// EventStats returns the statistics for a labeled event, free when no
// path is given.
func (r *Recorder) EventStats(description string, path ...string) (SeriesStats, error) {
	if len(path) == 0 {
		return r.store.Stats(FreeKey(description))
	}
	return r.store.Stats(ScopedKey(path, description))
}

// Difference pairs two retained event series index-wise and returns
// statistics over their deltas: the i-th start event against the i-th
// end event. Requires a recorder created with WithRetention. Fails with
// ErrUnpairedEvents when the series have different lengths.
func (r *Recorder) Difference(startDesc, endDesc string, path ...string) (SeriesStats, error) {
	var startKey, endKey Key
	if len(path) == 0 {
		startKey, endKey = FreeKey(startDesc), FreeKey(endDesc)
	} else {
		startKey, endKey = ScopedKey(path, startDesc), ScopedKey(path, endDesc)
	}

	startTimes, err := r.store.Values(startKey)
	if err != nil {
		return SeriesStats{}, err
	}
	endTimes, err := r.store.Values(endKey)
	if err != nil {
		return SeriesStats{}, err
	}
	if len(startTimes) != len(endTimes) {
		return SeriesStats{}, fmt.Errorf("%w: %d %q vs %d %q events",
			ErrUnpairedEvents, len(startTimes), startDesc, len(endTimes), endDesc)
	}

	var deltas sampleSeries
	for i := range startTimes {
		deltas.add(endTimes[i]-startTimes[i], false)
	}
	sum := deltas.total()
	return SeriesStats{
		Count: deltas.count,
		Sum:   sum,
		Mean:  sum / float64(deltas.count),
	}, nil
}

// Merge folds another recorder's recorded series and reported paths
// into this one. Open calls are not transferred: each timeline must
// close its own calls before merging.
func (r *Recorder) Merge(other *Recorder) {
	other.mu.Lock()
	reported := make(map[string][]string, len(other.reported))
	for name, path := range other.reported {
		reported[name] = path
	}
	other.mu.Unlock()

	r.store.Merge(other.store)
	for _, key := range other.registry.Keys() {
		r.registry.Register(key)
	}

	r.mu.Lock()
	for name, path := range reported {
		r.reported[name] = path
	}
	r.mu.Unlock()
}

// Time opens a call at path, marks it for reporting, and returns the
// closure that closes it. Typical use instruments a whole function:
//
//	defer rec.Time("loader", "parse")()
func (r *Recorder) Time(path ...string) func() {
	r.mu.Lock()
	r.reported[strings.Join(path, "/")] = path
	r.mu.Unlock()

	r.BeginCall(path...)
	return func() {
		// Cannot be unmatched: the call was opened above.
		_, _ = r.EndCall(path...)
	}
}

// ReportedPaths returns the frame paths instrumented through Time,
// sorted by joined name.
func (r *Recorder) ReportedPaths() [][]string {
	r.mu.Lock()
	names := make([]string, 0, len(r.reported))
	for name := range r.reported {
		names = append(names, name)
	}
	sort.Strings(names)
	paths := make([][]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, r.reported[name])
	}
	r.mu.Unlock()
	return paths
}
