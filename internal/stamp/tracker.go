package stamp

import "fmt"

// openCall is one started-but-not-finished call of a frame path.
type openCall struct {
	path       []string
	occurrence uint64
	startTime  float64
}

// CallStackTracker pairs Start and End markers for nested frame paths.
// Calls at the same path are matched LIFO, so direct recursion and
// repeated invocation before a prior call ends both pair correctly.
//
// A tracker assumes a single sequential timeline: use one tracker per
// concurrent execution context (the Recorder enforces this with its own
// lock) rather than sharing an instance across goroutines.
type CallStackTracker struct {
	open   map[uint64][]*openCall
	nextID map[uint64]uint64
	stack  []*openCall // every open call, in open order; innermost last
}

// NewCallStackTracker creates a tracker with no open calls.
func NewCallStackTracker() *CallStackTracker {
	return &CallStackTracker{
		open:   make(map[uint64][]*openCall),
		nextID: make(map[uint64]uint64),
	}
}

func pathHandle(path []string) uint64 {
	return DurationKey(path...).Hash()
}

// OnStart opens a call at path with the given start timestamp and
// returns its occurrence id. Ids count up from 0 per distinct path, so
// concurrently open calls at one path stay distinguishable.
func (t *CallStackTracker) OnStart(path []string, startTime float64) uint64 {
	h := pathHandle(path)
	id := t.nextID[h]
	t.nextID[h] = id + 1

	call := &openCall{path: path, occurrence: id, startTime: startTime}
	t.open[h] = append(t.open[h], call)
	t.stack = append(t.stack, call)
	return id
}

// OnEnd closes the most recently opened unmatched call at path and
// returns the elapsed duration. Fails with ErrUnmatchedEnd when no call
// is open at that path.
func (t *CallStackTracker) OnEnd(path []string, timestamp float64) (float64, error) {
	h := pathHandle(path)
	calls := t.open[h]
	if len(calls) == 0 {
		return 0, fmt.Errorf("%w: path %s", ErrUnmatchedEnd, DurationKey(path...))
	}

	call := calls[len(calls)-1]
	t.open[h] = calls[:len(calls)-1]
	if len(t.open[h]) == 0 {
		delete(t.open, h)
	}

	// Drop the call from the global open order as well. It is almost
	// always the innermost entry, so scan from the top.
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i] == call {
			t.stack = append(t.stack[:i], t.stack[i+1:]...)
			break
		}
	}

	return timestamp - call.startTime, nil
}

// OpenDepth returns the number of currently unmatched calls at path.
func (t *CallStackTracker) OpenDepth(path []string) int {
	return len(t.open[pathHandle(path)])
}

// CurrentPath returns the frame path of the innermost open call, or nil
// when no call is open. Description stamps use it to attach labeled
// events to the enclosing call.
func (t *CallStackTracker) CurrentPath() []string {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1].path
}
