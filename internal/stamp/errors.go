package stamp

import "errors"

var (
	// ErrInvalidKey is returned when a raw key is neither a non-empty
	// description string nor a sequence of frame names ending in a
	// description or a Start/End marker.
	ErrInvalidKey = errors.New("invalid stamp key")

	// ErrUnmatchedEnd is returned when an end marker arrives for a path
	// with no open call. It signals lost or duplicated instrumentation
	// upstream and is never masked by a zero-duration sample.
	ErrUnmatchedEnd = errors.New("end marker without matching start")

	// ErrEmptySeries is returned when statistics are requested for a key
	// that has no recorded samples, so callers can tell "no data" apart
	// from a genuine zero.
	ErrEmptySeries = errors.New("no samples recorded for key")

	// ErrUnknownPath is returned by frame queries against a path with no
	// recorded series and no open call.
	ErrUnknownPath = errors.New("no data recorded for path")

	// ErrNoRecorder is returned when looking up a named recorder that was
	// never created, or an unnamed lookup when more than one exists.
	ErrNoRecorder = errors.New("no such recorder")

	// ErrUnpairedEvents is returned by Difference when the two event
	// series cannot be paired index-wise.
	ErrUnpairedEvents = errors.New("event series have different lengths")

	// ErrNoRetention is returned when raw values are requested from a
	// store that only keeps running statistics.
	ErrNoRetention = errors.New("raw value retention is not enabled")
)
