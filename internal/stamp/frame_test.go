package stamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameForPath(t *testing.T) {
	store := NewSampleStore(false)
	tracker := NewCallStackTracker()
	path := []string{"outer", "inner"}

	tracker.OnStart(path, 0)
	d, err := tracker.OnEnd(path, 5)
	require.NoError(t, err)
	store.Record(DurationKey(path...), d)
	store.Record(ScopedKey(path, "checkpoint"), 2.5)
	store.Record(ScopedKey(path, "checkpoint"), 4.5)

	// Data at other paths must not leak into this frame.
	store.Record(DurationKey("outer"), 9.0)
	store.Record(ScopedKey([]string{"outer", "inner", "deep"}, "checkpoint"), 1.0)

	frame, err := ForPath(store, tracker, path)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), frame.CallCount())
	mean, err := frame.MeanRuntime()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.Equal(t, 0, frame.OpenDepth)

	assert.Equal(t, []string{"checkpoint"}, frame.EventNames())
	events, err := frame.EventStats("checkpoint")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), events.Count)
	assert.InDelta(t, 7.0, events.Sum, 1e-9)

	_, err = frame.EventStats("missing")
	require.ErrorIs(t, err, ErrEmptySeries)
}

func TestFrameUnknownPath(t *testing.T) {
	store := NewSampleStore(false)
	tracker := NewCallStackTracker()

	_, err := ForPath(store, tracker, []string{"ghost"})
	require.ErrorIs(t, err, ErrUnknownPath)
}

func TestFrameOpenCallOnly(t *testing.T) {
	store := NewSampleStore(false)
	tracker := NewCallStackTracker()
	path := []string{"busy"}

	tracker.OnStart(path, 1)
	tracker.OnStart(path, 2)

	frame, err := ForPath(store, tracker, path)
	require.NoError(t, err)
	assert.Equal(t, 2, frame.OpenDepth)
	assert.Equal(t, uint64(0), frame.CallCount())

	_, err = frame.MeanRuntime()
	require.ErrorIs(t, err, ErrEmptySeries)
}

func TestFrameIsSnapshot(t *testing.T) {
	store := NewSampleStore(false)
	tracker := NewCallStackTracker()
	path := []string{"loader"}
	store.Record(DurationKey(path...), 1.0)

	frame, err := ForPath(store, tracker, path)
	require.NoError(t, err)

	// Later records do not show up in an already-built frame.
	store.Record(DurationKey(path...), 3.0)
	assert.Equal(t, uint64(1), frame.CallCount())

	fresh, err := ForPath(store, tracker, path)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fresh.CallCount())
}
