package stamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerNestedPairing(t *testing.T) {
	tr := NewCallStackTracker()
	outer := []string{"outer"}
	inner := []string{"outer", "inner"}

	tr.OnStart(outer, 0)
	tr.OnStart(inner, 1)

	d, err := tr.OnEnd(inner, 4)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, d, 1e-9)

	d, err = tr.OnEnd(outer, 10)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, d, 1e-9)
}

func TestTrackerRecursionMatchesLIFO(t *testing.T) {
	tr := NewCallStackTracker()
	p := []string{"fib"}

	first := tr.OnStart(p, 0)
	second := tr.OnStart(p, 2)
	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(1), second)
	assert.Equal(t, 2, tr.OpenDepth(p))

	// The first end closes the second (innermost) start.
	d, err := tr.OnEnd(p, 5)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, d, 1e-9)
	assert.Equal(t, 1, tr.OpenDepth(p))

	d, err = tr.OnEnd(p, 9)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, d, 1e-9)
	assert.Equal(t, 0, tr.OpenDepth(p))
}

func TestTrackerUnmatchedEnd(t *testing.T) {
	tr := NewCallStackTracker()

	_, err := tr.OnEnd([]string{"never"}, 1)
	require.ErrorIs(t, err, ErrUnmatchedEnd)

	// Ending an already closed call fails too.
	tr.OnStart([]string{"once"}, 0)
	_, err = tr.OnEnd([]string{"once"}, 1)
	require.NoError(t, err)
	_, err = tr.OnEnd([]string{"once"}, 2)
	require.ErrorIs(t, err, ErrUnmatchedEnd)
}

func TestTrackerEndDistinguishesPaths(t *testing.T) {
	tr := NewCallStackTracker()

	tr.OnStart([]string{"outer"}, 0)
	_, err := tr.OnEnd([]string{"outer", "inner"}, 1)
	require.ErrorIs(t, err, ErrUnmatchedEnd)
	assert.Equal(t, 1, tr.OpenDepth([]string{"outer"}))
}

func TestTrackerOccurrenceIDsPerPath(t *testing.T) {
	tr := NewCallStackTracker()
	a := []string{"a"}
	b := []string{"b"}

	assert.Equal(t, uint64(0), tr.OnStart(a, 0))
	assert.Equal(t, uint64(0), tr.OnStart(b, 0))
	assert.Equal(t, uint64(1), tr.OnStart(a, 1))

	// Ids keep increasing even after calls close.
	_, err := tr.OnEnd(a, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tr.OnStart(a, 3))
}

func TestTrackerCurrentPath(t *testing.T) {
	tr := NewCallStackTracker()
	assert.Nil(t, tr.CurrentPath())

	tr.OnStart([]string{"outer"}, 0)
	tr.OnStart([]string{"outer", "inner"}, 1)
	assert.Equal(t, []string{"outer", "inner"}, tr.CurrentPath())

	_, err := tr.OnEnd([]string{"outer", "inner"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer"}, tr.CurrentPath())

	// Interleaved siblings: closing the outer call first leaves the
	// sibling as the innermost open call.
	tr.OnStart([]string{"sibling"}, 3)
	_, err = tr.OnEnd([]string{"outer"}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"sibling"}, tr.CurrentPath())
}
