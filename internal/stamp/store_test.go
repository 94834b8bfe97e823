package stamp

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreStats(t *testing.T) {
	store := NewSampleStore(false)
	key := FreeKey("render")

	for _, v := range []float64{1.0, 2.0, 3.0} {
		store.Record(key, v)
	}

	stats, err := store.Stats(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Count)
	assert.InDelta(t, 6.0, stats.Sum, 1e-9)
	assert.InDelta(t, 2.0, stats.Mean, 1e-9)
}

func TestStoreEmptySeries(t *testing.T) {
	store := NewSampleStore(false)

	_, err := store.Stats(FreeKey("nothing"))
	require.ErrorIs(t, err, ErrEmptySeries)
}

func TestStoreMeanMatchesNaiveSum(t *testing.T) {
	store := NewSampleStore(false)
	key := DurationKey("busy")
	rng := rand.New(rand.NewSource(42))

	var naive float64
	const n = 100000
	for i := 0; i < n; i++ {
		v := rng.Float64() * 1e-3
		naive += v
		store.Record(key, v)
	}

	stats, err := store.Stats(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(n), stats.Count)
	assert.InEpsilon(t, naive, stats.Sum, 1e-9)
	assert.InEpsilon(t, naive/n, stats.Mean, 1e-9)
}

func TestStoreRetention(t *testing.T) {
	retained := NewSampleStore(true)
	key := FreeKey("tick")
	retained.Record(key, 3.0)
	retained.Record(key, 1.0)
	retained.Record(key, 2.0)

	values, err := retained.Values(key)
	require.NoError(t, err)
	assert.Equal(t, []float64{3.0, 1.0, 2.0}, values)

	// The returned slice is a copy.
	values[0] = 99
	again, err := retained.Values(key)
	require.NoError(t, err)
	assert.Equal(t, []float64{3.0, 1.0, 2.0}, again)

	bare := NewSampleStore(false)
	bare.Record(key, 1.0)
	_, err = bare.Values(key)
	require.ErrorIs(t, err, ErrNoRetention)

	_, err = retained.Values(FreeKey("absent"))
	require.ErrorIs(t, err, ErrEmptySeries)
}

func buildStore(t *testing.T, samples map[string][]float64) *SampleStore {
	t.Helper()
	store := NewSampleStore(false)
	for desc, values := range samples {
		for _, v := range values {
			store.Record(FreeKey(desc), v)
		}
	}
	return store
}

func TestStoreMergeCommutativeAssociative(t *testing.T) {
	samples := []map[string][]float64{
		{"x": {1, 2}, "y": {10}},
		{"x": {3}, "z": {7, 8}},
		{"y": {20, 30}, "z": {9}},
	}

	collect := func(order ...int) map[string]SeriesStats {
		total := NewSampleStore(false)
		for _, i := range order {
			total.Merge(buildStore(t, samples[i]))
		}
		out := make(map[string]SeriesStats)
		total.Each(func(k Key, s SeriesStats) { out[k.Description] = s })
		return out
	}

	abc := collect(0, 1, 2)
	cba := collect(2, 1, 0)
	bac := collect(1, 0, 2)

	assert.Equal(t, abc, cba)
	assert.Equal(t, abc, bac)

	assert.Equal(t, uint64(3), abc["x"].Count)
	assert.InDelta(t, 6.0, abc["x"].Sum, 1e-9)
	assert.Equal(t, uint64(3), abc["y"].Count)
	assert.InDelta(t, 60.0, abc["y"].Sum, 1e-9)
	assert.Equal(t, uint64(3), abc["z"].Count)
	assert.InDelta(t, 24.0, abc["z"].Sum, 1e-9)
}

func TestStoreMergeRetainsValues(t *testing.T) {
	a := NewSampleStore(true)
	b := NewSampleStore(true)
	key := FreeKey("tick")
	a.Record(key, 1.0)
	b.Record(key, 2.0)

	a.Merge(b)
	values, err := a.Values(key)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 2.0}, values)
}

func TestStoreLoadSeries(t *testing.T) {
	store := NewSampleStore(false)
	key := DurationKey("loader")
	store.Record(key, 1.5)

	store.LoadSeries(key, 3, 4.5, nil)

	stats, err := store.Stats(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stats.Count)
	assert.InDelta(t, 6.0, stats.Sum, 1e-9)
	assert.InDelta(t, 1.5, stats.Mean, 1e-9)
}

func TestStoreConcurrentWriters(t *testing.T) {
	store := NewSampleStore(false)
	key := FreeKey("shared")

	var wg sync.WaitGroup
	const workers, perWorker = 8, 1000
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				store.Record(key, 1.0)
			}
		}()
	}
	wg.Wait()

	stats, err := store.Stats(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*perWorker), stats.Count)
	assert.InDelta(t, float64(workers*perWorker), stats.Sum, 1e-6)
}
