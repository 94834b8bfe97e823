package stamp

import (
	"fmt"
	"math"
	"sync"
)

// SeriesStats is the aggregate view over one recorded series.
type SeriesStats struct {
	Count uint64
	Sum   float64
	Mean  float64
}

// sampleSeries accumulates values with a compensated (Neumaier) running
// sum, so the mean stays exact to within floating-point tolerance even
// for long series, without retaining the full history.
type sampleSeries struct {
	count  uint64
	sum    float64
	comp   float64
	values []float64
}

func (s *sampleSeries) add(v float64, retain bool) {
	s.count++
	t := s.sum + v
	if math.Abs(s.sum) >= math.Abs(v) {
		s.comp += (s.sum - t) + v
	} else {
		s.comp += (v - t) + s.sum
	}
	s.sum = t
	if retain {
		s.values = append(s.values, v)
	}
}

func (s *sampleSeries) total() float64 {
	return s.sum + s.comp
}

// SampleStore holds every recorded series, keyed by canonical key.
// Updates are O(1) per sample and storage is O(distinct keys) unless
// raw-value retention is enabled. Safe for concurrent writers.
type SampleStore struct {
	mu     sync.Mutex
	retain bool
	series map[uint64]*sampleSeries
	keys   map[uint64]Key
}

// NewSampleStore creates an empty store. With retainValues set, every
// recorded value is also kept in order, for callers that later need
// percentiles, variance, or index-wise pairing of two series.
func NewSampleStore(retainValues bool) *SampleStore {
	return &SampleStore{
		retain: retainValues,
		series: make(map[uint64]*sampleSeries),
		keys:   make(map[uint64]Key),
	}
}

// Retaining reports whether the store keeps raw values.
func (s *SampleStore) Retaining() bool {
	return s.retain
}

// Record appends value to the series for key.
func (s *SampleStore) Record(key Key, value float64) {
	h := key.Hash()
	s.mu.Lock()
	defer s.mu.Unlock()
	ser, ok := s.series[h]
	if !ok {
		ser = &sampleSeries{}
		s.series[h] = ser
		s.keys[h] = key
	}
	ser.add(value, s.retain)
}

// Stats returns the aggregate statistics for key. A key with no
// recorded samples fails with ErrEmptySeries: the mean of nothing is
// undefined, not zero.
func (s *SampleStore) Stats(key Key) (SeriesStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ser, ok := s.series[key.Hash()]
	if !ok || ser.count == 0 {
		return SeriesStats{}, fmt.Errorf("%w: %s", ErrEmptySeries, key)
	}
	sum := ser.total()
	return SeriesStats{
		Count: ser.count,
		Sum:   sum,
		Mean:  sum / float64(ser.count),
	}, nil
}

// Values returns a copy of the raw recorded sequence for key. Fails
// with ErrNoRetention unless the store was created retaining values,
// and with ErrEmptySeries when nothing was recorded.
func (s *SampleStore) Values(key Key) ([]float64, error) {
	if !s.retain {
		return nil, ErrNoRetention
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ser, ok := s.series[key.Hash()]
	if !ok || ser.count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySeries, key)
	}
	out := make([]float64, len(ser.values))
	copy(out, ser.values)
	return out, nil
}

// Merge folds another store's series into this one, combining counts
// and sums per key. Commutative and associative on {count, sum}, it is
// the designated way to combine state gathered by independent trackers
// (e.g. one store per worker).
func (s *SampleStore) Merge(other *SampleStore) {
	type entry struct {
		key    Key
		count  uint64
		sum    float64
		values []float64
	}

	other.mu.Lock()
	entries := make([]entry, 0, len(other.series))
	for h, ser := range other.series {
		e := entry{key: other.keys[h], count: ser.count, sum: ser.total()}
		if len(ser.values) > 0 {
			e.values = make([]float64, len(ser.values))
			copy(e.values, ser.values)
		}
		entries = append(entries, e)
	}
	other.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		h := e.key.Hash()
		ser, ok := s.series[h]
		if !ok {
			ser = &sampleSeries{}
			s.series[h] = ser
			s.keys[h] = e.key
		}
		t := ser.sum + e.sum
		if math.Abs(ser.sum) >= math.Abs(e.sum) {
			ser.comp += (ser.sum - t) + e.sum
		} else {
			ser.comp += (e.sum - t) + ser.sum
		}
		ser.sum = t
		ser.count += e.count
		if s.retain && len(e.values) > 0 {
			ser.values = append(ser.values, e.values...)
		}
	}
}

// LoadSeries folds an externally persisted series into the store, as if
// its count/sum (and retained values, when enabled) had been recorded
// here. Used to resume aggregation from a snapshot.
func (s *SampleStore) LoadSeries(key Key, count uint64, sum float64, values []float64) {
	h := key.Hash()
	s.mu.Lock()
	defer s.mu.Unlock()
	ser, ok := s.series[h]
	if !ok {
		ser = &sampleSeries{}
		s.series[h] = ser
		s.keys[h] = key
	}
	t := ser.sum + sum
	if math.Abs(ser.sum) >= math.Abs(sum) {
		ser.comp += (ser.sum - t) + sum
	} else {
		ser.comp += (sum - t) + ser.sum
	}
	ser.sum = t
	ser.count += count
	if s.retain && len(values) > 0 {
		ser.values = append(ser.values, values...)
	}
}

// Each calls fn for every non-empty series with its current statistics.
// The iteration order is unspecified.
func (s *SampleStore) Each(fn func(Key, SeriesStats)) {
	type item struct {
		key   Key
		stats SeriesStats
	}
	s.mu.Lock()
	items := make([]item, 0, len(s.series))
	for h, ser := range s.series {
		if ser.count == 0 {
			continue
		}
		sum := ser.total()
		items = append(items, item{
			key:   s.keys[h],
			stats: SeriesStats{Count: ser.count, Sum: sum, Mean: sum / float64(ser.count)},
		})
	}
	s.mu.Unlock()
	for _, it := range items {
		fn(it.key, it.stats)
	}
}

// Len returns the number of distinct series recorded so far.
func (s *SampleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.series)
}
