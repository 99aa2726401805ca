// Package history provides fixed-capacity rolling time series, one per
// scalar metric, with windowed point, extrema and last-value queries.
package history

import (
	"iter"
	"math"
	"sync"
)

// Point is a single sample in a series. Timestamps are virtual seconds
// from the sampling clock, not wall-clock time.
type Point struct {
	Time  float64
	Value float64
}

// Series is a circular buffer of (timestamp, value) pairs. Once full, the
// oldest pair is evicted on every push. A single writer may push while any
// number of readers query; each call takes the lock for its own duration.
type Series struct {
	mu    sync.RWMutex
	xs    []float64
	ys    []float64
	start int // index of the oldest entry
	n     int
}

// NewSeries creates a series that retains at most capacity samples.
func NewSeries(capacity int) *Series {
	if capacity < 1 {
		capacity = 1
	}
	return &Series{
		xs: make([]float64, capacity),
		ys: make([]float64, capacity),
	}
}

// Cap returns the maximum number of retained samples.
func (s *Series) Cap() int { return len(s.xs) }

// Len returns the number of retained samples.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}

// Push appends a sample, evicting the oldest one when the series is full.
// A timestamp older than the newest retained sample is rejected and Push
// reports false.
func (s *Series) Push(t, v float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.n > 0 && t < s.xs[s.at(s.n-1)] {
		return false
	}
	if s.n == len(s.xs) {
		s.xs[s.start] = t
		s.ys[s.start] = v
		s.start = (s.start + 1) % len(s.xs)
		return true
	}
	i := s.at(s.n)
	s.xs[i] = t
	s.ys[i] = v
	s.n++
	return true
}

func (s *Series) at(i int) int {
	return (s.start + i) % len(s.xs)
}

// PointsAfter yields every retained sample with timestamp >= xMin, oldest
// first. The sequence may be ranged over any number of times; each pass
// observes the series as it is when the pass begins. Do not push to the
// same series from inside the loop body.
func (s *Series) PointsAfter(xMin float64) iter.Seq2[float64, float64] {
	return s.PointsAfterScaled(xMin, 1)
}

// PointsAfterScaled is PointsAfter with every value divided by divisor,
// e.g. 1e6 to turn kHz into GHz.
func (s *Series) PointsAfterScaled(xMin, divisor float64) iter.Seq2[float64, float64] {
	return func(yield func(float64, float64) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for i := 0; i < s.n; i++ {
			j := s.at(i)
			if s.xs[j] < xMin {
				continue
			}
			if !yield(s.xs[j], s.ys[j]/divisor) {
				return
			}
		}
	}
}

// MinMaxY returns the smallest and largest value among samples whose
// timestamp lies in [xMin, xMax]. NaN samples are ignored. ok is false
// when no numeric sample falls in the range.
func (s *Series) MinMaxY(xMin, xMax float64) (lo, hi float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < s.n; i++ {
		j := s.at(i)
		x, y := s.xs[j], s.ys[j]
		if x < xMin || x > xMax || math.IsNaN(y) {
			continue
		}
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	if math.IsInf(lo, 1) || math.IsInf(hi, -1) {
		return 0, 0, false
	}
	return lo, hi, true
}

// LastValue returns the most recent value. ok is false when the series is
// empty or the newest sample is the NaN no-data sentinel.
func (s *Series) LastValue() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.n == 0 {
		return 0, false
	}
	v := s.ys[s.at(s.n-1)]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// LastNPoints returns a copy of the newest n samples, oldest first.
func (s *Series) LastNPoints(n int) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || s.n == 0 {
		return nil
	}
	if n > s.n {
		n = s.n
	}
	out := make([]Point, 0, n)
	for i := s.n - n; i < s.n; i++ {
		j := s.at(i)
		out = append(out, Point{Time: s.xs[j], Value: s.ys[j]})
	}
	return out
}

// Window returns a copy of the samples with timestamp >= xMin, oldest first.
func (s *Series) Window(xMin float64) []Point {
	var out []Point
	for x, y := range s.PointsAfter(xMin) {
		out = append(out, Point{Time: x, Value: y})
	}
	return out
}
