package view

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/luki/sia/internal/history"
	"github.com/luki/sia/internal/sensor"
)

// KHzPerGHz scales CPU frequency samples to GHz.
const KHzPerGHz = 1e6

// Trace is one drawable line: a series, the divisor applied to its values,
// and how to label and color it.
type Trace struct {
	Label   string
	Series  *history.Series
	Divisor float64
	Color   colorful.Color
	Warn    float64
	Hot     float64
}

// Scaled returns the trace's samples within the window, divided.
func (t Trace) Scaled(xMin float64) []history.Point {
	var out []history.Point
	for x, y := range t.Series.PointsAfterScaled(xMin, t.divisor()) {
		out = append(out, history.Point{Time: x, Value: y})
	}
	return out
}

// Last returns the newest scaled value, ok=false when none.
func (t Trace) Last() (float64, bool) {
	v, ok := t.Series.LastValue()
	if !ok {
		return 0, false
	}
	return v / t.divisor(), true
}

func (t Trace) divisor() float64 {
	if t.Divisor == 0 {
		return 1
	}
	return t.Divisor
}

// TempTraces returns the drawn temperature items of every visible group.
func (s *State) TempTraces(groups []sensor.Group, store *history.Store) []Trace {
	var out []Trace
	for _, g := range groups {
		for _, it := range s.VisibleItems(g) {
			series := store.Get(it.SeriesIndex)
			if series == nil {
				continue
			}
			out = append(out, Trace{
				Label:  g.Display + ": " + it.Name,
				Series: series,
				Color:  it.Color,
				Warn:   g.Warn,
				Hot:    g.Hot,
			})
		}
	}
	return out
}

// FreqTraces returns the drawn per-core frequencies in GHz, followed by the
// drawn accelerator clocks when includeClocks is set.
func (s *State) FreqTraces(catalog *sensor.Catalog, store *history.Store, includeClocks bool) []Trace {
	freqs := catalog.Freqs()
	colors := sensor.Palette("cpu", len(freqs))

	var out []Trace
	for i, f := range freqs {
		if !s.FreqVisible(i) {
			continue
		}
		out = append(out, Trace{
			Label:   fmt.Sprintf("CPU Core %d", f.Core),
			Series:  store.Freq(i),
			Divisor: KHzPerGHz,
			Color:   colors[i],
		})
	}
	if !includeClocks {
		return out
	}
	for _, c := range GPUClocks {
		if !s.ClockVisible(c) {
			continue
		}
		out = append(out, Trace{
			Label:   s.ClockLabel(c),
			Series:  store.Channel(c),
			Divisor: s.ClockDivisor(c),
			Color:   sensor.BaseColor("gpu"),
		})
	}
	return out
}

// TempRange is the y-range of the temperature panel: the window extrema of
// traces padded by max(10% of span, 2) and clamped to [0, 130]. With no
// data it starts from [0, 120].
func TempRange(traces []Trace, xMin, xMax float64) (lo, hi float64) {
	return autoRange(traces, xMin, xMax, 0, 120, 0.10, 2, 130)
}

// FreqRange is the y-range of the frequency panel in GHz: padded by
// max(8% of span, 0.05) and clamped to [0, 12]. With no data it starts
// from [0.1, 10].
func FreqRange(traces []Trace, xMin, xMax float64) (lo, hi float64) {
	return autoRange(traces, xMin, xMax, 0.1, 10, 0.08, 0.05, 12)
}

func autoRange(traces []Trace, xMin, xMax, defLo, defHi, padFrac, padMin, ceil float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range traces {
		a, b, ok := t.Series.MinMaxY(xMin, xMax)
		if !ok {
			continue
		}
		lo = min(lo, a/t.divisor())
		hi = max(hi, b/t.divisor())
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) || math.Abs(hi-lo) < 1e-6 {
		lo, hi = defLo, defHi
	}
	pad := max((hi-lo)*padFrac, padMin)
	return max(lo-pad, 0), min(hi+pad, ceil)
}

// Badge marks a reading at or above a group threshold.
type Badge int

const (
	BadgeNone Badge = iota
	BadgeWarm
	BadgeHot
)

func (b Badge) String() string {
	switch b {
	case BadgeHot:
		return "hot"
	case BadgeWarm:
		return "warm"
	}
	return ""
}

// BadgeOf classifies the trace's newest value. A missing value never
// badges.
func BadgeOf(t Trace) Badge {
	v, ok := t.Last()
	if !ok {
		return BadgeNone
	}
	switch {
	case t.Hot > 0 && v >= t.Hot:
		return BadgeHot
	case t.Warn > 0 && v >= t.Warn:
		return BadgeWarm
	}
	return BadgeNone
}
