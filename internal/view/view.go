// Package view holds presentation state: what the monitor shows and over
// which window. It never touches the telemetry engine's data; visibility
// is seeded once from the groups' default visibility and then owned here.
package view

import (
	"github.com/luki/sia/internal/history"
	"github.com/luki/sia/internal/sensor"
)

// Window length bounds and step, in seconds.
const (
	MinWindow  = 30
	MaxWindow  = 900
	WindowStep = 30
)

// Legend is where the item legend is drawn.
type Legend string

const (
	LegendFooter Legend = "footer"
	LegendSide   Legend = "side"
)

// Panel is one of the chart panels.
type Panel int

const (
	PanelUtil Panel = iota
	PanelTemps
	PanelFreqs
	numPanels
)

// GPUClocks lists the clock channels in display order.
var GPUClocks = []history.Channel{
	history.GPUClockGraphics,
	history.GPUClockSM,
	history.GPUClockMemory,
	history.GPUClockVideo,
}

// State is the mutable presentation state of one monitor session.
type State struct {
	window int
	legend Legend

	panels [numPanels]bool

	// keyed by series index
	items  map[int]bool
	groups map[string]bool

	freqs        []bool
	clocks       map[history.Channel]bool
	memEffective bool
}

// New seeds the state: each item starts at its default visibility, every
// group and every per-core frequency is shown, and of the accelerator
// clocks only graphics is shown. The memory clock starts at its effective
// rate.
func New(groups []sensor.Group, numFreqs, windowSeconds int, legend Legend) *State {
	s := &State{
		window: clampWindow(windowSeconds),
		legend: legend,
		items:  map[int]bool{},
		groups: map[string]bool{},
		freqs:  make([]bool, numFreqs),
		clocks: map[history.Channel]bool{history.GPUClockGraphics: true},

		memEffective: true,
	}
	if s.legend != LegendSide {
		s.legend = LegendFooter
	}
	for i := range s.panels {
		s.panels[i] = true
	}
	for _, g := range groups {
		s.groups[g.Key] = true
		for _, it := range g.Items {
			s.items[it.SeriesIndex] = it.DefaultVisible
		}
	}
	for i := range s.freqs {
		s.freqs[i] = true
	}
	return s
}

func clampWindow(w int) int {
	return min(max(w, MinWindow), MaxWindow)
}

// WindowSeconds returns the window length.
func (s *State) WindowSeconds() int { return s.window }

// SetWindow sets the window length, clamped to [MinWindow, MaxWindow].
func (s *State) SetWindow(seconds int) { s.window = clampWindow(seconds) }

// Widen and Narrow step the window length.
func (s *State) Widen()  { s.SetWindow(s.window + WindowStep) }
func (s *State) Narrow() { s.SetWindow(s.window - WindowStep) }

// XRange returns the visible time range for the given virtual time. Until
// a full window has elapsed the range is anchored at zero.
func (s *State) XRange(now float64) (lo, hi float64) {
	w := float64(s.window)
	if now > w {
		return now - w, now
	}
	return 0, w
}

func (s *State) Legend() Legend { return s.legend }

// ToggleLegend flips between footer and side placement.
func (s *State) ToggleLegend() {
	if s.legend == LegendFooter {
		s.legend = LegendSide
	} else {
		s.legend = LegendFooter
	}
}

func (s *State) PanelVisible(p Panel) bool {
	return p >= 0 && p < numPanels && s.panels[p]
}

func (s *State) TogglePanel(p Panel) {
	if p >= 0 && p < numPanels {
		s.panels[p] = !s.panels[p]
	}
}

// GroupVisible reports whether a group is shown. Unknown groups are shown.
func (s *State) GroupVisible(key string) bool {
	v, ok := s.groups[key]
	return !ok || v
}

func (s *State) ToggleGroup(key string) {
	s.groups[key] = !s.GroupVisible(key)
}

// ItemVisible reports the item's own flag, regardless of its group.
func (s *State) ItemVisible(seriesIndex int) bool {
	return s.items[seriesIndex]
}

func (s *State) ToggleItem(seriesIndex int) {
	s.items[seriesIndex] = !s.items[seriesIndex]
}

// SetGroupItems shows or hides every item of g.
func (s *State) SetGroupItems(g sensor.Group, visible bool) {
	for _, it := range g.Items {
		s.items[it.SeriesIndex] = visible
	}
}

// Shown reports whether an item is drawn: its group and itself are visible.
func (s *State) Shown(g sensor.Group, it sensor.Item) bool {
	return s.GroupVisible(g.Key) && s.ItemVisible(it.SeriesIndex)
}

// VisibleItems returns the drawn items of g.
func (s *State) VisibleItems(g sensor.Group) []sensor.Item {
	if !s.GroupVisible(g.Key) {
		return nil
	}
	var out []sensor.Item
	for _, it := range g.Items {
		if s.items[it.SeriesIndex] {
			out = append(out, it)
		}
	}
	return out
}

// FreqVisible reports whether the i-th frequency sensor is drawn.
func (s *State) FreqVisible(i int) bool {
	return i >= 0 && i < len(s.freqs) && s.freqs[i]
}

func (s *State) ToggleFreq(i int) {
	if i >= 0 && i < len(s.freqs) {
		s.freqs[i] = !s.freqs[i]
	}
}

// SetAllFreqs shows or hides every frequency sensor.
func (s *State) SetAllFreqs(visible bool) {
	for i := range s.freqs {
		s.freqs[i] = visible
	}
}

func (s *State) ClockVisible(c history.Channel) bool { return s.clocks[c] }

func (s *State) ToggleClock(c history.Channel) { s.clocks[c] = !s.clocks[c] }

// MemEffective reports whether the memory clock is shown doubled, as the
// effective data rate.
func (s *State) MemEffective() bool { return s.memEffective }

func (s *State) ToggleMemEffective() { s.memEffective = !s.memEffective }

// ClockDivisor returns the divisor that turns a clock channel's MHz into
// GHz, honoring the effective memory clock toggle.
func (s *State) ClockDivisor(c history.Channel) float64 {
	if c == history.GPUClockMemory && s.memEffective {
		return 500
	}
	return 1000
}

// ClockLabel names a clock channel for the legend.
func (s *State) ClockLabel(c history.Channel) string {
	if c == history.GPUClockMemory && s.memEffective {
		return "GPU Memory (effective)"
	}
	return c.String()
}
