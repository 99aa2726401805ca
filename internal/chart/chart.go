// Package chart provides sparkline rendering of series windows with
// color-coded thresholds, minute tick marks, timeline labels, and threshold
// scale bars.
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/luki/sia/internal/history"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

const (
	padGlyph  = '╌' // no sample yet
	gapGlyph  = '·' // sample is NaN
	tickGlyph = '│'
)

var (
	colorPad  = lipgloss.Color("236")
	colorTick = lipgloss.Color("239")
	colorGap  = lipgloss.Color("240")
	colorWarm = lipgloss.Color("208")
	colorHot  = lipgloss.Color("196")
	colorNear = lipgloss.Color("220")
)

// Style is how one line is drawn. Warn and Hot of zero disable threshold
// coloring.
type Style struct {
	Color colorful.Color
	Warn  float64
	Hot   float64
}

// LevelColor returns the color for a value: red at or above hot, orange at
// or above warn, yellow within 15% below warn, else the line's own color.
func LevelColor(v float64, st Style) lipgloss.Color {
	switch {
	case st.Hot > 0 && v >= st.Hot:
		return colorHot
	case st.Warn > 0 && v >= st.Warn:
		return colorWarm
	case st.Warn > 0 && v >= st.Warn*0.85:
		return colorNear
	default:
		return lipgloss.Color(st.Color.Hex())
	}
}

type column struct {
	value float64
	has   bool
	tick  bool
}

// columns buckets the points of [xMin, xMax] into width columns. A column
// holds its newest sample and is a tick column when a whole minute of
// virtual time falls inside it.
func columns(points []history.Point, width int, xMin, xMax float64) []column {
	cols := make([]column, width)
	span := xMax - xMin
	if span <= 0 {
		span = 1
	}
	dx := span / float64(width)

	for _, p := range points {
		if p.Time < xMin || p.Time > xMax {
			continue
		}
		c := int((p.Time - xMin) / dx)
		if c >= width {
			c = width - 1
		}
		cols[c].value = p.Value
		cols[c].has = true
	}
	for c := range cols {
		if !cols[c].has {
			continue
		}
		lo := xMin + float64(c)*dx
		hi := lo + dx
		m := math.Ceil(lo/60) * 60
		if m > 0 && m < hi {
			cols[c].tick = true
		}
	}
	return cols
}

// RenderSparkline draws points over [xMin, xMax] in width cells scaled to
// [lo, hi]. Cells without samples are padding; NaN samples are drawn as
// gaps. A subtle pipe marks each minute boundary.
func RenderSparkline(points []history.Point, width int, xMin, xMax, lo, hi float64, st Style) string {
	if width <= 0 {
		return ""
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	pad := lipgloss.NewStyle().Foreground(colorPad)
	tick := lipgloss.NewStyle().Foreground(colorTick)
	gap := lipgloss.NewStyle().Foreground(colorGap)

	var sb strings.Builder
	for _, col := range columns(points, width, xMin, xMax) {
		switch {
		case !col.has:
			sb.WriteString(pad.Render(string(padGlyph)))
		case math.IsNaN(col.value):
			sb.WriteString(gap.Render(string(gapGlyph)))
		case col.tick:
			sb.WriteString(tick.Render(string(tickGlyph)))
		default:
			norm := (col.value - lo) / span
			norm = math.Max(0, math.Min(1, norm))
			idx := min(int(norm*7), 7)
			style := lipgloss.NewStyle().Foreground(LevelColor(col.value, st))
			if st.Hot > 0 && col.value >= st.Hot {
				style = style.Bold(true)
			}
			sb.WriteString(style.Render(string(sparkBlocks[idx])))
		}
	}
	return sb.String()
}

// RenderTimeline renders m:ss labels under the minute ticks of a sparkline
// drawn with the same window and width.
func RenderTimeline(points []history.Point, width int, xMin, xMax float64) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}

	line := []rune(strings.Repeat(" ", width))
	span := xMax - xMin
	if span <= 0 {
		span = 1
	}
	dx := span / float64(width)

	lastEnd := -1
	for c, col := range columns(points, width, xMin, xMax) {
		if !col.tick {
			continue
		}
		minute := math.Ceil((xMin + float64(c)*dx) / 60)
		label := FormatClock(minute * 60)
		start := max(c-len(label)/2, 0)
		end := start + len(label)
		if end > width || start <= lastEnd+1 {
			continue
		}
		copy(line[start:], []rune(label))
		lastEnd = end
	}

	return lipgloss.NewStyle().Foreground(colorTick).Render(string(line))
}

// FormatClock formats virtual seconds as m:ss, or h:mm:ss past an hour.
func FormatClock(seconds float64) string {
	s := int(seconds)
	h, m := s/3600, (s%3600)/60
	s %= 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// RenderThresholdScale renders a scale bar showing current position vs
// the warn and hot thresholds.
func RenderThresholdScale(current, rangeMin, rangeMax float64, st Style, width int) string {
	if width <= 0 {
		return ""
	}

	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}
	pos := func(v float64) int {
		if v <= rangeMin {
			return -1
		}
		return int(float64(width-1) * (v - rangeMin) / span)
	}

	warnPos, hotPos := -1, -1
	if st.Warn > 0 {
		warnPos = pos(st.Warn)
	}
	if st.Hot > 0 {
		hotPos = pos(st.Hot)
	}
	curPos := -1
	if !math.IsNaN(current) {
		curPos = min(max(int(float64(width-1)*(current-rangeMin)/span), 0), width-1)
	}

	var sb strings.Builder
	for i := range width {
		switch i {
		case curPos:
			style := lipgloss.NewStyle().Foreground(LevelColor(current, st)).Bold(true)
			sb.WriteString(style.Render("◆"))
		case hotPos:
			sb.WriteString(lipgloss.NewStyle().Foreground(colorHot).Render("▪"))
		case warnPos:
			sb.WriteString(lipgloss.NewStyle().Foreground(colorNear).Render("▪"))
		default:
			sb.WriteString(lipgloss.NewStyle().Foreground(colorPad).Render(string(gapGlyph)))
		}
	}
	return sb.String()
}

// RenderValue renders a value with threshold coloring using format, or a
// dim placeholder when there is no value.
func RenderValue(v float64, ok bool, format string, st Style) string {
	if !ok {
		return lipgloss.NewStyle().Foreground(colorGap).Render("--")
	}
	style := lipgloss.NewStyle().Foreground(LevelColor(v, st))
	if st.Hot > 0 && v >= st.Hot {
		style = style.Bold(true)
	}
	return style.Render(fmt.Sprintf(format, v))
}

// Swatch renders a short color key.
func Swatch(c colorful.Color) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render("██")
}
