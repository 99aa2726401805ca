// Package monitor implements the live telemetry TUI using BubbleTea. It
// reads the engine on its own refresh tick; sampling runs independently.
package monitor

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/sia/internal/chart"
	"github.com/luki/sia/internal/engine"
	"github.com/luki/sia/internal/history"
	"github.com/luki/sia/internal/sensor"
	"github.com/luki/sia/internal/view"
)

// Source is the read-only engine surface the monitor draws from.
type Source interface {
	Now() float64
	Stats() engine.Stats
	Groups() []sensor.Group
	Catalog() *sensor.Catalog
	Store() *history.Store
	Channel(history.Channel) *history.Series
	Accelerator() (string, bool)
}

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the live monitor.
type Model struct {
	src       Source
	view      *view.State
	groups    []sensor.Group
	refresh   time.Duration
	width     int
	height    int
	scroll    int
	focus     int
	item      int // cursor within the focused group
	core      int // cursor over per-core frequencies
	startTime time.Time
	paused    bool
	frozenAt  float64
}

// New creates the monitor model. groups are captured once; they do not
// change after engine initialization.
func New(src Source, state *view.State, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = 250 * time.Millisecond
	}
	return Model{
		src:       src,
		view:      state,
		groups:    src.Groups(),
		refresh:   refresh,
		startTime: time.Now(),
	}
}

// ── Commands ─────────────────────────────────────────────────────────

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		case "home":
			m.scroll = 0
		case " ", "p":
			m.paused = !m.paused
			m.frozenAt = m.src.Now()
		case "+", "=":
			m.view.Widen()
		case "-", "_":
			m.view.Narrow()
		case "l":
			m.view.ToggleLegend()
		case "tab", "g":
			if len(m.groups) > 0 {
				m.focus = (m.focus + 1) % len(m.groups)
				m.item = 0
			}
		case "shift+tab", "G":
			if len(m.groups) > 0 {
				m.focus = (m.focus + len(m.groups) - 1) % len(m.groups)
				m.item = 0
			}
		case "]":
			if g, ok := m.focused(); ok && len(g.Items) > 0 {
				m.item = (m.item + 1) % len(g.Items)
			}
		case "[":
			if g, ok := m.focused(); ok && len(g.Items) > 0 {
				m.item = (m.item + len(g.Items) - 1) % len(g.Items)
			}
		case "x":
			if g, ok := m.focused(); ok && m.item < len(g.Items) {
				m.view.ToggleItem(g.Items[m.item].SeriesIndex)
			}
		case ">", ".":
			if n := len(m.src.Catalog().Freqs()); n > 0 {
				m.core = (m.core + 1) % n
			}
		case "<", ",":
			if n := len(m.src.Catalog().Freqs()); n > 0 {
				m.core = (m.core + n - 1) % n
			}
		case "c":
			m.view.ToggleFreq(m.core)
		case "v":
			if g, ok := m.focused(); ok {
				m.view.ToggleGroup(g.Key)
			}
		case "e":
			if g, ok := m.focused(); ok {
				m.view.SetGroupItems(g, len(m.view.VisibleItems(g)) < len(g.Items))
			}
		case "u":
			m.view.TogglePanel(view.PanelUtil)
		case "t":
			m.view.TogglePanel(view.PanelTemps)
		case "f":
			m.view.TogglePanel(view.PanelFreqs)
		case "a":
			m.view.SetAllFreqs(!m.allFreqsVisible())
		case "1", "2", "3", "4":
			m.view.ToggleClock(view.GPUClocks[msg.String()[0]-'1'])
		case "m":
			m.view.ToggleMemEffective()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, m.tickCmd()
	}

	return m, nil
}

func (m Model) focused() (sensor.Group, bool) {
	if m.focus < 0 || m.focus >= len(m.groups) {
		return sensor.Group{}, false
	}
	return m.groups[m.focus], true
}

func (m Model) allFreqsVisible() bool {
	for i := range m.src.Catalog().Freqs() {
		if !m.view.FreqVisible(i) {
			return false
		}
	}
	return true
}

func (m Model) now() float64 {
	if m.paused {
		return m.frozenAt
	}
	return m.src.Now()
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorChipName = lipgloss.Color("147")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorWarn     = lipgloss.Color("220")
	colorHigh     = lipgloss.Color("208")
	colorCrit     = lipgloss.Color("196")
	colorPaused   = lipgloss.Color("196")
	colorFocus    = lipgloss.Color("51")
)

const (
	labelW = 24
	valueW = 10
	sideW  = 32
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := max(m.width-2, 40)
	now := m.now()
	xMin, xMax := m.view.XRange(now)

	panelWidth := contentWidth
	side := m.view.Legend() == view.LegendSide
	if side {
		panelWidth = max(contentWidth-sideW, 40)
	}

	var panels []string
	if m.view.PanelVisible(view.PanelUtil) {
		panels = append(panels, m.renderPanel("Utilization (%)", m.utilRows(panelWidth, xMin, xMax), panelWidth))
	}
	if m.view.PanelVisible(view.PanelTemps) {
		panels = append(panels, m.renderPanel("Temperatures (°C)", m.tempRows(panelWidth, xMin, xMax), panelWidth))
	}
	if m.view.PanelVisible(view.PanelFreqs) {
		panels = append(panels, m.renderPanel("Frequencies (GHz)", m.freqRows(panelWidth, xMin, xMax), panelWidth))
	}
	if len(panels) == 0 {
		panels = append(panels, lipgloss.NewStyle().
			Foreground(colorDim).
			Width(panelWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("All panels hidden (u/t/f to show)"))
	}

	body := lipgloss.JoinVertical(lipgloss.Left, panels...)
	if side {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.renderSideLegend())
	}

	sections := []string{m.renderTitleBar(contentWidth, now), body}
	if !side {
		sections = append(sections, m.renderFooterLegend(contentWidth))
	}
	sections = append(sections, m.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	lines := strings.Split(content, "\n")
	visibleLines := max(m.height, 5)
	maxScroll := max(len(lines)-visibleLines, 0)
	if m.scroll > maxScroll {
		m.scroll = maxScroll
	}

	start := m.scroll
	end := min(start+visibleLines, len(lines))
	return strings.Join(lines[start:end], "\n")
}

func (m Model) renderTitleBar(width int, now float64) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("SIA")

	dim := lipgloss.NewStyle().Foreground(colorDim)
	stats := m.src.Stats()

	statusParts := []string{
		dim.Render("up " + fmtDuration(time.Since(m.startTime))),
		dim.Render("t " + chart.FormatClock(now)),
		dim.Render(fmt.Sprintf("%d ticks", stats.Ticks)),
		dim.Render("CPU " + lastPercent(m.src.Channel(history.CPUUtil))),
		dim.Render("RAM " + lastPercent(m.src.Channel(history.MemUtil))),
	}
	if name, ok := m.src.Accelerator(); ok {
		statusParts = append(statusParts, dim.Render(name))
	}
	if m.paused {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorPaused).
			Bold(true).
			Render("PAUSED"))
	}

	sep := dim.Render(" │ ")
	right := strings.Join(statusParts, sep)

	gap := max(width-lipgloss.Width(logo)-lipgloss.Width(right)-4, 1)
	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func lastPercent(s *history.Series) string {
	if s == nil {
		return "--"
	}
	v, ok := s.LastValue()
	if !ok {
		return "--"
	}
	return fmt.Sprintf("%.0f%%", v)
}

// chartWidth leaves room for the label, value, frame, window stats and
// panel border, plus extra for panel-specific columns.
func chartWidth(panelWidth, extra int) int {
	return min(max(panelWidth-labelW-valueW-30-extra, 15), 160)
}

func (m Model) renderPanel(title string, rows []string, width int) string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(colorChipName).Render(title)
	content := lipgloss.JoinVertical(lipgloss.Left, append([]string{heading}, rows...)...)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(content)
}

// row renders one line: label, value, framed sparkline and window stats.
func row(t view.Trace, st chart.Style, format string, cw int, xMin, xMax, lo, hi float64) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	label := lipgloss.NewStyle().
		Foreground(colorLabel).
		Width(labelW).
		Render(truncate(t.Label, labelW))

	v, ok := t.Last()
	value := lipgloss.NewStyle().
		Width(valueW).
		Align(lipgloss.Right).
		Render(chart.RenderValue(v, ok, format, st))

	pts := t.Scaled(xMin)
	spark := frameL + chart.RenderSparkline(pts, cw, xMin, xMax, lo, hi, st) + frameR

	var stats string
	div := t.Divisor
	if div == 0 {
		div = 1
	}
	if a, b, ok := t.Series.MinMaxY(xMin, xMax); ok {
		stats = dimS.Render(" lo") + valS.Render(fmt.Sprintf(format, a/div)) +
			dimS.Render(" pk") + valS.Render(fmt.Sprintf(format, b/div))
	}
	return label + " " + value + " " + spark + stats
}

func timelineRow(traces []view.Trace, cw int, xMin, xMax float64) (string, bool) {
	for _, t := range traces {
		pts := t.Scaled(xMin)
		if len(pts) == 0 {
			continue
		}
		line := chart.RenderTimeline(pts, cw, xMin, xMax)
		if strings.TrimSpace(line) == "" {
			return "", false
		}
		return strings.Repeat(" ", labelW+valueW+3) + line, true
	}
	return "", false
}

func (m Model) utilTraces() []view.Trace {
	store := m.src.Store()
	specs := []struct {
		ch  history.Channel
		key string
	}{
		{history.CPUUtil, "cpu"},
		{history.MemUtil, "ram"},
		{history.GPUUtil, "gpu"},
		{history.GPUMemUtil, "vram"},
	}
	var out []view.Trace
	for _, s := range specs {
		if (s.ch == history.GPUUtil || s.ch == history.GPUMemUtil) && !m.accelPresent() {
			continue
		}
		out = append(out, view.Trace{
			Label:  s.ch.String(),
			Series: store.Channel(s.ch),
			Color:  sensor.BaseColor(s.key),
		})
	}
	return out
}

func (m Model) accelPresent() bool {
	_, ok := m.src.Accelerator()
	return ok
}

func (m Model) utilRows(width int, xMin, xMax float64) []string {
	cw := chartWidth(width, 0)
	traces := m.utilTraces()
	var rows []string
	for _, t := range traces {
		rows = append(rows, row(t, chart.Style{Color: t.Color}, "%5.1f%%", cw, xMin, xMax, 0, 100))
	}
	if tl, ok := timelineRow(traces, cw, xMin, xMax); ok {
		rows = append(rows, tl)
	}
	return rows
}

func (m Model) tempRows(width int, xMin, xMax float64) []string {
	cw := chartWidth(width, 15)
	store := m.src.Store()
	traces := m.view.TempTraces(m.groups, store)
	lo, hi := view.TempRange(traces, xMin, xMax)

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	var rows []string
	for i, g := range m.groups {
		marker := "  "
		if i == m.focus {
			marker = lipgloss.NewStyle().Foreground(colorFocus).Render("▸ ")
		}
		name := lipgloss.NewStyle().Bold(true).Foreground(colorChipName).Render(g.Display)
		info := dimS.Render(fmt.Sprintf("  %d/%d shown", len(m.view.VisibleItems(g)), len(g.Items))) +
			dimS.Render(" W") + lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf("%.0f", g.Warn)) +
			dimS.Render(" H") + lipgloss.NewStyle().Foreground(colorCrit).Render(fmt.Sprintf("%.0f", g.Hot))
		if !m.view.GroupVisible(g.Key) {
			info += dimS.Render("  hidden")
		}
		rows = append(rows, marker+name+info)
		if i == m.focus {
			labels := make([]string, len(g.Items))
			on := make([]bool, len(g.Items))
			for j, it := range g.Items {
				labels[j] = it.Name
				on[j] = m.view.ItemVisible(it.SeriesIndex)
			}
			rows = append(rows, "    "+checklist(labels, on, m.item))
		}

		for _, it := range m.view.VisibleItems(g) {
			series := store.Get(it.SeriesIndex)
			if series == nil {
				continue
			}
			t := view.Trace{Label: it.Name, Series: series, Color: it.Color, Warn: g.Warn, Hot: g.Hot}
			st := chart.Style{Color: it.Color, Warn: g.Warn, Hot: g.Hot}
			r := row(t, st, "%5.1f°C", cw, xMin, xMax, lo, hi)
			v, ok := t.Last()
			if !ok {
				v = math.NaN()
			}
			r += " " + chart.RenderThresholdScale(v, lo, hi, st, 12)
			rows = append(rows, "  "+r)
		}
	}
	if tl, ok := timelineRow(traces, cw, xMin, xMax); ok {
		rows = append(rows, "  "+tl)
	}
	return rows
}

func (m Model) freqRows(width int, xMin, xMax float64) []string {
	cw := chartWidth(width, 0)
	traces := m.view.FreqTraces(m.src.Catalog(), m.src.Store(), m.accelPresent())
	lo, hi := view.FreqRange(traces, xMin, xMax)

	var rows []string
	if freqs := m.src.Catalog().Freqs(); len(freqs) > 0 {
		labels := make([]string, len(freqs))
		on := make([]bool, len(freqs))
		for i, f := range freqs {
			labels[i] = fmt.Sprintf("C%d", f.Core)
			on[i] = m.view.FreqVisible(i)
		}
		rows = append(rows, checklist(labels, on, m.core))
	}
	for _, t := range traces {
		rows = append(rows, row(t, chart.Style{Color: t.Color}, "%5.2f", cw, xMin, xMax, lo, hi))
	}
	if len(traces) == 0 {
		rows = append(rows, lipgloss.NewStyle().Foreground(colorDim).Render("no frequency sensors shown (a: all cores)"))
	}
	if tl, ok := timelineRow(traces, cw, xMin, xMax); ok {
		rows = append(rows, tl)
	}
	return rows
}

// legendEntries renders one entry per drawn temperature item, with a badge
// when its latest reading crosses a threshold.
func (m Model) legendEntries() []string {
	var entries []string
	for _, t := range m.view.TempTraces(m.groups, m.src.Store()) {
		entry := chart.Swatch(t.Color) + " " + lipgloss.NewStyle().Foreground(colorLabel).Render(t.Label)
		switch view.BadgeOf(t) {
		case view.BadgeHot:
			entry += " " + lipgloss.NewStyle().Foreground(colorCrit).Bold(true).Render("hot")
		case view.BadgeWarm:
			entry += " " + lipgloss.NewStyle().Foreground(colorHigh).Render("warm")
		}
		entries = append(entries, entry)
	}
	return entries
}

func (m Model) renderFooterLegend(width int) string {
	entries := m.legendEntries()
	if len(entries) == 0 {
		return ""
	}
	var lines []string
	var line string
	for _, e := range entries {
		if line != "" && lipgloss.Width(line)+lipgloss.Width(e)+3 > width-2 {
			lines = append(lines, line)
			line = ""
		}
		if line != "" {
			line += "   "
		}
		line += e
	}
	lines = append(lines, line)
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func (m Model) renderSideLegend() string {
	entries := m.legendEntries()
	if len(entries) == 0 {
		entries = []string{lipgloss.NewStyle().Foreground(colorDim).Render("no items shown")}
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(sideW).
		Render(lipgloss.JoinVertical(lipgloss.Left, entries...))
}

func (m Model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	labelS := lipgloss.NewStyle().Foreground(colorLabel)
	tickS := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render("│")

	window := dimS.Render(fmt.Sprintf("window %ds ", m.view.WindowSeconds())) + tickS + dimS.Render(" 1min")

	var keys []string
	for _, k := range [][2]string{
		{"q", "quit"},
		{"p", "pause"},
		{"+/-", "window"},
		{"g", "group"},
		{"v", "show"},
		{"e", "expand"},
		{"[/] x", "item"},
		{"</> c", "core"},
		{"u/t/f", "panels"},
		{"1-4", "clocks"},
		{"m", "eff. mem"},
		{"l", "legend"},
	} {
		keys = append(keys, dimS.Render(k[0])+labelS.Render(":"+k[1]))
	}
	hint := strings.Join(keys, "  ")

	gap := max(width-lipgloss.Width(window)-lipgloss.Width(hint)-4, 1)
	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(window + strings.Repeat(" ", gap) + hint)
}

// checklist renders one line of toggles, highlighting the cursor entry.
func checklist(labels []string, on []bool, cursor int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	curS := lipgloss.NewStyle().Foreground(colorFocus).Bold(true)
	parts := make([]string, len(labels))
	for i, l := range labels {
		box := "[ ]"
		if on[i] {
			box = "[x]"
		}
		entry := box + " " + l
		if i == cursor {
			parts[i] = curS.Render(entry)
		} else {
			parts[i] = dimS.Render(entry)
		}
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	if w <= 3 {
		return string(r[:w])
	}
	return string(r[:w-1]) + "…"
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
