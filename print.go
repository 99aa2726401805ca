package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/sia/internal/chart"
	"github.com/luki/sia/internal/engine"
	"github.com/luki/sia/internal/fault"
	"github.com/luki/sia/internal/history"
	"github.com/luki/sia/internal/view"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Width(28)
)

// printGroups lists the sensor groups with their thresholds and items. A
// star marks the item shown by default.
func printGroups(w io.Writer, eng *engine.Engine) error {
	name, present := eng.Accelerator()
	fmt.Fprintln(w, headerStyle.Render("Accelerator"))
	if present {
		fmt.Fprintf(w, "  %s\n", name)
	} else {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("none"))
	}

	for _, g := range eng.Groups() {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n",
			headerStyle.Render(g.Display),
			dimStyle.Render(fmt.Sprintf("[%s] warn %.0f°C hot %.0f°C", g.Key, g.Warn, g.Hot)))
		for _, it := range g.Items {
			mark := " "
			if it.DefaultVisible {
				mark = "*"
			}
			fmt.Fprintf(w, "  %s %s %s %s\n", mark, chart.Swatch(it.Color),
				labelStyle.Render(it.Name), dimStyle.Render(fmt.Sprintf("series %d", it.SeriesIndex)))
		}
	}

	freqs := eng.Catalog().Freqs()
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Frequencies (%d cores)", len(freqs))))
	for _, f := range freqs {
		fmt.Fprintf(w, "    %s %s\n", labelStyle.Render(fmt.Sprintf("CPU Core %d", f.Core)), dimStyle.Render(f.SourcePath))
	}
	return nil
}

// printSample prints the latest value of every channel after a headless
// run.
func printSample(w io.Writer, eng *engine.Engine) error {
	stats := eng.Stats()
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d ticks, t=%s", stats.Ticks, chart.FormatClock(stats.VirtualSeconds))))
	for _, kind := range []fault.Kind{fault.DiscoveryGap, fault.SampleMiss, fault.IntegrationUnavailable} {
		if n := stats.Misses[kind]; n > 0 {
			fmt.Fprintf(w, "  %s\n", dimStyle.Render(fmt.Sprintf("%s: %d", kind, n)))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Utilization"))
	for _, ch := range []history.Channel{history.CPUUtil, history.MemUtil, history.GPUUtil, history.GPUMemUtil} {
		printLast(w, ch.String(), eng.Channel(ch), 1, "%.1f%%")
	}

	for _, g := range eng.Groups() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(g.Display))
		for _, it := range g.Items {
			printLast(w, it.Name, eng.Series(it.SeriesIndex), 1, "%.1f°C")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Frequencies"))
	for i, f := range eng.Catalog().Freqs() {
		printLast(w, fmt.Sprintf("CPU Core %d", f.Core), eng.Store().Freq(i), view.KHzPerGHz, "%.2f GHz")
	}
	for _, ch := range view.GPUClocks {
		printLast(w, ch.String(), eng.Channel(ch), 1, "%.0f MHz")
	}
	return nil
}

// trailLen is how many of the newest samples follow each latest value.
const trailLen = 5

// printLast prints a series' latest value followed by its newest samples,
// oldest first, with "--" for missing readings.
func printLast(w io.Writer, label string, s *history.Series, divisor float64, format string) {
	value := dimStyle.Render("--")
	var trail []string
	if s != nil {
		if v, ok := s.LastValue(); ok {
			value = fmt.Sprintf(format, v/divisor)
		}
		for _, p := range s.LastNPoints(trailLen) {
			if math.IsNaN(p.Value) {
				trail = append(trail, "--")
				continue
			}
			trail = append(trail, strconv.FormatFloat(p.Value/divisor, 'f', 1, 64))
		}
	}
	line := "  " + labelStyle.Render(label) + " " + value
	if len(trail) > 0 {
		line += "  " + dimStyle.Render("["+strings.Join(trail, " ")+"]")
	}
	fmt.Fprintln(w, line)
}
