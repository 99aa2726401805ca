package accel

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/luki/sia/internal/hoststat"
)

// runner executes a command and returns its stdout.
type runner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// SMI reads the first NVIDIA device by querying the nvidia-smi CLI. It is
// the fallback when the management library cannot be loaded.
type SMI struct {
	run  runner
	name string
}

func openSMI() (Backend, error) {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil || path == "" {
		return nil, fmt.Errorf("nvidia-smi not found: %w", err)
	}
	return newSMI(execRunner)
}

func newSMI(run runner) (*SMI, error) {
	fields, err := querySMI(run, "name")
	if err != nil {
		return nil, err
	}
	return &SMI{run: run, name: fields[0]}, nil
}

func (s *SMI) Name() string  { return "nvidia-smi (" + s.name + ")" }
func (s *SMI) Present() bool { return true }

// FirstDeviceMetrics queries utilization, memory and temperature.
func (s *SMI) FirstDeviceMetrics() (Metrics, bool) {
	fields, err := querySMI(s.run, "utilization.gpu", "memory.used", "memory.total", "temperature.gpu")
	if err != nil {
		return Metrics{}, false
	}
	vals, ok := parseFloats(fields)
	if !ok {
		return Metrics{}, false
	}
	// memory.used and memory.total are whole MiB
	memPct, _ := hoststat.MemPercent(uint64(vals[2]), uint64(vals[1]))
	return Metrics{UtilPercent: vals[0], MemPercent: memPct, TempC: vals[3]}, true
}

// ClockRatesMHz queries the four clock domains. SM and video fall back to
// the graphics clock when reported as unavailable.
func (s *SMI) ClockRatesMHz() (Clocks, bool) {
	fields, err := querySMI(s.run, "clocks.gr", "clocks.sm", "clocks.mem", "clocks.video")
	if err != nil {
		return Clocks{}, false
	}
	g, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Clocks{}, false
	}
	m, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Clocks{}, false
	}
	c := Clocks{Graphics: g, Streaming: g, Memory: m, Video: g}
	if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
		c.Streaming = v
	}
	if v, err := strconv.ParseFloat(fields[3], 64); err == nil {
		c.Video = v
	}
	return c, true
}

func (s *SMI) Close() error { return nil }

// querySMI runs one --query-gpu for device 0 and returns exactly one field
// per requested property.
func querySMI(run runner, props ...string) ([]string, error) {
	out, err := run("nvidia-smi",
		"--id=0",
		"--query-gpu="+strings.Join(props, ","),
		"--format=csv,noheader,nounits",
	)
	if err != nil {
		return nil, err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if line == "" {
		return nil, errors.New("empty nvidia-smi output")
	}
	parts := strings.Split(line, ",")
	if len(parts) != len(props) {
		return nil, fmt.Errorf("nvidia-smi returned %d fields, want %d", len(parts), len(props))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func parseFloats(fields []string) ([]float64, bool) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
