// Package sensor discovers hardware temperature and clock counters from
// the kernel's hwmon and cpufreq trees, classifies them into a fixed
// taxonomy, and builds the ordered sensor groups shown to the user.
package sensor

import (
	"cmp"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/luki/sia/internal/fault"
)

// Default roots of the monitoring and topology trees.
const (
	DefaultHwmonRoot = "/sys/class/hwmon"
	DefaultCPURoot   = "/sys/devices/system/cpu"
)

// freqFiles are the current-frequency file names tried in order.
var freqFiles = []string{"scaling_cur_freq", "cpuinfo_cur_freq"}

// TempSensor is one tempN_input counter of a hwmon device.
type TempSensor struct {
	RawName    string // device "name" file, e.g. "coretemp"
	RawLabel   string // tempN_label, or RawName when absent
	SourcePath string // resolved path of tempN_input
}

// FreqSensor is the current-frequency counter of one online core.
type FreqSensor struct {
	Core       int
	SourcePath string
}

// Catalog is the immutable result of discovery. A sensor's identity is its
// position in Temps or Freqs; neither list changes after Discover returns.
type Catalog struct {
	temps []TempSensor
	freqs []FreqSensor
}

// NewCatalog builds a catalog from already discovered sensors.
func NewCatalog(temps []TempSensor, freqs []FreqSensor) *Catalog {
	return &Catalog{temps: slices.Clone(temps), freqs: slices.Clone(freqs)}
}

// Temps returns the temperature sensors in directory traversal order.
// The slice must not be modified.
func (c *Catalog) Temps() []TempSensor { return c.temps }

// Freqs returns the frequency sensors sorted by core index.
// The slice must not be modified.
func (c *Catalog) Freqs() []FreqSensor { return c.freqs }

// DiscoverOptions selects the trees to scan.
type DiscoverOptions struct {
	HwmonRoot string
	CPURoot   string
	Logger    *slog.Logger
}

// Discover scans both trees once. Entries that cannot be read are left out
// and reported as DiscoveryGap faults; discovery itself never fails.
func Discover(opts DiscoverOptions) (*Catalog, []error) {
	if opts.HwmonRoot == "" {
		opts.HwmonRoot = DefaultHwmonRoot
	}
	if opts.CPURoot == "" {
		opts.CPURoot = DefaultCPURoot
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var gaps []error
	gap := func(path string, err error) {
		logger.Debug("sensor skipped", "path", path, "error", err)
		gaps = append(gaps, fault.New(fault.DiscoveryGap, path, err))
	}

	c := &Catalog{
		temps: discoverTemps(opts.HwmonRoot, gap),
		freqs: discoverFreqs(opts.CPURoot, gap),
	}
	logger.Info("sensor discovery complete",
		"temperatures", len(c.temps),
		"frequencies", len(c.freqs),
		"skipped", len(gaps),
	)
	return c, gaps
}

func discoverTemps(root string, gap func(string, error)) []TempSensor {
	entries, err := os.ReadDir(root)
	if err != nil {
		gap(root, err)
		return nil
	}

	var sensors []TempSensor
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		name, err := readTrimmed(filepath.Join(dir, "name"))
		if err != nil {
			gap(dir, err)
			continue
		}
		if name == "" {
			gap(dir, errors.New("empty device name"))
			continue
		}

		// hwmon entries are symlinks into /sys/devices; the resolved path
		// carries the parent device names (nvme0, 0000:01:00.0, ...).
		resolved := dir
		if r, err := filepath.EvalSymlinks(dir); err == nil {
			resolved = r
		}

		files, err := os.ReadDir(dir)
		if err != nil {
			gap(dir, err)
			continue
		}
		for _, f := range files {
			fname := f.Name()
			if !strings.HasPrefix(fname, "temp") || !strings.HasSuffix(fname, "_input") {
				continue
			}
			input := filepath.Join(resolved, fname)
			if err := unix.Access(input, unix.R_OK); err != nil {
				gap(input, err)
				continue
			}

			label := name
			labelFile := strings.TrimSuffix(fname, "_input") + "_label"
			if l, err := readTrimmed(filepath.Join(dir, labelFile)); err == nil && l != "" {
				label = l
			}
			sensors = append(sensors, TempSensor{
				RawName:    name,
				RawLabel:   label,
				SourcePath: input,
			})
		}
	}
	return sensors
}

func discoverFreqs(root string, gap func(string, error)) []FreqSensor {
	entries, err := os.ReadDir(root)
	if err != nil {
		gap(root, err)
		return nil
	}

	var sensors []FreqSensor
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		core, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
		if err != nil {
			continue // cpufreq, cpuidle, ...
		}
		dir := filepath.Join(root, name)
		if online, err := readTrimmed(filepath.Join(dir, "online")); err == nil && online == "0" {
			continue
		}

		path := ""
		for _, candidate := range freqFiles {
			p := filepath.Join(dir, "cpufreq", candidate)
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			gap(dir, errors.New("no current frequency file"))
			continue
		}
		sensors = append(sensors, FreqSensor{Core: core, SourcePath: path})
	}

	slices.SortFunc(sensors, func(a, b FreqSensor) int {
		return cmp.Compare(a.Core, b.Core)
	})
	return sensors
}

// ReadTempC reads a temperature counter and returns degrees Celsius.
func ReadTempC(path string) (float64, error) {
	v, err := readFloat(path)
	if err != nil {
		return 0, err
	}
	return NormalizeTemp(v), nil
}

// NormalizeTemp converts a raw hwmon reading to degrees. Values above 1000
// are taken to be millidegrees.
func NormalizeTemp(raw float64) float64 {
	if raw > 1000 {
		return raw / 1000
	}
	return raw
}

// ReadFreqKHz reads a current-frequency counter in kHz.
func ReadFreqKHz(path string) (float64, error) {
	return readFloat(path)
}

func readFloat(path string) (float64, error) {
	s, err := readTrimmed(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

func readTrimmed(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
