// Package config provides configuration loading for sia.
//
// Values come from three layers, each overriding the previous one:
// built-in defaults, an optional YAML file named by --config or the
// SIA_CONFIG environment variable, and command-line flags that were set
// explicitly.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/luki/sia/internal/accel"
	"github.com/luki/sia/internal/sensor"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "SIA_CONFIG"

// Window length bounds in seconds.
const (
	MinWindowSeconds = 30
	MaxWindowSeconds = 900
)

// Legend placements.
const (
	LegendFooter = "footer"
	LegendSide   = "side"
)

// Config is the process configuration.
type Config struct {
	// SamplePeriod is the interval between ticks. Default: 1s
	SamplePeriod time.Duration `yaml:"sample_period"`

	// HistorySize is the number of samples retained per series. Default: 300
	HistorySize int `yaml:"history_size"`

	// RefreshInterval is how often the monitor redraws. It is independent
	// of sampling. Default: 250ms
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// HwmonRoot is the hardware-monitoring tree to scan.
	HwmonRoot string `yaml:"hwmon_root"`

	// CPURoot is the CPU topology tree to scan.
	CPURoot string `yaml:"cpu_root"`

	// Accelerator selects the backend: auto, nvml, smi or none. Default: auto
	Accelerator string `yaml:"accelerator"`

	// WindowSeconds is the initial chart window length. Default: 120
	WindowSeconds int `yaml:"window_seconds"`

	// Legend is footer or side. Default: footer
	Legend string `yaml:"legend"`

	// LogFile receives JSON logs from the monitor. Empty discards them.
	LogFile string `yaml:"log_file"`

	// LogLevel is debug, info, warn or error. Default: info
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SamplePeriod:    time.Second,
		HistorySize:     300,
		RefreshInterval: 250 * time.Millisecond,
		HwmonRoot:       sensor.DefaultHwmonRoot,
		CPURoot:         sensor.DefaultCPURoot,
		Accelerator:     string(accel.ModeAuto),
		WindowSeconds:   120,
		Legend:          LegendFooter,
		LogLevel:        "info",
	}
}

// LoadFile overlays the YAML file at path on the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// RegisterFlags adds the config flags to fs with the built-in defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a YAML config file (or set "+EnvConfig+")")
	fs.Duration("sample-period", d.SamplePeriod, "interval between samples")
	fs.Int("history-size", d.HistorySize, "samples retained per series")
	fs.Duration("refresh-interval", d.RefreshInterval, "monitor redraw interval")
	fs.String("hwmon-root", d.HwmonRoot, "hardware monitoring tree")
	fs.String("cpu-root", d.CPURoot, "CPU topology tree")
	fs.String("accelerator", d.Accelerator, "accelerator backend: auto, nvml, smi or none")
	fs.Int("window", d.WindowSeconds, "chart window in seconds")
	fs.String("legend", d.Legend, "legend placement: footer or side")
	fs.String("log-file", d.LogFile, "write logs to this file")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
}

// FromFlags resolves the configuration for a parsed flag set: defaults,
// then the config file, then flags the user set explicitly.
func FromFlags(fs *pflag.FlagSet) (*Config, error) {
	path, err := fs.GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	var errs []error
	fs.Visit(func(f *pflag.Flag) {
		if err := cfg.applyFlag(fs, f.Name); err != nil {
			errs = append(errs, fmt.Errorf("flag --%s: %w", f.Name, err))
		}
	})
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFlag(fs *pflag.FlagSet, name string) error {
	var err error
	switch name {
	case "sample-period":
		c.SamplePeriod, err = fs.GetDuration(name)
	case "history-size":
		c.HistorySize, err = fs.GetInt(name)
	case "refresh-interval":
		c.RefreshInterval, err = fs.GetDuration(name)
	case "hwmon-root":
		c.HwmonRoot, err = fs.GetString(name)
	case "cpu-root":
		c.CPURoot, err = fs.GetString(name)
	case "accelerator":
		c.Accelerator, err = fs.GetString(name)
	case "window":
		c.WindowSeconds, err = fs.GetInt(name)
	case "legend":
		c.Legend, err = fs.GetString(name)
	case "log-file":
		c.LogFile, err = fs.GetString(name)
	case "log-level":
		c.LogLevel, err = fs.GetString(name)
	}
	return err
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.SamplePeriod <= 0 {
		errs = append(errs, fmt.Errorf("sample_period must be positive, got %s", c.SamplePeriod))
	}
	if c.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("history_size must be positive, got %d", c.HistorySize))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval))
	}
	if c.HwmonRoot == "" {
		errs = append(errs, errors.New("hwmon_root is required"))
	}
	if c.CPURoot == "" {
		errs = append(errs, errors.New("cpu_root is required"))
	}
	if _, err := accel.ParseMode(c.Accelerator); err != nil {
		errs = append(errs, err)
	}
	if c.WindowSeconds < MinWindowSeconds || c.WindowSeconds > MaxWindowSeconds {
		errs = append(errs, fmt.Errorf("window_seconds must be within %d..%d, got %d",
			MinWindowSeconds, MaxWindowSeconds, c.WindowSeconds))
	}
	if c.Legend != LegendFooter && c.Legend != LegendSide {
		errs = append(errs, fmt.Errorf("invalid legend placement: %s", c.Legend))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}
	return l, nil
}

// AcceleratorMode returns the validated accelerator mode.
func (c *Config) AcceleratorMode() accel.Mode {
	m, err := accel.ParseMode(c.Accelerator)
	if err != nil {
		return accel.ModeAuto
	}
	return m
}
