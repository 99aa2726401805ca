package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luki/sia/internal/accel"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sia.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parse(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("sia", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, time.Second, cfg.SamplePeriod)
	assert.Equal(t, 300, cfg.HistorySize)
	assert.Equal(t, 250*time.Millisecond, cfg.RefreshInterval)
	assert.Equal(t, "/sys/class/hwmon", cfg.HwmonRoot)
	assert.Equal(t, "/sys/devices/system/cpu", cfg.CPURoot)
	assert.Equal(t, 120, cfg.WindowSeconds)
	assert.Equal(t, LegendFooter, cfg.Legend)
	assert.Equal(t, accel.ModeAuto, cfg.AcceleratorMode())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
sample_period: 500ms
history_size: 600
accelerator: none
window_seconds: 300
legend: side
log_level: debug
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.SamplePeriod)
	assert.Equal(t, 600, cfg.HistorySize)
	assert.Equal(t, accel.ModeNone, cfg.AcceleratorMode())
	assert.Equal(t, 300, cfg.WindowSeconds)
	assert.Equal(t, LegendSide, cfg.Legend)
	// untouched keys keep their defaults
	assert.Equal(t, 250*time.Millisecond, cfg.RefreshInterval)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeConfig(t, "sample_period: [1, 2\n"))
	assert.Error(t, err)
}

func TestFromFlagsPrecedence(t *testing.T) {
	path := writeConfig(t, "window_seconds: 300\nlegend: side\n")

	cfg, err := FromFlags(parse(t, "--config", path, "--window", "60"))
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.WindowSeconds, "flag beats file")
	assert.Equal(t, LegendSide, cfg.Legend, "file beats default")
	assert.Equal(t, time.Second, cfg.SamplePeriod)
}

func TestFromFlagsEnvironment(t *testing.T) {
	t.Setenv(EnvConfig, writeConfig(t, "accelerator: smi\n"))

	cfg, err := FromFlags(parse(t))
	require.NoError(t, err)
	assert.Equal(t, accel.ModeSMI, cfg.AcceleratorMode())
}

func TestFromFlagsRejectsInvalid(t *testing.T) {
	t.Setenv(EnvConfig, "")
	_, err := FromFlags(parse(t, "--window", "10"))
	assert.ErrorContains(t, err, "window_seconds")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"period", func(c *Config) { c.SamplePeriod = 0 }, "sample_period"},
		{"history", func(c *Config) { c.HistorySize = -1 }, "history_size"},
		{"refresh", func(c *Config) { c.RefreshInterval = 0 }, "refresh_interval"},
		{"hwmon", func(c *Config) { c.HwmonRoot = "" }, "hwmon_root"},
		{"cpu", func(c *Config) { c.CPURoot = "" }, "cpu_root"},
		{"accelerator", func(c *Config) { c.Accelerator = "rocm" }, "accelerator mode"},
		{"window low", func(c *Config) { c.WindowSeconds = 29 }, "window_seconds"},
		{"window high", func(c *Config) { c.WindowSeconds = 901 }, "window_seconds"},
		{"legend", func(c *Config) { c.Legend = "top" }, "legend"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
