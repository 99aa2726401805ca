// Package accel is the optional accelerator (GPU) integration. A Backend
// reports utilization, memory, temperature and clock rates of the first
// device; Probe picks an implementation at startup.
package accel

import (
	"fmt"
	"log/slog"
)

// Metrics is the per-tick device reading.
type Metrics struct {
	UtilPercent float64
	MemPercent  float64
	TempC       float64
}

// Clocks are device clock rates in MHz.
type Clocks struct {
	Graphics  float64
	Streaming float64
	Memory    float64
	Video     float64
}

// Backend is the accelerator capability. Both queries report ok=false on
// failure; they never return errors to the caller.
type Backend interface {
	Name() string
	// Present reports whether a device is behind this backend.
	Present() bool
	FirstDeviceMetrics() (Metrics, bool)
	ClockRatesMHz() (Clocks, bool)
	Close() error
}

// Mode selects how Probe chooses a backend.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeNVML Mode = "nvml"
	ModeSMI  Mode = "smi"
	ModeNone Mode = "none"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeNVML, ModeSMI, ModeNone:
		return m, nil
	}
	return "", fmt.Errorf("unknown accelerator mode %q (want auto, nvml, smi or none)", s)
}

// Probe returns the backend for mode. In auto mode NVML is tried first,
// then nvidia-smi. When nothing is usable the absent stub is returned.
func Probe(mode Mode, logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var candidates []func() (Backend, error)
	switch mode {
	case ModeNone:
		logger.Info("accelerator integration disabled")
		return Absent{}
	case ModeNVML:
		candidates = append(candidates, openNVML)
	case ModeSMI:
		candidates = append(candidates, openSMI)
	default:
		candidates = append(candidates, openNVML, openSMI)
	}

	for _, open := range candidates {
		b, err := open()
		if err != nil {
			logger.Info("accelerator backend unavailable", "error", err)
			continue
		}
		logger.Info("accelerator backend selected", "backend", b.Name())
		return b
	}
	if mode != ModeAuto {
		logger.Warn("requested accelerator backend unavailable, continuing without", "mode", string(mode))
	}
	return Absent{}
}

// Absent is the backend used when no accelerator is configured or found.
type Absent struct{}

func (Absent) Name() string                        { return "none" }
func (Absent) Present() bool                       { return false }
func (Absent) FirstDeviceMetrics() (Metrics, bool) { return Metrics{}, false }
func (Absent) ClockRatesMHz() (Clocks, bool)       { return Clocks{}, false }
func (Absent) Close() error                        { return nil }

