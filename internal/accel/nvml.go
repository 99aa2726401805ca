package accel

import (
	"errors"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/luki/sia/internal/hoststat"
)

// nvmlDevice is the subset of nvml.Device the backend reads.
type nvmlDevice interface {
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetMemoryInfo() (nvml.Memory, nvml.Return)
	GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return)
	GetClockInfo(nvml.ClockType) (uint32, nvml.Return)
}

// NVML reads the first NVIDIA device through the management library.
type NVML struct {
	device   nvmlDevice
	name     string
	shutdown func() nvml.Return
}

func openNVML() (Backend, error) {
	if ret := nvml.Init(); !errors.Is(ret, nvml.SUCCESS) {
		return nil, fmt.Errorf("failed to initialize NVML: %s", nvml.ErrorString(ret))
	}

	count, ret := nvml.DeviceGetCount()
	if !errors.Is(ret, nvml.SUCCESS) || count == 0 {
		nvml.Shutdown()
		return nil, fmt.Errorf("no NVIDIA devices found")
	}
	device, ret := nvml.DeviceGetHandleByIndex(0)
	if !errors.Is(ret, nvml.SUCCESS) {
		nvml.Shutdown()
		return nil, fmt.Errorf("failed to open device 0: %s", nvml.ErrorString(ret))
	}

	name := "NVIDIA GPU"
	if n, ret := device.GetName(); errors.Is(ret, nvml.SUCCESS) {
		name = n
	}
	return &NVML{device: device, name: name, shutdown: nvml.Shutdown}, nil
}

func (n *NVML) Name() string  { return "nvml (" + n.name + ")" }
func (n *NVML) Present() bool { return true }

// FirstDeviceMetrics reads utilization, memory use and die temperature.
func (n *NVML) FirstDeviceMetrics() (Metrics, bool) {
	util, ret := n.device.GetUtilizationRates()
	if !errors.Is(ret, nvml.SUCCESS) {
		return Metrics{}, false
	}
	mem, ret := n.device.GetMemoryInfo()
	if !errors.Is(ret, nvml.SUCCESS) {
		return Metrics{}, false
	}
	temp, ret := n.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !errors.Is(ret, nvml.SUCCESS) {
		return Metrics{}, false
	}
	memPct, _ := hoststat.MemPercent(mem.Total, mem.Used)
	return Metrics{
		UtilPercent: float64(util.Gpu),
		MemPercent:  memPct,
		TempC:       float64(temp),
	}, true
}

// ClockRatesMHz reads the four clock domains. Graphics and memory are
// required; SM and video fall back to the graphics clock.
func (n *NVML) ClockRatesMHz() (Clocks, bool) {
	g, ret := n.device.GetClockInfo(nvml.CLOCK_GRAPHICS)
	if !errors.Is(ret, nvml.SUCCESS) {
		return Clocks{}, false
	}
	m, ret := n.device.GetClockInfo(nvml.CLOCK_MEM)
	if !errors.Is(ret, nvml.SUCCESS) {
		return Clocks{}, false
	}
	c := Clocks{Graphics: float64(g), Streaming: float64(g), Memory: float64(m), Video: float64(g)}
	if sm, ret := n.device.GetClockInfo(nvml.CLOCK_SM); errors.Is(ret, nvml.SUCCESS) {
		c.Streaming = float64(sm)
	}
	if v, ret := n.device.GetClockInfo(nvml.CLOCK_VIDEO); errors.Is(ret, nvml.SUCCESS) {
		c.Video = float64(v)
	}
	return c, true
}

// Close releases NVML.
func (n *NVML) Close() error {
	if n.shutdown == nil {
		return nil
	}
	ret := n.shutdown()
	n.shutdown = nil
	if !errors.Is(ret, nvml.SUCCESS) {
		return fmt.Errorf("nvml shutdown: %s", nvml.ErrorString(ret))
	}
	return nil
}
