// Package hoststat queries processor and memory utilization from the OS.
package hoststat

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Source reports host-wide utilization. Each call refreshes on demand.
type Source interface {
	// CorePercents returns the utilization of every core, 0-100, measured
	// since the previous call.
	CorePercents() ([]float64, error)
	// Memory returns total and used physical memory in bytes.
	Memory() (total, used uint64, err error)
}

// Gopsutil is the Source backed by gopsutil.
type Gopsutil struct{}

// New returns the OS-backed source.
func New() Gopsutil { return Gopsutil{} }

func (Gopsutil) CorePercents() ([]float64, error) {
	return cpu.Percent(0, true)
}

func (Gopsutil) Memory() (uint64, uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Used, nil
}

// MeanPercent is the arithmetic mean of per-core utilization. ok is false
// when no cores were reported.
func MeanPercent(cores []float64) (float64, bool) {
	if len(cores) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, c := range cores {
		sum += c
	}
	return sum / float64(len(cores)), true
}

// MemPercent is used/total*100 with used clamped to total. ok is false
// when total is zero.
func MemPercent(total, used uint64) (float64, bool) {
	if total == 0 {
		return 0, false
	}
	if used > total {
		used = total
	}
	return float64(used) / float64(total) * 100, true
}
