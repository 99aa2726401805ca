package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/luki/sia/internal/fault"
	"github.com/luki/sia/internal/history"
	"github.com/luki/sia/internal/hoststat"
	"github.com/luki/sia/internal/sensor"
)

// Tick advances virtual time by one period and appends at most one sample to
// every channel. Failed reads are counted and skipped; the channel keeps its
// previous sample. Accelerator channels get NaN when the backend is absent
// or a call fails.
func (e *Engine) Tick() error {
	if e.State() != Sampling {
		return ErrNotInitialized
	}
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	e.ticks++
	now := e.virtualSeconds()

	e.sampleHost(now)
	e.sampleFreqs(now)
	e.sampleTemps(now)
	e.sampleAccel(now)
	return nil
}

// Run ticks once per period until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.State() != Sampling {
		return ErrNotInitialized
	}
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	e.logger.Info("sampling started", "period", e.period)
	for {
		select {
		case <-ctx.Done():
			s := e.Stats()
			e.logger.Info("sampling stopped", "ticks", s.Ticks, "virtual_seconds", s.VirtualSeconds)
			return nil
		case <-ticker.C:
			if err := e.Tick(); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) miss(kind fault.Kind, channel string, err error) {
	ferr := fault.New(kind, channel, err)
	e.countMiss(ferr)
	e.logger.Debug("sample skipped", "error", ferr)
}

func (e *Engine) sampleHost(now float64) {
	cores, err := e.host.CorePercents()
	if err != nil {
		e.miss(fault.SampleMiss, history.CPUUtil.String(), err)
	} else if v, ok := hoststat.MeanPercent(cores); ok {
		e.store.Channel(history.CPUUtil).Push(now, v)
	} else {
		e.miss(fault.SampleMiss, history.CPUUtil.String(), nil)
	}

	total, used, err := e.host.Memory()
	if err != nil {
		e.miss(fault.SampleMiss, history.MemUtil.String(), err)
	} else if v, ok := hoststat.MemPercent(total, used); ok {
		e.store.Channel(history.MemUtil).Push(now, v)
	} else {
		e.miss(fault.SampleMiss, history.MemUtil.String(), nil)
	}
}

func (e *Engine) sampleFreqs(now float64) {
	for i, f := range e.catalog.Freqs() {
		khz, err := sensor.ReadFreqKHz(f.SourcePath)
		if err != nil {
			e.miss(fault.SampleMiss, fmt.Sprintf("cpu%d freq", f.Core), err)
			continue
		}
		e.store.Freq(i).Push(now, khz)
	}
}

func (e *Engine) sampleTemps(now float64) {
	for i, t := range e.catalog.Temps() {
		c, err := sensor.ReadTempC(t.SourcePath)
		if err != nil {
			e.miss(fault.SampleMiss, t.SourcePath, err)
			continue
		}
		e.store.Temp(i).Push(now, c)
	}
}

func (e *Engine) sampleAccel(now float64) {
	present := e.accel.Present()
	nan := math.NaN()

	util, mem, temp := nan, nan, nan
	if m, ok := e.accel.FirstDeviceMetrics(); ok {
		util, mem, temp = m.UtilPercent, m.MemPercent, m.TempC
	} else if present {
		e.miss(fault.IntegrationUnavailable, "accelerator metrics", nil)
	}
	e.store.Channel(history.GPUUtil).Push(now, util)
	e.store.Channel(history.GPUMemUtil).Push(now, mem)
	e.store.Channel(history.GPUTemp).Push(now, temp)

	clocks := [4]float64{nan, nan, nan, nan}
	if c, ok := e.accel.ClockRatesMHz(); ok {
		clocks = [4]float64{c.Graphics, c.Streaming, c.Memory, c.Video}
	} else if present {
		e.miss(fault.IntegrationUnavailable, "accelerator clocks", nil)
	}
	for i, ch := range []history.Channel{
		history.GPUClockGraphics,
		history.GPUClockSM,
		history.GPUClockMemory,
		history.GPUClockVideo,
	} {
		e.store.Channel(ch).Push(now, clocks[i])
	}
}
