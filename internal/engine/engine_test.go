package engine

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luki/sia/internal/accel"
	"github.com/luki/sia/internal/fault"
	"github.com/luki/sia/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	cores     []float64
	total     uint64
	used      uint64
	coresErr  error
	memoryErr error
}

func (h *fakeHost) CorePercents() ([]float64, error) { return h.cores, h.coresErr }
func (h *fakeHost) Memory() (uint64, uint64, error)  { return h.total, h.used, h.memoryErr }

type fakeAccel struct {
	metrics accel.Metrics
	clocks  accel.Clocks
	fail    bool
	closed  bool
}

func (a *fakeAccel) Name() string  { return "fake" }
func (a *fakeAccel) Present() bool { return true }
func (a *fakeAccel) FirstDeviceMetrics() (accel.Metrics, bool) {
	return a.metrics, !a.fail
}
func (a *fakeAccel) ClockRatesMHz() (accel.Clocks, bool) {
	return a.clocks, !a.fail
}
func (a *fakeAccel) Close() error {
	a.closed = true
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fakeSys builds an hwmon tree with one CPU package sensor and one CCD
// sensor, and a cpu tree with two cores.
func fakeSys(t *testing.T) (hwmon, cpu string) {
	t.Helper()
	root := t.TempDir()
	hwmon = filepath.Join(root, "hwmon")
	cpu = filepath.Join(root, "cpu")

	k10 := filepath.Join(hwmon, "hwmon0")
	writeFile(t, filepath.Join(k10, "name"), "k10temp\n")
	writeFile(t, filepath.Join(k10, "temp1_input"), "52000\n")
	writeFile(t, filepath.Join(k10, "temp1_label"), "Tctl\n")
	writeFile(t, filepath.Join(k10, "temp3_input"), "47500\n")
	writeFile(t, filepath.Join(k10, "temp3_label"), "Tccd1\n")

	writeFile(t, filepath.Join(cpu, "cpu0", "cpufreq", "scaling_cur_freq"), "3600000\n")
	writeFile(t, filepath.Join(cpu, "cpu1", "cpufreq", "scaling_cur_freq"), "4200000\n")
	return hwmon, cpu
}

func newTestEngine(t *testing.T, period time.Duration, host *fakeHost, backend accel.Backend) *Engine {
	t.Helper()
	hwmon, cpu := fakeSys(t)
	if host == nil {
		host = &fakeHost{cores: []float64{10, 30}, total: 1000, used: 250}
	}
	e := New(Options{
		Period:      period,
		HistorySize: 16,
		HwmonRoot:   hwmon,
		CPURoot:     cpu,
		Host:        host,
		Accel:       backend,
	})
	require.NoError(t, e.Init())
	return e
}

func times(points []history.Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Time
	}
	return out
}

func TestLifecycle(t *testing.T) {
	e := New(Options{HwmonRoot: t.TempDir(), CPURoot: t.TempDir(), Host: &fakeHost{}})
	assert.Equal(t, Uninitialized, e.State())
	assert.ErrorIs(t, e.Tick(), ErrNotInitialized)
	assert.ErrorIs(t, e.Run(context.Background()), ErrNotInitialized)
	assert.Nil(t, e.Channel(history.CPUUtil))
	assert.Nil(t, e.Series(0))

	require.NoError(t, e.Init())
	assert.Equal(t, Sampling, e.State())
	assert.ErrorIs(t, e.Init(), ErrAlreadyInitialized)
	assert.Equal(t, DefaultPeriod, e.Period())
	assert.Equal(t, "sampling", e.State().String())
}

func TestConcurrentInitAndTick(t *testing.T) {
	hwmon, cpu := fakeSys(t)
	e := New(Options{HwmonRoot: hwmon, CPURoot: cpu, Host: &fakeHost{cores: []float64{5}, total: 10, used: 1}})

	var (
		wg    sync.WaitGroup
		inits atomic.Int32
	)
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := e.Init(); err == nil {
				inits.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrAlreadyInitialized)
			}
		}()
		go func() {
			defer wg.Done()
			for range 20 {
				// Sampling is only visible once the catalog and store exist.
				if e.State() == Sampling {
					assert.NotNil(t, e.Catalog())
					assert.NotNil(t, e.Store())
					assert.NoError(t, e.Tick())
				} else if err := e.Tick(); err != nil {
					assert.ErrorIs(t, err, ErrNotInitialized)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inits.Load())
	assert.Equal(t, Sampling, e.State())
}

func TestInitBuildsCatalogAndGroups(t *testing.T) {
	e := newTestEngine(t, time.Second, nil, nil)

	assert.Len(t, e.Catalog().Temps(), 2)
	assert.Len(t, e.Catalog().Freqs(), 2)
	assert.Equal(t, history.NumChannels+4, e.Store().Len())

	groups := e.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "cpu", groups[0].Key)
	require.Len(t, groups[0].Items, 2)
	assert.Equal(t, "Package (Tctl)", groups[0].Items[0].Name)
	assert.Equal(t, "CCD 1", groups[0].Items[1].Name)
	assert.True(t, groups[0].Items[0].DefaultVisible)
	assert.False(t, groups[0].Items[1].DefaultVisible)
	assert.Equal(t, e.Store().TempIndex(0), groups[0].Items[0].SeriesIndex)

	// Groups hands out copies.
	groups[0].Items[0].Name = "changed"
	assert.Equal(t, "Package (Tctl)", e.Groups()[0].Items[0].Name)

	name, present := e.Accelerator()
	assert.Equal(t, "none", name)
	assert.False(t, present)
	assert.Equal(t, 1, e.Stats().Misses[fault.IntegrationUnavailable])
}

func TestTicksAdvanceVirtualTime(t *testing.T) {
	e := newTestEngine(t, time.Second, nil, accel.Absent{})

	for range 3 {
		require.NoError(t, e.Tick())
	}

	assert.Equal(t, []float64{1, 2, 3}, times(e.Channel(history.CPUUtil).Window(0)))
	assert.Equal(t, 3.0, e.Now())

	cpu, ok := e.Channel(history.CPUUtil).LastValue()
	require.True(t, ok)
	assert.Equal(t, 20.0, cpu)
	memPct, ok := e.Channel(history.MemUtil).LastValue()
	require.True(t, ok)
	assert.Equal(t, 25.0, memPct)

	freq, ok := e.Store().Freq(1).LastValue()
	require.True(t, ok)
	assert.Equal(t, 4200000.0, freq)
	temp, ok := e.Store().Temp(0).LastValue()
	require.True(t, ok)
	assert.Equal(t, 52.0, temp)

	gpu := e.Channel(history.GPUUtil)
	require.Equal(t, 3, gpu.Len())
	for _, p := range gpu.Window(0) {
		assert.True(t, math.IsNaN(p.Value))
	}
	_, ok = gpu.LastValue()
	assert.False(t, ok)
	assert.Equal(t, 3, e.Channel(history.GPUClockVideo).Len())

	s := e.Stats()
	assert.Equal(t, 3, s.Ticks)
	assert.Equal(t, 3.0, s.VirtualSeconds)
	assert.Zero(t, s.Misses[fault.SampleMiss])
}

func TestFractionalPeriod(t *testing.T) {
	e := newTestEngine(t, 250*time.Millisecond, nil, nil)
	for range 4 {
		require.NoError(t, e.Tick())
	}
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, times(e.Channel(history.MemUtil).Window(0)))
}

func TestSampleMissKeepsPreviousSample(t *testing.T) {
	e := newTestEngine(t, time.Second, nil, nil)
	require.NoError(t, e.Tick())

	require.NoError(t, os.Remove(e.Catalog().Temps()[1].SourcePath))
	require.NoError(t, os.Remove(e.Catalog().Freqs()[0].SourcePath))
	require.NoError(t, e.Tick())

	assert.Equal(t, 1, e.Store().Temp(1).Len())
	assert.Equal(t, 1, e.Store().Freq(0).Len())
	assert.Equal(t, 2, e.Store().Temp(0).Len())
	assert.Equal(t, 2, e.Stats().Misses[fault.SampleMiss])

	v, ok := e.Store().Temp(1).LastValue()
	require.True(t, ok)
	assert.Equal(t, 47.5, v)
}

func TestHostFailures(t *testing.T) {
	host := &fakeHost{coresErr: errors.New("no stat"), memoryErr: errors.New("no meminfo")}
	e := newTestEngine(t, time.Second, host, nil)
	require.NoError(t, e.Tick())

	assert.Zero(t, e.Channel(history.CPUUtil).Len())
	assert.Zero(t, e.Channel(history.MemUtil).Len())
	assert.Equal(t, 2, e.Stats().Misses[fault.SampleMiss])

	host.coresErr, host.memoryErr = nil, nil
	host.cores = nil
	host.total, host.used = 0, 0
	require.NoError(t, e.Tick())
	assert.Zero(t, e.Channel(history.CPUUtil).Len())
	assert.Equal(t, 4, e.Stats().Misses[fault.SampleMiss])
}

func TestAcceleratorChannels(t *testing.T) {
	backend := &fakeAccel{
		metrics: accel.Metrics{UtilPercent: 80, MemPercent: 40, TempC: 66},
		clocks:  accel.Clocks{Graphics: 1800, Streaming: 1750, Memory: 7000, Video: 1500},
	}
	e := newTestEngine(t, time.Second, nil, backend)

	groups := e.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "gpu", groups[1].Key)
	require.Len(t, groups[1].Items, 1)
	assert.Equal(t, "GPU Die", groups[1].Items[0].Name)
	assert.Equal(t, int(history.GPUTemp), groups[1].Items[0].SeriesIndex)

	require.NoError(t, e.Tick())
	want := map[history.Channel]float64{
		history.GPUUtil:          80,
		history.GPUMemUtil:       40,
		history.GPUTemp:          66,
		history.GPUClockGraphics: 1800,
		history.GPUClockSM:       1750,
		history.GPUClockMemory:   7000,
		history.GPUClockVideo:    1500,
	}
	for ch, v := range want {
		got, ok := e.Channel(ch).LastValue()
		require.True(t, ok, ch.String())
		assert.Equal(t, v, got, ch.String())
	}

	backend.fail = true
	require.NoError(t, e.Tick())
	for ch := range want {
		_, ok := e.Channel(ch).LastValue()
		assert.False(t, ok, ch.String())
		assert.Equal(t, 2, e.Channel(ch).Len())
	}
	assert.Equal(t, 2, e.Stats().Misses[fault.IntegrationUnavailable])

	require.NoError(t, e.Close())
	assert.True(t, backend.closed)
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newTestEngine(t, 5*time.Millisecond, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return e.Stats().Ticks >= 3 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Readers see a consistent, strictly increasing timeline.
	pts := e.Channel(history.CPUUtil).Window(0)
	for i := 1; i < len(pts); i++ {
		assert.Greater(t, pts[i].Time, pts[i-1].Time)
	}
}
