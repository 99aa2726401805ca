// Package engine owns the telemetry state of the process: the sensor
// catalog, the sensor groups and the rolling series. It is built once at
// startup, then a scheduler appends one sample per channel per tick while
// any number of readers query it.
package engine

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luki/sia/internal/accel"
	"github.com/luki/sia/internal/fault"
	"github.com/luki/sia/internal/history"
	"github.com/luki/sia/internal/hoststat"
	"github.com/luki/sia/internal/sensor"
)

// State is the engine lifecycle state. The only transition is
// Uninitialized -> Sampling, taken once by Init.
type State int32

const (
	Uninitialized State = iota
	Sampling
)

func (s State) String() string {
	if s == Sampling {
		return "sampling"
	}
	return "uninitialized"
}

var (
	ErrAlreadyInitialized = errors.New("engine already initialized")
	ErrNotInitialized     = errors.New("engine not initialized")
)

// Defaults used when Options leave a field zero.
const (
	DefaultPeriod      = time.Second
	DefaultHistorySize = 5 * 60
)

// Options configures an Engine.
type Options struct {
	Period      time.Duration
	HistorySize int // samples retained per series
	HwmonRoot   string
	CPURoot     string
	Host        hoststat.Source
	Accel       accel.Backend
	Logger      *slog.Logger
}

// Stats summarizes the sampling so far.
type Stats struct {
	Ticks          int
	VirtualSeconds float64
	Misses         map[fault.Kind]int
}

// Engine is the telemetry context object. Catalog and groups are read-only
// once Init returns; series are written only by Tick.
type Engine struct {
	period      time.Duration
	historySize int
	hwmonRoot   string
	cpuRoot     string
	host        hoststat.Source
	accel       accel.Backend
	logger      *slog.Logger

	state   atomic.Int32
	initing atomic.Bool

	catalog *sensor.Catalog
	groups  []sensor.Group
	store   *history.Store

	tickMu sync.Mutex
	ticks  int

	statsMu sync.Mutex
	misses  map[fault.Kind]int
}

// New returns an uninitialized engine.
func New(opts Options) *Engine {
	e := &Engine{
		period:      opts.Period,
		historySize: opts.HistorySize,
		hwmonRoot:   opts.HwmonRoot,
		cpuRoot:     opts.CPURoot,
		host:        opts.Host,
		accel:       opts.Accel,
		logger:      opts.Logger,
		misses:      map[fault.Kind]int{},
	}
	if e.period <= 0 {
		e.period = DefaultPeriod
	}
	if e.historySize <= 0 {
		e.historySize = DefaultHistorySize
	}
	if e.host == nil {
		e.host = hoststat.New()
	}
	if e.accel == nil {
		e.accel = accel.Absent{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Init discovers sensors, allocates one series per channel and builds the
// groups, then moves the engine to Sampling. It may be called once.
func (e *Engine) Init() error {
	if !e.initing.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	catalog, gaps := sensor.Discover(sensor.DiscoverOptions{
		HwmonRoot: e.hwmonRoot,
		CPURoot:   e.cpuRoot,
		Logger:    e.logger,
	})
	for _, err := range gaps {
		e.countMiss(err)
	}

	store := history.NewStore(e.historySize, len(catalog.Freqs()), len(catalog.Temps()))
	members := sensor.TempMembers(catalog, store.TempIndex)
	if e.accel.Present() {
		members = append(members, sensor.Member{
			RawName:     "nvidia",
			Name:        "GPU Die",
			SeriesIndex: int(history.GPUTemp),
		})
	} else {
		e.countMiss(fault.New(fault.IntegrationUnavailable, "accelerator", nil))
	}

	e.catalog = catalog
	e.store = store
	e.groups = sensor.BuildGroups(members)
	e.state.Store(int32(Sampling))

	e.logger.Info("telemetry engine initialized",
		"groups", len(e.groups),
		"series", store.Len(),
		"period", e.period,
		"history", e.historySize,
		"accelerator", e.accel.Name(),
	)
	return nil
}

// State returns the lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Period returns the sampling period.
func (e *Engine) Period() time.Duration { return e.period }

// Catalog returns the discovered sensors, nil before Init.
func (e *Engine) Catalog() *sensor.Catalog { return e.catalog }

// Store returns the series store, nil before Init.
func (e *Engine) Store() *history.Store { return e.store }

// Series returns the series at a stable index, nil when out of range.
func (e *Engine) Series(index int) *history.Series {
	if e.store == nil {
		return nil
	}
	return e.store.Get(index)
}

// Channel returns a fixed channel's series, nil before Init.
func (e *Engine) Channel(c history.Channel) *history.Series {
	if e.store == nil {
		return nil
	}
	return e.store.Channel(c)
}

// Groups returns a copy of the sensor groups in display order.
func (e *Engine) Groups() []sensor.Group {
	out := slices.Clone(e.groups)
	for i := range out {
		out[i].Items = slices.Clone(out[i].Items)
	}
	return out
}

// Accelerator returns the backend name and whether a device is present.
func (e *Engine) Accelerator() (string, bool) {
	return e.accel.Name(), e.accel.Present()
}

// Now returns the virtual time of the latest tick in seconds.
func (e *Engine) Now() float64 {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	return e.virtualSeconds()
}

func (e *Engine) virtualSeconds() float64 {
	return float64(e.ticks) * e.period.Seconds()
}

// Stats returns a snapshot of tick and fault counters.
func (e *Engine) Stats() Stats {
	e.tickMu.Lock()
	s := Stats{Ticks: e.ticks, VirtualSeconds: e.virtualSeconds()}
	e.tickMu.Unlock()

	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	s.Misses = make(map[fault.Kind]int, len(e.misses))
	for k, v := range e.misses {
		s.Misses[k] = v
	}
	return s
}

func (e *Engine) countMiss(err error) {
	kind := fault.KindOf(err)
	if kind == "" {
		return
	}
	e.statsMu.Lock()
	e.misses[kind]++
	e.statsMu.Unlock()
}

// Close releases the accelerator backend.
func (e *Engine) Close() error {
	return e.accel.Close()
}
