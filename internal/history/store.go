package history

// Channel identifies one of the fixed series slots that exist regardless
// of what discovery finds.
type Channel int

const (
	CPUUtil Channel = iota
	MemUtil
	GPUUtil
	GPUMemUtil
	GPUTemp
	GPUClockGraphics
	GPUClockSM
	GPUClockMemory
	GPUClockVideo

	numChannels
)

// NumChannels is the number of fixed slots ahead of the sensor series.
const NumChannels = int(numChannels)

var channelNames = [numChannels]string{
	CPUUtil:          "CPU %",
	MemUtil:          "RAM %",
	GPUUtil:          "GPU %",
	GPUMemUtil:       "GPU Memory %",
	GPUTemp:          "GPU Temp",
	GPUClockGraphics: "GPU Graphics",
	GPUClockSM:       "GPU SM",
	GPUClockMemory:   "GPU Memory",
	GPUClockVideo:    "GPU Video",
}

func (c Channel) String() string {
	if c < 0 || c >= numChannels {
		return "unknown"
	}
	return channelNames[c]
}

// Store owns every series of the process. Indexes are stable: the fixed
// channels come first, then one slot per frequency sensor, then one slot
// per temperature sensor.
type Store struct {
	series   []*Series
	numFreqs int
	numTemps int
}

// NewStore allocates all series up front, each retaining capacity samples.
func NewStore(capacity, numFreqs, numTemps int) *Store {
	total := int(numChannels) + numFreqs + numTemps
	s := &Store{
		series:   make([]*Series, total),
		numFreqs: numFreqs,
		numTemps: numTemps,
	}
	for i := range s.series {
		s.series[i] = NewSeries(capacity)
	}
	return s
}

// Len returns the total number of series.
func (s *Store) Len() int { return len(s.series) }

// Get returns the series at a stable index, or nil when out of range.
func (s *Store) Get(index int) *Series {
	if index < 0 || index >= len(s.series) {
		return nil
	}
	return s.series[index]
}

// Channel returns a fixed channel's series.
func (s *Store) Channel(c Channel) *Series {
	return s.series[c]
}

// FreqIndex maps the i-th frequency sensor to its series index.
func (s *Store) FreqIndex(i int) int { return int(numChannels) + i }

// TempIndex maps the i-th temperature sensor to its series index.
func (s *Store) TempIndex(i int) int { return int(numChannels) + s.numFreqs + i }

// Freq returns the series of the i-th frequency sensor.
func (s *Store) Freq(i int) *Series {
	if i < 0 || i >= s.numFreqs {
		return nil
	}
	return s.series[s.FreqIndex(i)]
}

// Temp returns the series of the i-th temperature sensor.
func (s *Store) Temp(i int) *Series {
	if i < 0 || i >= s.numTemps {
		return nil
	}
	return s.series[s.TempIndex(i)]
}

// NumFreqs returns the number of frequency slots.
func (s *Store) NumFreqs() int { return s.numFreqs }

// NumTemps returns the number of temperature slots.
func (s *Store) NumTemps() int { return s.numTemps }
