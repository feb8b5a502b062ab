package engine

import (
	"sync"
	"time"

	"github.com/go-drift/weave/pkg/core"
)

const (
	cycleTraceSamplesDefault = 240
	defaultSlowCycle         = 16 * time.Millisecond
)

// CycleSample is a single render-and-commit cycle trace sample.
type CycleSample struct {
	Timestamp  int64   `json:"ts"`
	TotalMs    float64 `json:"totalMs"`
	RenderMs   float64 `json:"renderMs"`
	CommitMs   float64 `json:"commitMs"`
	Rendered   int     `json:"rendered"`
	Placements int     `json:"placements"`
	Updates    int     `json:"updates"`
	Deletions  int     `json:"deletions"`
	Effects    int     `json:"effects"`
	Error      string  `json:"error,omitempty"`
}

// SampleFromStats converts runtime cycle stats to a trace sample.
func SampleFromStats(s core.CycleStats) CycleSample {
	sample := CycleSample{
		Timestamp:  s.Start.UnixMilli(),
		TotalMs:    durationToMillis(s.Total()),
		RenderMs:   durationToMillis(s.RenderDuration),
		CommitMs:   durationToMillis(s.CommitDuration),
		Rendered:   s.Rendered,
		Placements: s.Placements,
		Updates:    s.Updates,
		Deletions:  s.Deletions,
		Effects:    s.EffectsRun,
	}
	if s.Err != nil {
		sample.Error = s.Err.Error()
	}
	return sample
}

// CycleTimeline is the debug server response shape.
type CycleTimeline struct {
	Samples     []CycleSample `json:"samples"`
	SlowCycles  int           `json:"slowCycles"`
	ThresholdMs float64       `json:"thresholdMs"`
}

// CycleTraceBuffer stores recent cycle samples in a ring buffer.
type CycleTraceBuffer struct {
	mu        sync.RWMutex
	samples   []CycleSample
	index     int
	count     int
	slow      int
	threshold time.Duration
}

// NewCycleTraceBuffer creates a buffer holding capacity samples. Cycles
// longer than threshold are counted as slow.
func NewCycleTraceBuffer(capacity int, threshold time.Duration) *CycleTraceBuffer {
	if capacity <= 0 {
		capacity = cycleTraceSamplesDefault
	}
	if threshold <= 0 {
		threshold = defaultSlowCycle
	}
	return &CycleTraceBuffer{
		samples:   make([]CycleSample, capacity),
		threshold: threshold,
	}
}

// Capacity returns the buffer capacity.
func (b *CycleTraceBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Threshold returns the slow cycle threshold.
func (b *CycleTraceBuffer) Threshold() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.threshold
}

// Add records a sample. total is the cycle's wall time.
func (b *CycleTraceBuffer) Add(sample CycleSample, total time.Duration) {
	b.mu.Lock()
	b.samples[b.index] = sample
	b.index = (b.index + 1) % len(b.samples)
	if b.count < len(b.samples) {
		b.count++
	}
	if total > b.threshold {
		b.slow++
	}
	b.mu.Unlock()
}

// Snapshot returns the samples in chronological order.
func (b *CycleTraceBuffer) Snapshot() CycleTimeline {
	b.mu.RLock()
	defer b.mu.RUnlock()

	timeline := CycleTimeline{
		SlowCycles:  b.slow,
		ThresholdMs: durationToMillis(b.threshold),
	}
	if b.count == 0 {
		return timeline
	}
	timeline.Samples = make([]CycleSample, b.count)
	if b.count < len(b.samples) {
		copy(timeline.Samples, b.samples[:b.count])
	} else {
		n := copy(timeline.Samples, b.samples[b.index:])
		copy(timeline.Samples[n:], b.samples[:b.index])
	}
	return timeline
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
