package queue

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/c360/streambridge/metric"
)

// Sizer is the queue view a back-pressure controller needs.
type Sizer interface {
	Size() int
	Capacity() int
}

// BackPressure decides, from current queue fill, whether source
// consumers should throttle. The gate engages when the queue reaches
// the high watermark and releases only once it drains to the low
// watermark; crossings between the two never toggle it, which prevents
// oscillation.
type BackPressure struct {
	queue     Sizer
	enabled   bool
	highWater int
	lowWater  int

	mu       sync.Mutex
	engaged  bool
	engages  int64
	releases int64

	prom     *metric.Metrics
	promName string
}

// NewBackPressure creates a controller over q with watermark fractions
// high and low in (0, 1], low <= high. With enabled false the gate is
// permanently open. If prom is non-nil, gate transitions update the
// back-pressure gauge under name.
func NewBackPressure(q Sizer, enabled bool, high, low float64, prom *metric.Metrics, name string) *BackPressure {
	capacity := q.Capacity()
	return &BackPressure{
		queue:     q,
		enabled:   enabled,
		highWater: int(math.Ceil(float64(capacity) * high)),
		lowWater:  int(math.Ceil(float64(capacity) * low)),
		prom:      prom,
		promName:  name,
	}
}

// ShouldThrottle reports whether consumption should currently pause.
// Consumers call it before each consume attempt; a true result means
// sleep briefly and re-check rather than fetch.
func (bp *BackPressure) ShouldThrottle() bool {
	if !bp.enabled {
		return false
	}

	size := bp.queue.Size()

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if !bp.engaged && size >= bp.highWater {
		bp.engaged = true
		atomic.AddInt64(&bp.engages, 1)
		if bp.prom != nil {
			bp.prom.RecordBackPressure(bp.promName, true)
		}
	} else if bp.engaged && size <= bp.lowWater {
		bp.engaged = false
		atomic.AddInt64(&bp.releases, 1)
		if bp.prom != nil {
			bp.prom.RecordBackPressure(bp.promName, false)
		}
	}

	return bp.engaged
}

// Engages returns how many times the gate has engaged.
func (bp *BackPressure) Engages() int64 {
	return atomic.LoadInt64(&bp.engages)
}

// Releases returns how many times the gate has released.
func (bp *BackPressure) Releases() int64 {
	return atomic.LoadInt64(&bp.releases)
}

// HighWater returns the engage threshold in items.
func (bp *BackPressure) HighWater() int {
	return bp.highWater
}

// LowWater returns the release threshold in items.
func (bp *BackPressure) LowWater() int {
	return bp.lowWater
}
