package metric

import (
	"sync"
	"time"
)

// TopicMetrics holds the counters for one topic on one side of the flow.
type TopicMetrics struct {
	MessageCount    int64     `json:"message_count"`
	TotalBytes      int64     `json:"total_bytes"`
	ErrorCount      int64     `json:"error_count"`
	LastMessageTime time.Time `json:"last_message_time"`
}

// TopicSnapshot is a read-only copy of a topic's counters plus the
// derived message rate.
type TopicSnapshot struct {
	MessageCount    int64     `json:"message_count"`
	TotalBytes      int64     `json:"total_bytes"`
	ErrorCount      int64     `json:"error_count"`
	LastMessageTime time.Time `json:"last_message_time"`
	RatePerSecond   float64   `json:"rate_per_second"`
}

// Snapshot is a consistent copy of all flow accounting at one instant.
type Snapshot struct {
	UptimeSeconds float64                  `json:"uptime_seconds"`
	Source        map[string]TopicSnapshot `json:"source_metrics"`
	Destination   map[string]TopicSnapshot `json:"destination_metrics"`
}

// Collector tracks per-topic message accounting for both sides of a
// flow. All methods are safe for concurrent use; updates take a single
// lock, readers get deep copies.
type Collector struct {
	mu          sync.Mutex
	source      map[string]*TopicMetrics
	destination map[string]*TopicMetrics
	startTime   time.Time

	// Optional Prometheus mirror
	prom *Metrics
}

// NewCollector creates a collector with the flow start time set to now.
// If prom is non-nil, every update is mirrored into the bridge core
// Prometheus metrics.
func NewCollector(prom *Metrics) *Collector {
	return &Collector{
		source:      make(map[string]*TopicMetrics),
		destination: make(map[string]*TopicMetrics),
		startTime:   time.Now(),
		prom:        prom,
	}
}

func (c *Collector) topic(side map[string]*TopicMetrics, topic string) *TopicMetrics {
	tm, ok := side[topic]
	if !ok {
		tm = &TopicMetrics{}
		side[topic] = tm
	}
	return tm
}

// RecordSource records a message consumed from a source topic.
func (c *Collector) RecordSource(topic string, size int) {
	c.mu.Lock()
	tm := c.topic(c.source, topic)
	tm.MessageCount++
	tm.TotalBytes += int64(size)
	tm.LastMessageTime = time.Now()
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.RecordConsumed(topic)
	}
}

// RecordDestination records a message published to a destination topic.
func (c *Collector) RecordDestination(topic string, size int) {
	c.mu.Lock()
	tm := c.topic(c.destination, topic)
	tm.MessageCount++
	tm.TotalBytes += int64(size)
	tm.LastMessageTime = time.Now()
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.RecordPublished(topic)
	}
}

// ErrorSource records a per-message error attributed to a source topic.
func (c *Collector) ErrorSource(topic string) {
	c.mu.Lock()
	c.topic(c.source, topic).ErrorCount++
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.RecordError("source", topic)
	}
}

// ErrorDestination records a per-message error attributed to a
// destination topic.
func (c *Collector) ErrorDestination(topic string) {
	c.mu.Lock()
	c.topic(c.destination, topic).ErrorCount++
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.RecordError("destination", topic)
	}
}

// Uptime returns the elapsed time since the collector was created.
func (c *Collector) Uptime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.startTime)
}

// Snapshot returns a deep copy of all counters. Rates are computed at
// read time as count / elapsed-since-start.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	uptime := time.Since(c.startTime).Seconds()
	return Snapshot{
		UptimeSeconds: uptime,
		Source:        snapshotSide(c.source, uptime),
		Destination:   snapshotSide(c.destination, uptime),
	}
}

func snapshotSide(side map[string]*TopicMetrics, uptime float64) map[string]TopicSnapshot {
	out := make(map[string]TopicSnapshot, len(side))
	for topic, tm := range side {
		rate := 0.0
		if uptime > 0 {
			rate = float64(tm.MessageCount) / uptime
		}
		out[topic] = TopicSnapshot{
			MessageCount:    tm.MessageCount,
			TotalBytes:      tm.TotalBytes,
			ErrorCount:      tm.ErrorCount,
			LastMessageTime: tm.LastMessageTime,
			RatePerSecond:   rate,
		}
	}
	return out
}

// Reset clears all counters and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = make(map[string]*TopicMetrics)
	c.destination = make(map[string]*TopicMetrics)
	c.startTime = time.Now()
}
