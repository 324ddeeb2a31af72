package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all bridge-level metrics (not broker-specific)
type Metrics struct {
	FlowState           *prometheus.GaugeVec
	MessagesConsumed    *prometheus.CounterVec
	MessagesPublished   *prometheus.CounterVec
	ProcessingDuration  *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec
	QueueDepth          *prometheus.GaugeVec
	BackPressureEngaged *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all bridge metrics
func NewMetrics() *Metrics {
	return &Metrics{
		FlowState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "streambridge",
				Subsystem: "flow",
				Name:      "state",
				Help:      "Flow state (0=created, 1=starting, 2=running, 3=draining, 4=stopped, 5=failed)",
			},
			[]string{"flow"},
		),

		MessagesConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streambridge",
				Subsystem: "messages",
				Name:      "consumed_total",
				Help:      "Total number of messages consumed from sources",
			},
			[]string{"topic"},
		),

		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streambridge",
				Subsystem: "messages",
				Name:      "published_total",
				Help:      "Total number of messages published to destinations",
			},
			[]string{"topic"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "streambridge",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Per-stage message handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streambridge",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of per-message errors",
			},
			[]string{"side", "topic"},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "streambridge",
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Current inter-stage queue depth",
			},
			[]string{"queue"},
		),

		BackPressureEngaged: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "streambridge",
				Subsystem: "backpressure",
				Name:      "engaged",
				Help:      "Back-pressure gate state (0=open, 1=throttling)",
			},
			[]string{"queue"},
		),
	}
}

// RecordFlowState updates the flow state gauge
func (m *Metrics) RecordFlowState(flow string, state int) {
	m.FlowState.WithLabelValues(flow).Set(float64(state))
}

// RecordConsumed increments the consumed message counter
func (m *Metrics) RecordConsumed(topic string) {
	m.MessagesConsumed.WithLabelValues(topic).Inc()
}

// RecordPublished increments the published message counter
func (m *Metrics) RecordPublished(topic string) {
	m.MessagesPublished.WithLabelValues(topic).Inc()
}

// RecordProcessingDuration records stage handling time
func (m *Metrics) RecordProcessingDuration(stage string, duration time.Duration) {
	m.ProcessingDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordError increments the per-message error counter
func (m *Metrics) RecordError(side, topic string) {
	m.ErrorsTotal.WithLabelValues(side, topic).Inc()
}

// RecordQueueDepth updates the queue depth gauge
func (m *Metrics) RecordQueueDepth(queue string, depth int) {
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordBackPressure updates the back-pressure gate gauge
func (m *Metrics) RecordBackPressure(queue string, engaged bool) {
	value := 0.0
	if engaged {
		value = 1.0
	}
	m.BackPressureEngaged.WithLabelValues(queue).Set(value)
}
