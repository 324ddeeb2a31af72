package queue

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/metric"
)

// queueMetrics exposes queue depth and capacity as Prometheus gauges.
type queueMetrics struct {
	depth    prometheus.Gauge
	capacity prometheus.Gauge
}

func newQueueMetrics(registry *metric.MetricsRegistry, name string, capacity int) (*queueMetrics, error) {
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "streambridge",
		Subsystem:   "queue",
		Name:        "items",
		Help:        "Current number of items in the queue",
		ConstLabels: prometheus.Labels{"queue": name},
	})
	capacityGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "streambridge",
		Subsystem:   "queue",
		Name:        "capacity",
		Help:        "Configured queue capacity",
		ConstLabels: prometheus.Labels{"queue": name},
	})

	serviceName := "queue_" + name
	if err := registry.RegisterGauge(serviceName, "items", depth); err != nil {
		return nil, errors.WrapTransient(err, "Bounded", "newQueueMetrics", "metrics registration")
	}
	if err := registry.RegisterGauge(serviceName, "capacity", capacityGauge); err != nil {
		return nil, errors.WrapTransient(err, "Bounded", "newQueueMetrics", "metrics registration")
	}

	capacityGauge.Set(float64(capacity))

	return &queueMetrics{depth: depth, capacity: capacityGauge}, nil
}

func (m *queueMetrics) recordDepth(depth int) {
	m.depth.Set(float64(depth))
}
