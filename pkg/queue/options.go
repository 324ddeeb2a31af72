package queue

import (
	"github.com/c360/streambridge/metric"
)

// Option configures queue behavior using the functional options pattern.
type Option[T any] func(*queueOptions)

// queueOptions holds internal configuration for queue instances.
// Statistics are always collected; Prometheus export is opt-in.
type queueOptions struct {
	metricsReg *metric.MetricsRegistry
	name       string
}

// WithMetrics enables Prometheus export of queue depth under the given
// queue name. Ignored when registry is nil or name is empty.
func WithMetrics[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(opts *queueOptions) {
		if registry != nil && name != "" {
			opts.metricsReg = registry
			opts.name = name
		}
	}
}

func applyOptions[T any](options ...Option[T]) *queueOptions {
	opts := &queueOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
