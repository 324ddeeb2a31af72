// Package queue provides the bounded blocking FIFO used for inter-stage
// transport in a flow, plus the watermark-based back-pressure controller
// that observes it.
//
// Bounded is backed by a buffered channel: Put blocks while the queue is
// full, Get blocks up to a timeout, and Close wakes every blocked caller.
// After Close, Get drains the remaining items before reporting ErrClosed,
// so no enqueued item is ever lost to shutdown.
//
// Statistics are always collected; Prometheus export is opt-in via
// WithMetrics, following the framework's dual-tracking pattern.
package queue
