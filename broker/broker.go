package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/streambridge/message"
	"github.com/c360/streambridge/metric"
)

// Source is an upstream broker client producing messages into a flow.
type Source interface {
	// Open establishes the broker connection. Failure is fatal at
	// startup; the flow never starts.
	Open(ctx context.Context) error

	// Subscribe registers interest in the given topics. Must be called
	// after Open and before Consume.
	Subscribe(topics ...string) error

	// Consume returns the next message, blocking up to timeout. A nil
	// message with nil error means idle. Transient errors are logged by
	// the flow and consumption continues; fatal errors (per the errors
	// package classification) move the flow to Failed.
	Consume(timeout time.Duration) (*message.Message, error)

	// Commit acknowledges a message for brokers that track delivery
	// offsets. Adapters without offsets implement it as a no-op.
	Commit(msg *message.Message) error

	// Close releases all broker resources. Idempotent.
	Close() error
}

// Publisher is a downstream broker client consuming messages from a
// flow.
type Publisher interface {
	// Open establishes the broker connection. Failure is fatal at
	// startup.
	Open(ctx context.Context) error

	// Publish sends msg to topic. Transient errors count against the
	// destination topic and the worker moves on; fatal errors move the
	// flow to Failed. Safe for concurrent use.
	Publish(topic string, msg *message.Message) error

	// Flush forces out any buffered messages within the deadline.
	Flush(timeout time.Duration) error

	// Close flushes and releases broker resources. Idempotent.
	Close() error
}

// Dependencies carries the shared infrastructure handed to adapter
// factories.
type Dependencies struct {
	Logger  *slog.Logger
	Metrics *metric.MetricsRegistry
}

// GetLogger returns the configured logger or the process default.
func (d Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
