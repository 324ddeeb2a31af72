// Package streambridge is a high-throughput pub-sub bridge: it consumes
// messages from upstream message brokers, optionally transforms each message
// through a pluggable domain processor, and publishes the result to
// downstream brokers.
//
// # Architecture
//
// A running bridge is a three-stage pipeline wired by the flow engine:
//
//	Source(s) -> domain queue -> domain workers -> publish queue -> publish workers -> Publisher
//
// Both inter-stage queues are bounded and observed by a watermark-based
// back-pressure controller. When the domain queue reaches its high
// watermark, source consumers throttle their fetch rate until it drains
// to the low watermark; the publish queue's gate holds domain workers
// back in the same way. Consumers never drop messages under
// back-pressure; they only slow down.
//
// Three topologies share the same execution substrate:
//
//   - Funnel: many sources, one fixed destination topic
//   - Fan: one source, destination topic resolved per message from a header
//     or a JSON payload key
//   - One-to-one: a list of source_topic -> destination_topic mappings
//
// # Layout
//
//   - message: the message record moving through the pipeline
//   - broker: Source/Publisher contracts and the adapter registry
//   - broker/{mock,kafka,nats,ws}: bundled broker adapters
//   - processor: the domain-stage transformation contract and built-ins
//   - flow: the flow engine (queues, pools, lifecycle, topologies)
//   - engine: config-to-flow runner with signal handling
//   - metric: Prometheus registry and per-topic flow accounting
//   - pkg/queue, pkg/worker, pkg/retry: concurrency building blocks
//
// The bridge is configured declaratively from a YAML file and runs as a
// long-lived process; see cmd/streambridge.
package streambridge
