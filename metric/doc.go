// Package metric provides metrics infrastructure for the bridge.
//
// Two layers coexist, following the dual-tracking pattern:
//
//   - Collector: always-on per-topic flow accounting (message counts,
//     bytes, errors, rates) with a deep-copied snapshot API. This is
//     what the runner prints on shutdown.
//   - MetricsRegistry / Metrics: optional Prometheus export. Components
//     register gauges and counters with the registry; an HTTP handler
//     exposes them when the metrics port is enabled.
package metric
