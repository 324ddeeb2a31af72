// Package engine runs a configured flow for the lifetime of the
// process: it validates the config, instantiates the topology through
// the broker registry, starts it, waits for cancellation or flow
// failure, drains within the configured budget, and reports the final
// per-topic metrics.
package engine
