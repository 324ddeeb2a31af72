// Package config defines the typed configuration for a bridge process
// and its YAML loader.
//
// A config names exactly one flow mode (funnel, fan, one_to_one) and
// carries the matching mode subtree, plus the shared thread-pool,
// back-pressure, processor, and shutdown settings. Defaults are applied
// before unmarshalling, so absent fields keep their documented values.
// Validate classifies every problem as an invalid-configuration error;
// the process refuses to start on any of them.
package config
