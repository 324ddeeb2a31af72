// Package retry provides exponential backoff retry logic used by broker
// adapters when establishing connections.
package retry
