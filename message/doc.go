// Package message defines the record that moves through a bridge flow.
//
// A Message is constructed once by a source adapter and is not mutated
// afterwards except by a domain processor, which may return the same
// message, a replacement, or nil to drop it. Broker-native delivery
// details (partition, offset, delivery tag) travel in the Metadata map
// and are opaque to the flow engine; publisher adapters may read them
// for ack correlation.
package message
