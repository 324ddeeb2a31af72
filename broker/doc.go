// Package broker defines the contracts the flow engine consumes from
// upstream and downstream message brokers, and the registry that maps
// adapter type names from configuration to factories.
//
// The engine sees brokers only through Source and Publisher. Adapters
// live in subpackages (mock, kafka, nats, ws) and register themselves
// through the brokerregistry package.
//
// Concurrency contract: the flow calls Consume from a single goroutine
// per source and Publish from many goroutines concurrently. An adapter
// whose client is not multi-writer safe must serialize Publish with a
// mutex internally.
package broker
