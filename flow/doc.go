// Package flow implements the bridge's pipelined dataflow engine.
//
// A Flow owns two bounded queues, two worker pools, the source
// consumers, and one publisher, wired as:
//
//	sources -> domain queue -> domain workers -> publish queue -> publish workers -> publisher
//
// The three topologies (funnel, fan, one-to-one) share this substrate
// and differ only in how a message's destination topic is picked and
// which publisher handles it; they are built by NewFunnel, NewFan, and
// NewOneToOne rather than by subclassing.
//
// Lifecycle: Created -> Starting -> Running -> Draining -> Stopped,
// with Failed as the terminal alternative on unrecoverable errors.
// Stop drains in pipeline order under a bounded budget: consumers
// first, then the domain stage, then the publish stage; worker pools
// that outlive their share of the budget are detached with a warning
// and the flow still reaches a terminal state.
package flow
