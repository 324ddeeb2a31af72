// Package worker provides a generic fixed-size worker pool that drains
// a bounded queue.
//
// Unlike a pool with its own submission channel, this pool is built for
// pipeline stages: the inter-stage queue IS the work source. Workers
// poll the queue with a short timeout so lifecycle changes are noticed
// promptly, and exit when the queue is closed and drained.
//
// Per-item isolation is absolute: an error or panic from the processing
// function is counted and the worker moves on to the next item. A
// worker never dies from a single bad message.
//
// Shutdown supports two modes. Drain waits for workers to finish every
// item already queued (the owner must close the queue first); immediate
// cancels the pool context so workers exit at the next poll. Both are
// bounded by a timeout; exceeding it reports ErrStopTimeout, which
// callers treat as degraded rather than fatal.
package worker
