// Package processor defines the domain-stage transformation applied to
// each message between consume and publish.
//
// A processor may return the message unchanged, a replacement, or nil
// to drop it (an intentional filter, not an error). Processors are
// selected by name from a registered set; there is no dynamic code
// loading. Custom processors register themselves via Register, usually
// from an init function.
package processor
