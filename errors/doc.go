// Package errors provides standardized error handling for streambridge
// components. Errors are classified into three classes that drive the
// flow engine's failure policy:
//
//   - Transient: per-message failures (failed publish, routing miss,
//     processor error). The worker records the error and continues.
//   - Invalid: malformed configuration or input. Fatal at startup; the
//     flow never starts.
//   - Fatal: the broker session is unrecoverable. The flow transitions
//     to Failed and drains best-effort.
//
// Helpers wrap errors with component/operation context in the form
// "component.method: action failed: <cause>".
package errors
