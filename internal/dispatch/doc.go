// Package dispatch resolves which override handler, if any, processes a
// universal operation call.
//
// Operands participating in a call may carry an override capability. The
// dispatcher collects one candidate per distinct runtime type (scanning
// inputs, then outputs, then the where-mask), normalizes the call's
// supplemental arguments into a uniform named-parameter set, and tries
// candidates most-derived first until one accepts, one fails, or all
// decline.
//
// The package is a leaf: it performs no I/O, keeps no cross-call state,
// and knows nothing about where operands come from. Tracing hooks and the
// failure message are pluggable so callers can attach their own recording
// and diagnostics.
package dispatch
