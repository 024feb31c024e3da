// Package guard runs a startup procedure at most once per Guard value.
//
// A Guard starts Uninitialized. The first RequestInit call wins a single
// compare-and-swap to Initializing, runs the procedure and publishes
// Initialized or Failed. Every other call, concurrent or later, observes a
// non-Uninitialized state and returns without running anything.
//
// Failures are terminal: a procedure that returns an error (or panics)
// leaves the guard in StateFailed and it is never retried.
//
// The winning run emits exactly one log line: the configured marker on
// success, an error line on failure. Callers that need to verify
// initialization should prefer State, IsInitialized or Status over counting
// log lines.
package guard
