// Package effect switches between long-running show effects.
//
// A Switcher owns the running effect. Switch cancels it, waits until every
// task of the effect has unwound and its cleanups have run, then starts the
// replacement under a new Generation. Outputs that still escape, for example
// from a handler that was not governed by the effect's group, are caught by a
// GenerationGate in front of the sink.
package effect
