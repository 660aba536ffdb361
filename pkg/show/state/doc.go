// Package state keeps show state on one goroutine and broadcasts every
// change.
//
// Control handlers send commands to a Holder instead of sharing the state.
// The holder applies them one at a time through a Reducer and publishes the
// result, so subscribers such as an effect switcher see a consistent
// sequence of snapshots.
package state
