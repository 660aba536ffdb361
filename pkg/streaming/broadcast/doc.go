/*
Package broadcast provides a bounded, lossy fan-out channel and helpers that
listen to it.

A Channel keeps the last Capacity events in a ring. Send never blocks the
producer. Each subscriber has its own cursor; one that falls more than
Capacity events behind receives a *LaggedError with the number of events it
missed and then continues from the oldest event still held. Closing the
channel lets subscribers drain what is buffered before they see ErrClosed.

	ch := broadcast.New[Frame](64)
	tok := broadcast.Listen[Frame](ch, func(ctx context.Context, f Frame) {
		render(f)
	})
	defer tok.Cancel()

Listen runs each handler on its own goroutine. ListenOnce waits for the first
event matching a predicate, runs one handler and stops. Both return the
task.Token that governs the receive loop.
*/
package broadcast
