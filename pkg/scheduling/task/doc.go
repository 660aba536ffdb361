// Package task provides cancellation-scoped goroutines.
//
// A Token is a shared, one-way cancellation flag built on context. Tasks run
// a function under a token and may pair it with a compensating action:
//
//	t := task.SpawnWithCleanup(
//		func(ctx context.Context) { fixture.On(ctx); <-ctx.Done() },
//		func(ctx context.Context) { fixture.Off(ctx) },
//	)
//	...
//	t.Cancel() // Off runs after On's goroutine returns
//
// Cancellation is cooperative. The function sees its context cancelled and is
// expected to return at its next channel operation or timer; a task that
// ignores its context keeps running. The cleanup runs when the token was
// cancelled by the time the function returned, exactly once, with a context
// that is not cancelled.
//
// Many tasks can share one token (SpawnFrom, SpawnWithCleanupFrom) so a
// single Cancel stops every task of an effect. Group adds a Wait that returns
// once all of its tasks and their cleanups have finished.
//
// SpawnInterval repeats a function with a fixed delay between runs for
// time-driven effects that do not react to events.
package task
