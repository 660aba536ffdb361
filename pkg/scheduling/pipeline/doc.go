/*
Package pipeline builds typed, multi-stage event pipelines and runs them as
graphs of goroutines joined by bounded queues.

A Pipeline[I, O] is an immutable list of stages with a static input and output
type. Combinators append a stage and return a new pipeline; stages between
them carry type-erased Items, and the typed Sender and Receiver each stage is
handed wrap and unwrap values at the boundary.

# Quick Start

	pads := pipeline.New[PadEvent]().
		Filter(func(e PadEvent) bool { return e.Pressed })

	colors := pipeline.Map(pads, func(e PadEvent) Color { return palette[e.Index] })

	in, out := colors.Spawn(ctx)
	defer in.Close()

	_ = in.Send(ctx, PadEvent{Index: 3, Pressed: true})
	c, ok := out.Recv(ctx)

Go methods cannot introduce type parameters, so combinators that change the
output type are package functions: Map, FilterMap, FlatMap, FlatMapSeq, With,
WithFunc, WithCancel and Chain. Filter keeps the type and is a method.

# Stages

	With(p, func(ctx context.Context, v O, out Sender[T]))     // 1:0, 1:1 and 1:N
	WithFunc(p, func(ctx context.Context, in *Receiver[O], out Sender[T]))
	WithCancel(p, f, onCancel)                                 // one task per value
	Chain(outer, inner)                                        // nested graph
	Delay(p, d), Stagger(p, d)                                 // timing

A stage handles one value at a time, in arrival order, except WithCancel which
runs a task per value, and Chain whose inner graph has its own stages.

# Lifecycle

Spawn allocates one queue of QueueDepth per stage boundary and one goroutine
per stage. Closing the inlet lets each stage drain its queue, close its output
and exit, so the whole graph stops in order. Cancelling the spawn context
stops it without draining. SpawnGraph also returns Wait and Cancel.

Sends into a stage that has exited fail with ErrReceiverGone and are reported
to the Observer as dropped; they never panic the sender. A stage function that
panics ends only that stage. A *ContractError, raised when a capsule holds the
wrong type, is never recovered.

# Cancellation pairs

WithCancel pairs an action with its compensation:

	lit := pipeline.WithCancel(colors,
		func(ctx context.Context, c Color, out pipeline.Sender[Frame]) {
			_ = out.Send(ctx, Frame{Color: c})
			<-ctx.Done()
		},
		func(ctx context.Context, c Color, out pipeline.Sender[Frame]) {
			_ = out.Send(ctx, Frame{Color: Black})
		},
	)

When the inlet closes or the graph is cancelled every running task is
cancelled, and each one that had not finished sends its blackout frame before
the stage output closes.
*/
package pipeline
