package pipeline

import (
	"context"
	"iter"
	"runtime/debug"

	"github.com/vnykmshr/stagebridge/pkg/scheduling/task"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// Map applies f to every value.
func Map[I, O, T any](p Pipeline[I, O], f func(O) T) Pipeline[I, T] {
	return appendStage[I, O, T](p, "map", func(ctx context.Context, in *Receiver[O], out Sender[T], _ stageEnv) {
		for v := range in.All(ctx) {
			_ = out.Send(ctx, f(v))
		}
	})
}

// FilterMap forwards f(v) when f reports true and drops v otherwise.
func FilterMap[I, O, T any](p Pipeline[I, O], f func(O) (T, bool)) Pipeline[I, T] {
	return appendStage[I, O, T](p, "filter_map", func(ctx context.Context, in *Receiver[O], out Sender[T], _ stageEnv) {
		for v := range in.All(ctx) {
			if t, ok := f(v); ok {
				_ = out.Send(ctx, t)
			}
		}
	})
}

// FlatMap forwards every element of f(v) in slice order. An empty slice
// forwards nothing.
func FlatMap[I, O, T any](p Pipeline[I, O], f func(O) []T) Pipeline[I, T] {
	return FlatMapSeq(p, func(v O) iter.Seq[T] {
		ts := f(v)
		return func(yield func(T) bool) {
			for _, t := range ts {
				if !yield(t) {
					return
				}
			}
		}
	})
}

// FlatMapSeq is FlatMap over an iterator. The iterator is abandoned when a
// send fails.
func FlatMapSeq[I, O, T any](p Pipeline[I, O], f func(O) iter.Seq[T]) Pipeline[I, T] {
	return appendStage[I, O, T](p, "flat_map", func(ctx context.Context, in *Receiver[O], out Sender[T], _ stageEnv) {
		for v := range in.All(ctx) {
			for t := range f(v) {
				if out.Send(ctx, t) != nil {
					break
				}
			}
		}
	})
}

// With runs f for each value, one value at a time. f may send zero, one or
// many outputs, which makes With the general form of every 1:N stage.
func With[I, O, T any](p Pipeline[I, O], f func(ctx context.Context, v O, out Sender[T])) Pipeline[I, T] {
	return appendStage[I, O, T](p, "with", func(ctx context.Context, in *Receiver[O], out Sender[T], _ stageEnv) {
		for v := range in.All(ctx) {
			f(ctx, v, out)
		}
	})
}

// WithFunc hands the whole input stream to f. The stage ends, and its output
// closes, when f returns; f must not keep using out after that. Goroutines f
// starts that send on out must be finished before f returns.
func WithFunc[I, O, T any](p Pipeline[I, O], f func(ctx context.Context, in *Receiver[O], out Sender[T])) Pipeline[I, T] {
	return appendStage[I, O, T](p, "func", func(ctx context.Context, in *Receiver[O], out Sender[T], _ stageEnv) {
		f(ctx, in, out)
	})
}

// WithCancel starts one task per value running f. All tasks of one stage
// share a token that is cancelled when the stage input closes or the graph is
// cancelled. A task whose token is cancelled before f returns runs onCancel
// for its value exactly once, after f has returned; a task whose f finished
// first never does. The stage output stays open until every task and cleanup
// has finished, so values sent from onCancel are delivered.
//
// This pairs an action with its undo: turn a fixture on in f and make sure it
// goes dark in onCancel. onCancel may be nil.
func WithCancel[I, O, T any](p Pipeline[I, O], f, onCancel func(ctx context.Context, v O, out Sender[T])) Pipeline[I, T] {
	return appendStage[I, O, T](p, "with_cancel", func(ctx context.Context, in *Receiver[O], out Sender[T], env stageEnv) {
		g := task.NewGroupFrom(task.NewTokenFrom(ctx), task.WithName(env.label), task.WithObserver(env.obs))

		for v := range in.All(ctx) {
			var cleanup func(context.Context)
			if onCancel != nil {
				cleanup = func(cctx context.Context) {
					guard(env, func() { onCancel(cctx, v, out) })
				}
			}
			g.Go(func(tctx context.Context) {
				guard(env, func() { f(tctx, v, out) })
			}, cleanup)
		}

		g.Cancel()
		_ = g.Wait(context.WithoutCancel(ctx))
	})
}

// Chain runs inner as a nested graph inside one stage of outer. Values
// entering the stage go into inner's inlet and everything leaving inner is
// relayed to the stage output. Closing or cancelling the outer graph shuts
// the inner graph down.
func Chain[I, O, T any](outer Pipeline[I, O], inner Pipeline[O, T]) Pipeline[I, T] {
	return appendStage[I, O, T](outer, "chain", func(ctx context.Context, in *Receiver[O], out Sender[T], env stageEnv) {
		g := inner.SpawnGraph(ctx,
			WithName(env.label),
			WithObserver(env.obs),
			WithQueueDepth(env.depth),
		)

		relayed := make(chan struct{})
		go func() {
			defer close(relayed)
			defer g.Out().Close()
			for v := range g.Out().All(ctx) {
				_ = out.Send(ctx, v)
			}
		}()

		for v := range in.All(ctx) {
			if g.In().Send(ctx, v) != nil && ctx.Err() != nil {
				break
			}
		}
		g.In().Close()
		<-relayed
		_ = g.Wait(context.WithoutCancel(ctx))
	})
}

// guard runs fn and turns a panic into an observer report. Contract
// violations are not recovered.
func guard(env stageEnv, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*ContractError); ok {
				panic(ce)
			}
			env.obs.StageExited(env.label, &telemetry.PanicError{Value: r, Stack: debug.Stack()})
		}
	}()
	fn()
}
