package pipeline

import (
	"context"
)

// Pipeline is an ordered list of stages turning I values into O values.
//
// Pipelines are values. Every combinator returns a new Pipeline with its own
// copy of the stage list, so two chains built from one prefix never see each
// other's stages. A Pipeline can be spawned any number of times.
//
// The zero value of Pipeline[T, T] is the identity pipeline. A stage-less
// pipeline whose I and O differ cannot carry values: the first Recv on its
// output panics with a *ContractError.
type Pipeline[I, O any] struct {
	stages []Stage
}

// New returns an empty pipeline that passes T values through unchanged.
func New[T any]() Pipeline[T, T] {
	return Pipeline[T, T]{}
}

// Len returns the number of stages.
func (p Pipeline[I, O]) Len() int {
	return len(p.stages)
}

// Stages returns a copy of the stage list in execution order.
func (p Pipeline[I, O]) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Filter drops values for which pred returns false. Order is preserved.
func (p Pipeline[I, O]) Filter(pred func(O) bool) Pipeline[I, O] {
	return appendStage[I, O, O](p, "filter", func(ctx context.Context, in *Receiver[O], out Sender[O], _ stageEnv) {
		for v := range in.All(ctx) {
			if pred(v) {
				_ = out.Send(ctx, v)
			}
		}
	})
}

func appendStage[I, O, T any](p Pipeline[I, O], name string, body func(ctx context.Context, in *Receiver[O], out Sender[T], env stageEnv)) Pipeline[I, T] {
	stages := make([]Stage, len(p.stages), len(p.stages)+1)
	copy(stages, p.stages)
	return Pipeline[I, T]{stages: append(stages, typedStage(name, body))}
}
