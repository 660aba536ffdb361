package pipeline

import (
	"context"

	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// Stage is one step of a Pipeline. Stages are immutable once built and are
// shared by every graph spawned from a pipeline. They are created only by the
// combinators of this package.
type Stage interface {
	// Name describes the kind of stage, e.g. "map" or "with_cancel".
	Name() string

	run(ctx context.Context, in, out *port, env stageEnv)
}

// stageEnv is what a running stage knows about its graph.
type stageEnv struct {
	label string
	obs   telemetry.Observer
	depth int
}

type stageFunc struct {
	name string
	fn   func(ctx context.Context, in, out *port, env stageEnv)
}

func (s *stageFunc) Name() string {
	return s.name
}

func (s *stageFunc) run(ctx context.Context, in, out *port, env stageEnv) {
	s.fn(ctx, in, out, env)
}

// typedStage adapts a typed stage body to the erased port pair.
func typedStage[O, T any](name string, body func(ctx context.Context, in *Receiver[O], out Sender[T], env stageEnv)) Stage {
	return &stageFunc{
		name: name,
		fn: func(ctx context.Context, in, out *port, env stageEnv) {
			body(ctx, &Receiver[O]{p: in}, Sender[T]{p: out, label: env.label, obs: env.obs}, env)
		},
	}
}
