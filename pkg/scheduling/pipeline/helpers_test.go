package pipeline

import (
	"context"
	"testing"

	"github.com/vnykmshr/stagebridge/internal/testutil"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// quiet keeps expected drops and panics out of the test log.
func quiet() Option {
	return WithObserver(telemetry.Nop{})
}

// run sends inputs through p, closes the inlet and returns everything the
// graph emits before it shuts down.
func run[I, O any](t *testing.T, p Pipeline[I, O], inputs ...I) []O {
	t.Helper()
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	g := p.SpawnGraph(ctx, quiet())
	go func() {
		for _, v := range inputs {
			if err := g.In().Send(ctx, v); err != nil {
				t.Errorf("send %v: %v", v, err)
				break
			}
		}
		g.In().Close()
	}()

	out := drain(ctx, g.Out())
	testutil.AssertNoError(t, g.Wait(ctx))
	return out
}

func drain[T any](ctx context.Context, rx *Receiver[T]) []T {
	var out []T
	for v := range rx.All(ctx) {
		out = append(out, v)
	}
	return out
}
