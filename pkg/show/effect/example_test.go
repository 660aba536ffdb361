package effect_test

import (
	"context"
	"fmt"

	"github.com/vnykmshr/stagebridge/pkg/scheduling/task"
	"github.com/vnykmshr/stagebridge/pkg/show/effect"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

func ExampleSwitcher() {
	s := effect.NewSwitcher(effect.WithObserver(telemetry.Nop{}))
	ctx := context.Background()

	fixture := func(name string) effect.Effect {
		return func(g *task.Group, gen effect.Generation) {
			fmt.Printf("%s on (gen %d)\n", name, gen)
			g.Go(func(ctx context.Context) {
				<-ctx.Done()
			}, func(context.Context) {
				fmt.Printf("%s off\n", name)
			})
		}
	}

	_, _ = s.Switch(ctx, fixture("par"))
	_, _ = s.Switch(ctx, fixture("strobe"))
	_ = s.Stop(ctx)

	// Output:
	// par on (gen 1)
	// par off
	// strobe on (gen 2)
	// strobe off
}
