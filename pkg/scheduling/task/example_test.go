package task_test

import (
	"context"
	"fmt"

	"github.com/vnykmshr/stagebridge/pkg/scheduling/task"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

func ExampleSpawnWithCleanup() {
	on := make(chan struct{})
	t := task.SpawnWithCleanup(
		func(ctx context.Context) {
			fmt.Println("light on")
			close(on)
			<-ctx.Done()
		},
		func(ctx context.Context) {
			fmt.Println("light off")
		},
		task.WithObserver(telemetry.Nop{}),
	)

	<-on
	t.Cancel()
	<-t.Done()
	fmt.Println("cancelled:", t.Cancelled())

	// Output:
	// light on
	// light off
	// cancelled: true
}

func ExampleGroup() {
	g := task.NewGroup(task.WithObserver(telemetry.Nop{}))
	ready := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		g.Go(
			func(ctx context.Context) { ready <- struct{}{}; <-ctx.Done() },
			func(ctx context.Context) { fmt.Println("blackout") },
		)
	}
	<-ready
	<-ready

	g.Cancel()
	_ = g.Wait(context.Background())
	fmt.Println("active:", g.Active())

	// Output:
	// blackout
	// blackout
	// active: 0
}
