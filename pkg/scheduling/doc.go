/*
Package scheduling groups the execution primitives of stagebridge.

  - task: cancellation tokens, tasks whose cleanup runs only when they are
    cancelled, and groups that cancel together
  - pipeline: typed pipelines built from combinators and spawned as one
    goroutine per stage joined by bounded channels
  - cue: named cron expressions that publish cue events

A pipeline is a plain value. Building one has no side effects; Spawn
materializes it:

	p := pipeline.Map(pipeline.New[int]().Filter(isEven), double)
	in, out := p.Spawn(ctx)
	defer in.Close()

	_ = in.Send(ctx, 2)
	v, _ := out.Recv(ctx) // 4

Tasks tie cleanup to cancellation:

	t := task.SpawnWithCleanup(run, func(ctx context.Context) {
		_ = lights.Send(ctx, blackout)
	})
	t.Cancel()
*/
package scheduling
