/*
Package bridge connects an event source to a protocol sink through a
pipeline.

	err := bridge.Run(ctx, keys, pipeline.Map(pipeline.New[Note](), toDMX), dmx)

Run subscribes, spawns the pipeline and writes every result to the sink until
the source closes or ctx ends. Spawn does the same on a task.
*/
package bridge
