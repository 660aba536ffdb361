/*
Package stagebridge is an event-dataflow core for real-time control bridges:
software that sits between control surfaces (pad grids, fader banks) and
output devices (lighting fixtures, LED rings) and turns one stream of events
into another.

Dataflow (pkg/scheduling, pkg/streaming):
  - pipeline: typed multi-stage pipelines, one goroutine per stage
  - task: cancellation tokens, tasks with cleanup, task groups
  - cue: cron-scheduled show cues
  - broadcast: lossy fan-out with Listen and ListenOnce
  - bridge: feed a source through a pipeline into a sink

Show control (pkg/show):
  - state: a serialized state holder that publishes every change
  - effect: exclusive effect switching with generation-gated output

Devices and transport:
  - device: reader and writer goroutines around a byte-level port
  - transport/redisbus: control events over Redis pub/sub
  - ratelimit/bucket: frame pacing for device output

Observability:
  - telemetry: the Observer interface and its zerolog and Prometheus adapters
  - metrics: the Prometheus registry shared by all packages

Example usage:

	import (
		"github.com/vnykmshr/stagebridge/pkg/scheduling/pipeline"
		"github.com/vnykmshr/stagebridge/pkg/streaming/bridge"
	)

	levels := pipeline.Map(pipeline.New[Note](), toLevel)
	err := bridge.Run(ctx, pads, levels, lights)
*/
package stagebridge
