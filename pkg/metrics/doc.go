// Package metrics provides Prometheus instrumentation for stagebridge components.
//
// # Overview
//
// A Registry groups every collector the bridge records:
//   - Pipeline stages (exits by reason, values dropped after a receiver left)
//   - Broadcast channels (events sent, events skipped by lagging subscribers,
//     open subscriptions)
//   - Cancellation-scoped tasks (active, cancelled)
//   - Show control (effect switches and how long the previous effect took to
//     unwind, stale writes rejected by a generation gate, cron cues fired)
//   - Devices and the Redis bus (bytes, throttled frames, messages)
//
// # Quick Start
//
// Most components accept a *Registry in their Config; nil disables recording.
// The pipeline and broadcast core report through telemetry.Observer instead,
// and telemetry.NewMetricsObserver adapts a Registry to that interface:
//
//	reg := metrics.NewRegistry(prometheus.NewRegistry())
//	obs := telemetry.Multi(telemetry.Default(), telemetry.NewMetricsObserver(reg))
//	in, out := p.Spawn(ctx, pipeline.WithObserver(obs))
//
// Expose the registry via HTTP with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # Custom Registry
//
// Use Config to choose the registerer, namespace and constant labels:
//
//	reg := metrics.Config{
//		Enabled:   true,
//		Registry:  prometheus.NewRegistry(),
//		Namespace: "club",
//		Labels:    prometheus.Labels{"rig": "main"},
//	}.Build()
//
// # Available Metrics
//
//   - stagebridge_pipeline_stage_exits_total{stage,reason}
//   - stagebridge_pipeline_dropped_total{component}
//   - stagebridge_broadcast_sent_total{channel}
//   - stagebridge_broadcast_lagged_events_total{component}
//   - stagebridge_broadcast_subscribers{channel}
//   - stagebridge_task_active{component}
//   - stagebridge_task_cancelled_total{component}
//   - stagebridge_effect_switches_total{switcher}
//   - stagebridge_effect_switch_duration_seconds{switcher}
//   - stagebridge_effect_stale_writes_total{switcher}
//   - stagebridge_cue_fired_total{cue}
//   - stagebridge_device_bytes_total{device,direction}
//   - stagebridge_device_throttled_total{device}
//   - stagebridge_device_decode_miss_total{device}
//   - stagebridge_bus_messages_total{channel,direction}
package metrics
