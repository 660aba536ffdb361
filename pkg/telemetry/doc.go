// Package telemetry carries the logging and metrics side of stagebridge.
//
// The dataflow core never writes logs itself. Pipelines, broadcast listeners
// and task groups report lag, dropped values, stage exits and cancellations to
// an Observer passed in through their options. Default returns an Observer
// that logs through zerolog at warn level, NewMetricsObserver records the
// same events in a metrics.Registry, and Multi combines several.
//
//	log := telemetry.Logger(telemetry.LogConfig{Level: "debug", Format: telemetry.FormatJSON})
//	obs := telemetry.Multi(telemetry.NewLogObserver(log), telemetry.NewMetricsObserver(reg))
package telemetry
