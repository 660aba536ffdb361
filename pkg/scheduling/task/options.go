package task

import (
	"github.com/vnykmshr/stagebridge/pkg/metrics"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// Option configures a spawned task or a Group.
type Option func(*options)

type options struct {
	name     string
	observer telemetry.Observer
	metrics  *metrics.Registry
}

func buildOptions(opts []Option) options {
	o := options{name: "task"}
	for _, opt := range opts {
		opt(&o)
	}
	o.observer = telemetry.OrDefault(o.observer)
	return o
}

// WithName labels the task in telemetry. Defaults to "task".
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithObserver sets where cancellations are reported.
func WithObserver(obs telemetry.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithMetrics tracks the task in the active-task gauge of reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *options) { o.metrics = reg }
}
