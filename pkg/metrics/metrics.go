// Package metrics provides Prometheus instrumentation for stagebridge components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for stagebridge components.
type Registry struct {
	// Pipeline Metrics
	StageExits *prometheus.CounterVec
	SendDrops  *prometheus.CounterVec

	// Broadcast Metrics
	BroadcastSent        *prometheus.CounterVec
	BroadcastLagged      *prometheus.CounterVec
	BroadcastSubscribers *prometheus.GaugeVec

	// Task Metrics
	TasksActive    *prometheus.GaugeVec
	TasksCancelled *prometheus.CounterVec

	// Show Metrics
	EffectSwitches       *prometheus.CounterVec
	EffectSwitchDuration *prometheus.HistogramVec
	EffectStaleWrites    *prometheus.CounterVec
	CuesFired            *prometheus.CounterVec

	// Device and Transport Metrics
	DeviceBytes      *prometheus.CounterVec
	DeviceThrottled  *prometheus.CounterVec
	DeviceDecodeMiss *prometheus.CounterVec
	BusMessages      *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns a Registry bound to prometheus.DefaultRegisterer. It is
// created on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	cfg := DefaultConfig()
	cfg.Registry = reg
	return NewRegistryWithConfig(cfg)
}

// NewRegistryWithConfig creates a registry honoring the namespace and constant
// labels of cfg.
func NewRegistryWithConfig(cfg Config) *Registry {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	f := factory{promauto.With(cfg.Registry), cfg.Namespace, cfg.Labels}

	return &Registry{
		StageExits: f.counter("pipeline", "stage_exits_total",
			"Stage goroutines that exited, by reason", "stage", "reason"),
		SendDrops: f.counter("pipeline", "dropped_total",
			"Values discarded because the receiving side was gone", "component"),

		BroadcastSent: f.counter("broadcast", "sent_total",
			"Events published on a broadcast channel", "channel"),
		BroadcastLagged: f.counter("broadcast", "lagged_events_total",
			"Events skipped by subscribers that fell behind", "component"),
		BroadcastSubscribers: f.gauge("broadcast", "subscribers",
			"Currently open subscriptions", "channel"),

		TasksActive: f.gauge("task", "active",
			"Tasks currently running", "component"),
		TasksCancelled: f.counter("task", "cancelled_total",
			"Tasks whose cleanup path ran after cancellation", "component"),

		EffectSwitches: f.counter("effect", "switches_total",
			"Effect activations", "switcher"),
		EffectSwitchDuration: f.histogram("effect", "switch_duration_seconds",
			"Time spent waiting for the previous effect to unwind", "switcher"),
		EffectStaleWrites: f.counter("effect", "stale_writes_total",
			"Outputs dropped because their generation was superseded", "switcher"),
		CuesFired: f.counter("cue", "fired_total",
			"Scheduled cues that fired", "cue"),

		DeviceBytes: f.counter("device", "bytes_total",
			"Raw bytes moved through a device port", "device", "direction"),
		DeviceThrottled: f.counter("device", "throttled_total",
			"Output frames delayed by the frame rate limit", "device"),
		DeviceDecodeMiss: f.counter("device", "decode_miss_total",
			"Input reads the driver did not turn into an event", "device"),
		BusMessages: f.counter("bus", "messages_total",
			"Messages moved over the Redis bus", "channel", "direction"),
	}
}

type factory struct {
	auto      promauto.Factory
	namespace string
	labels    prometheus.Labels
}

func (f factory) counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return f.auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   f.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: f.labels,
	}, labels)
}

func (f factory) gauge(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return f.auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   f.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: f.labels,
	}, labels)
}

func (f factory) histogram(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
	return f.auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   f.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: f.labels,
		Buckets:     []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, labels)
}
