package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/vnykmshr/stagebridge/pkg/scheduling/pipeline"
	"github.com/vnykmshr/stagebridge/pkg/scheduling/task"
	"github.com/vnykmshr/stagebridge/pkg/streaming/broadcast"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// Sink consumes the output of a bridged pipeline, typically by writing a
// protocol message to a device.
type Sink[O any] interface {
	Write(ctx context.Context, v O) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc[O any] func(ctx context.Context, v O) error

// Write calls f.
func (f SinkFunc[O]) Write(ctx context.Context, v O) error {
	return f(ctx, v)
}

// Option configures a bridge.
type Option func(*config)

type config struct {
	name     string
	depth    int
	observer telemetry.Observer
}

// WithName labels the bridge and its pipeline stages. Defaults to "bridge".
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithQueueDepth sets the pipeline's stage boundary capacity.
func WithQueueDepth(n int) Option {
	return func(c *config) { c.depth = n }
}

// WithObserver sets where lag, sink failures and stage exits are reported.
func WithObserver(obs telemetry.Observer) Option {
	return func(c *config) { c.observer = obs }
}

func buildConfig(opts []Option) config {
	c := config{name: "bridge", depth: pipeline.QueueDepth}
	for _, opt := range opts {
		opt(&c)
	}
	c.observer = telemetry.OrDefault(c.observer)
	return c
}

// Run subscribes to src, feeds every event through a fresh instance of p and
// writes each result to sink. It returns nil once src closes and everything
// in flight has reached the sink, or ctx.Err() if ctx ends first.
//
// Lag on the subscription is reported and skipped. A failed sink write is
// reported as a drop and the bridge carries on with the next value.
func Run[E, O any](ctx context.Context, src broadcast.Source[E], p pipeline.Pipeline[E, O], sink Sink[O], opts ...Option) error {
	cfg := buildConfig(opts)

	sub := src.Subscribe()
	g := p.SpawnGraph(ctx,
		pipeline.WithName(cfg.name),
		pipeline.WithQueueDepth(cfg.depth),
		pipeline.WithObserver(cfg.observer),
	)

	fctx, stopFeed := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer sub.Close()
		feed(fctx, sub, g.In(), cfg)
	}()

	out := g.Out()
	for v := range out.All(ctx) {
		if err := sink.Write(ctx, v); err != nil {
			cfg.observer.Dropped(cfg.name+"/sink", err)
		}
	}

	// The graph may end on its own when a stage fails.
	stopFeed()
	out.Close()
	wg.Wait()
	_ = g.Wait(context.WithoutCancel(ctx))
	return ctx.Err()
}

func feed[E any](ctx context.Context, sub broadcast.Subscription[E], in *pipeline.Inlet[E], cfg config) {
	defer in.Close()
	for {
		v, err := sub.Recv(ctx)
		if err != nil {
			var lagged *broadcast.LaggedError
			if errors.As(err, &lagged) {
				cfg.observer.Lagged(cfg.name, lagged.Skipped)
				continue
			}
			return
		}
		if in.Send(ctx, v) != nil {
			return
		}
	}
}

// Spawn runs the bridge on its own task. Cancelling the task stops it
// without draining.
func Spawn[E, O any](src broadcast.Source[E], p pipeline.Pipeline[E, O], sink Sink[O], opts ...Option) *task.Task {
	cfg := buildConfig(opts)
	return task.Spawn(func(ctx context.Context) {
		_ = Run(ctx, src, p, sink, opts...)
	}, task.WithName(cfg.name), task.WithObserver(cfg.observer))
}
