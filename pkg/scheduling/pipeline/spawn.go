package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// QueueDepth is the capacity of every stage boundary unless WithQueueDepth
// overrides it.
const QueueDepth = 16

// Option configures one spawn.
type Option func(*spawnConfig)

type spawnConfig struct {
	name     string
	depth    int
	observer telemetry.Observer
}

// WithName prefixes stage labels reported to the observer.
func WithName(name string) Option {
	return func(c *spawnConfig) { c.name = name }
}

// WithQueueDepth sets the capacity of each stage boundary. Negative values
// are ignored; zero makes every boundary a rendezvous.
func WithQueueDepth(n int) Option {
	return func(c *spawnConfig) {
		if n >= 0 {
			c.depth = n
		}
	}
}

// WithObserver sets where drops, stage exits and panics are reported.
// Defaults to telemetry.Default().
func WithObserver(obs telemetry.Observer) Option {
	return func(c *spawnConfig) { c.observer = obs }
}

// Graph is one live instance of a Pipeline.
type Graph[I, O any] struct {
	in      *Inlet[I]
	out     *Receiver[O]
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Int32
}

// Spawn materializes p: one bounded queue per stage boundary and one
// goroutine per stage. It returns the entry and exit of the graph.
//
// Closing the inlet drains and stops every stage in order. Cancelling ctx
// stops them without draining.
func (p Pipeline[I, O]) Spawn(ctx context.Context, opts ...Option) (*Inlet[I], *Receiver[O]) {
	g := p.SpawnGraph(ctx, opts...)
	return g.In(), g.Out()
}

// SpawnGraph is Spawn returning a handle that can also cancel the graph and
// wait for its goroutines.
func (p Pipeline[I, O]) SpawnGraph(ctx context.Context, opts ...Option) *Graph[I, O] {
	cfg := spawnConfig{depth: QueueDepth}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.observer = telemetry.OrDefault(cfg.observer)

	gctx, cancel := context.WithCancel(ctx)
	ports := make([]*port, len(p.stages)+1)
	for i := range ports {
		ports[i] = newPort(cfg.depth)
	}

	g := &Graph[I, O]{
		in:     newInlet[I](ports[0], cfg.label("inlet"), cfg.observer),
		out:    &Receiver[O]{p: ports[len(ports)-1]},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if len(p.stages) == 0 {
		g.finish()
		return g
	}

	g.running.Store(int32(len(p.stages)))
	for i, st := range p.stages {
		env := stageEnv{
			label: cfg.label(fmt.Sprintf("%s[%d]", st.Name(), i)),
			obs:   cfg.observer,
			depth: cfg.depth,
		}
		go g.runStage(gctx, st, ports[i], ports[i+1], env)
	}
	return g
}

func (c spawnConfig) label(s string) string {
	if c.name == "" {
		return s
	}
	return c.name + "/" + s
}

func (g *Graph[I, O]) runStage(ctx context.Context, st Stage, in, out *port, env stageEnv) {
	defer func() {
		if g.running.Add(-1) == 0 {
			g.finish()
		}
	}()
	defer close(out.ch)
	defer in.drop()

	err := invoke(ctx, st, in, out, env)
	env.obs.StageExited(env.label, err)
}

func invoke(ctx context.Context, st Stage, in, out *port, env stageEnv) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*ContractError); ok {
				panic(ce)
			}
			err = &telemetry.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	st.run(ctx, in, out, env)
	return ctx.Err()
}

func (g *Graph[I, O]) finish() {
	g.cancel()
	close(g.done)
}

// In returns the graph entry.
func (g *Graph[I, O]) In() *Inlet[I] {
	return g.in
}

// Out returns the graph exit.
func (g *Graph[I, O]) Out() *Receiver[O] {
	return g.out
}

// Cancel stops every stage without draining. Values still queued are lost.
func (g *Graph[I, O]) Cancel() {
	g.cancel()
}

// Done is closed once every stage goroutine has exited.
func (g *Graph[I, O]) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until every stage goroutine has exited or ctx ends.
func (g *Graph[I, O]) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
