package effect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
	"github.com/vnykmshr/stagebridge/pkg/metrics"
	"github.com/vnykmshr/stagebridge/pkg/scheduling/task"
	"github.com/vnykmshr/stagebridge/pkg/streaming/broadcast"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// ErrStopped is returned by Switch after Stop.
var ErrStopped = errors.New("effect: switcher stopped")

// Generation identifies one activation of a Switcher. It grows by one on
// every switch.
type Generation uint64

// Effect starts an effect. It spawns its work on g and returns; g's token is
// cancelled when the effect is replaced. Outputs should carry gen so a
// GenerationGate can drop those that arrive after the switch.
type Effect func(g *task.Group, gen Generation)

// Option configures a Switcher.
type Option func(*Switcher)

// WithName labels the switcher in telemetry and metrics. Defaults to
// "effect".
func WithName(name string) Option {
	return func(s *Switcher) { s.name = name }
}

// WithObserver sets where effect task cancellations are reported.
func WithObserver(obs telemetry.Observer) Option {
	return func(s *Switcher) { s.obs = obs }
}

// WithMetrics records switches, switch latency and stale writes in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Switcher) { s.metrics = reg }
}

// Switcher runs at most one effect at a time. Switching cancels the running
// effect and waits for its cleanups before the next one starts, so the
// outgoing effect's undo never lands on top of the new effect.
type Switcher struct {
	name    string
	obs     telemetry.Observer
	metrics *metrics.Registry

	mu      sync.Mutex // serializes Switch and Stop
	active  *task.Group
	stopped bool
	gen     atomic.Uint64
}

// NewSwitcher creates an idle switcher at generation zero.
func NewSwitcher(opts ...Option) *Switcher {
	s := &Switcher{name: "effect"}
	for _, opt := range opts {
		opt(s)
	}
	s.obs = telemetry.OrDefault(s.obs)
	return s
}

// Switch replaces the running effect with e and returns e's generation.
//
// If the outgoing effect's cleanups do not finish before ctx ends, Switch
// returns the context error and e is not started; the outgoing effect stays
// cancelled and the next Switch waits for it again.
func (s *Switcher) Switch(ctx context.Context, e Effect) (Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, ErrStopped
	}

	start := time.Now()
	if err := s.retire(ctx); err != nil {
		return 0, sberrors.NewOperationError(s.name, "switch", err)
	}

	// The generation moves only after the outgoing cleanups ran, so their
	// writes still pass the gate.
	gen := Generation(s.gen.Add(1))
	g := task.NewGroup(
		task.WithName(s.name),
		task.WithObserver(s.obs),
		task.WithMetrics(s.metrics),
	)
	e(g, gen)
	s.active = g

	if s.metrics != nil {
		s.metrics.EffectSwitches.WithLabelValues(s.name).Inc()
		s.metrics.EffectSwitchDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	}
	return gen, nil
}

// Stop cancels the running effect, waits for its cleanups and refuses
// further switches. Stop is idempotent.
func (s *Switcher) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if err := s.retire(ctx); err != nil {
		return err
	}
	s.gen.Add(1)
	return nil
}

// retire must be called with mu held.
func (s *Switcher) retire(ctx context.Context) error {
	if s.active == nil {
		return nil
	}
	s.active.Cancel()
	if err := s.active.Wait(ctx); err != nil {
		return err
	}
	s.active = nil
	return nil
}

// Generation returns the generation of the running effect.
func (s *Switcher) Generation() Generation {
	return Generation(s.gen.Load())
}

// Current reports whether gen is still the running generation.
func (s *Switcher) Current(gen Generation) bool {
	return s.Generation() == gen
}

// Follow switches effects as modes arrive on src: choose maps each mode to
// its effect. Modes are applied one at a time in arrival order. The returned
// token stops following; it does not stop the running effect.
func Follow[M any](src broadcast.Source[M], s *Switcher, choose func(M) Effect) *task.Token {
	sub := src.Subscribe()
	tok := task.NewToken()

	task.SpawnWithCleanupFrom(tok, func(ctx context.Context) {
		defer sub.Close()
		for {
			m, err := sub.Recv(ctx)
			var lagged *broadcast.LaggedError
			switch {
			case errors.As(err, &lagged):
				s.obs.Lagged(s.name, lagged.Skipped)
				continue
			case err != nil:
				return
			}
			if _, err := s.Switch(ctx, choose(m)); errors.Is(err, ErrStopped) {
				return
			}
		}
	}, func(context.Context) { sub.Close() }, task.WithName(s.name+"/follow"), task.WithObserver(s.obs))

	return tok
}
