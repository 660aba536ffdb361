package effect

import (
	"context"
	"errors"

	"github.com/vnykmshr/stagebridge/pkg/streaming/bridge"
)

// ErrStale is returned for a write stamped with a generation that is no
// longer running.
var ErrStale = errors.New("effect: stale generation")

// Stamped is an output tagged with the generation that produced it.
type Stamped[T any] struct {
	Gen   Generation
	Value T
}

// Stamp tags v with gen.
func Stamp[T any](gen Generation, v T) Stamped[T] {
	return Stamped[T]{Gen: gen, Value: v}
}

// GenerationGate forwards stamped writes to a sink only while their
// generation is the switcher's current one. It catches writes from work that
// outlived its effect, such as a handler that was mid-flight when the switch
// happened.
type GenerationGate[T any] struct {
	s    *Switcher
	sink bridge.Sink[T]
}

// NewGate creates a gate in front of sink following s.
func NewGate[T any](s *Switcher, sink bridge.Sink[T]) *GenerationGate[T] {
	return &GenerationGate[T]{s: s, sink: sink}
}

// Write forwards v.Value, or returns ErrStale without touching the sink.
func (g *GenerationGate[T]) Write(ctx context.Context, v Stamped[T]) error {
	if !g.s.Current(v.Gen) {
		if g.s.metrics != nil {
			g.s.metrics.EffectStaleWrites.WithLabelValues(g.s.name).Inc()
		}
		return ErrStale
	}
	return g.sink.Write(ctx, v.Value)
}

var _ bridge.Sink[Stamped[int]] = (*GenerationGate[int])(nil)
