package pipeline

import (
	"context"
	"fmt"
	"iter"
	"sync"

	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

var (
	// ErrReceiverGone is returned by Send when nothing will ever read the value.
	ErrReceiverGone = fmt.Errorf("pipeline: receiver gone: %w", sberrors.ErrClosed)

	// ErrInletClosed is returned by Inlet.Send after Close.
	ErrInletClosed = fmt.Errorf("pipeline: inlet closed: %w", sberrors.ErrClosed)
)

// port is one bounded queue between two stages. Only the writing side closes
// ch; the reading side closes gone when it stops reading.
type port struct {
	ch   chan Item
	gone chan struct{}
	once sync.Once
}

func newPort(depth int) *port {
	return &port{ch: make(chan Item, depth), gone: make(chan struct{})}
}

func (p *port) drop() {
	p.once.Do(func() { close(p.gone) })
}

// Sender is the typed writing end a stage receives for its output.
// It must not be used after the stage function returns.
type Sender[T any] struct {
	p     *port
	label string
	obs   telemetry.Observer
}

// Send blocks until v is queued, the receiving stage is gone, or ctx ends.
// A value refused because the receiver is gone is reported to the observer
// and ErrReceiverGone is returned; callers may ignore it.
func (s Sender[T]) Send(ctx context.Context, v T) error {
	select {
	case <-s.p.gone:
		return s.dropped()
	default:
	}

	select {
	case s.p.ch <- Wrap(v):
		return nil
	case <-s.p.gone:
		return s.dropped()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s Sender[T]) dropped() error {
	s.obs.Dropped(s.label, ErrReceiverGone)
	return ErrReceiverGone
}

// Receiver is the typed reading end of a stage boundary.
type Receiver[T any] struct {
	p *port
}

// Recv returns the next value. ok is false once the upstream side has closed
// and drained, or when ctx ends.
func (r *Receiver[T]) Recv(ctx context.Context) (v T, ok bool) {
	select {
	case it, open := <-r.p.ch:
		if !open {
			return v, false
		}
		return Unwrap[T](it), true
	case <-ctx.Done():
		return v, false
	}
}

// All yields values until Recv reports false.
func (r *Receiver[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok := r.Recv(ctx)
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// Close tells the writing side that no more values will be read. Pending and
// future sends fail with ErrReceiverGone. Close is idempotent.
func (r *Receiver[T]) Close() {
	r.p.drop()
}

// Inlet is the entry of a live graph. It is safe for concurrent use.
type Inlet[T any] struct {
	out Sender[T]

	mu      sync.RWMutex
	closed  bool
	closing chan struct{}
	once    sync.Once
}

func newInlet[T any](p *port, label string, obs telemetry.Observer) *Inlet[T] {
	return &Inlet[T]{
		out:     Sender[T]{p: p, label: label, obs: obs},
		closing: make(chan struct{}),
	}
}

// Send queues v into the first stage.
func (in *Inlet[T]) Send(ctx context.Context, v T) error {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.closed {
		return ErrInletClosed
	}
	select {
	case <-in.out.p.gone:
		return in.out.dropped()
	default:
	}

	select {
	case in.out.p.ch <- Wrap(v):
		return nil
	case <-in.out.p.gone:
		return in.out.dropped()
	case <-in.closing:
		return ErrInletClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the input stream. Stages drain what is queued and exit in order.
// Close is idempotent and unblocks concurrent Sends.
func (in *Inlet[T]) Close() {
	in.once.Do(func() {
		close(in.closing)
		in.mu.Lock()
		in.closed = true
		close(in.out.p.ch)
		in.mu.Unlock()
	})
}
