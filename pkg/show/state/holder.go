package state

import (
	"context"
	"fmt"

	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
	"github.com/vnykmshr/stagebridge/pkg/scheduling/task"
	"github.com/vnykmshr/stagebridge/pkg/streaming/broadcast"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// Default sizes.
const (
	DefaultQueueSize = 16
	DefaultCapacity  = 16
)

// ErrClosed is returned by Send and Get after Close.
var ErrClosed = fmt.Errorf("state: holder closed: %w", sberrors.ErrClosed)

// Reducer applies a command to the current state. It reports whether the
// result should be published; commands that change nothing can return false.
type Reducer[S, C any] func(s S, cmd C) (S, bool)

// Option configures a Holder.
type Option func(*config)

type config struct {
	name      string
	queueSize int
	capacity  int
	observer  telemetry.Observer
}

// WithName labels the holder's task. Defaults to "state".
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithQueueSize sets how many commands may wait before Send blocks.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithCapacity sets the snapshot broadcast capacity.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithObserver sets where the holder's shutdown is reported.
func WithObserver(obs telemetry.Observer) Option {
	return func(c *config) { c.observer = obs }
}

type message[S, C any] struct {
	cmd   C
	reply chan S // set for Get
}

// Holder owns a state value on a single goroutine. Commands are applied in
// the order they are sent, and every published state is broadcast to
// subscribers.
type Holder[S, C any] struct {
	msgs chan message[S, C]
	out  *broadcast.Channel[S]
	task *task.Task
}

// Spawn starts a holder at initial.
func Spawn[S, C any](initial S, reduce Reducer[S, C], opts ...Option) *Holder[S, C] {
	cfg := config{name: "state", queueSize: DefaultQueueSize, capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.observer = telemetry.OrDefault(cfg.observer)

	h := &Holder[S, C]{
		msgs: make(chan message[S, C], cfg.queueSize),
		out:  broadcast.New[S](cfg.capacity),
	}
	h.task = task.SpawnWithCleanup(func(ctx context.Context) {
		defer h.out.Close()
		h.loop(ctx, initial, reduce)
	}, func(context.Context) {
		h.out.Close()
	}, task.WithName(cfg.name), task.WithObserver(cfg.observer))
	return h
}

func (h *Holder[S, C]) loop(ctx context.Context, s S, reduce Reducer[S, C]) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-h.msgs:
			if m.reply != nil {
				m.reply <- s
				continue
			}
			next, publish := reduce(s, m.cmd)
			s = next
			if publish {
				_, _ = h.out.Send(s)
			}
		}
	}
}

// Send queues cmd. It blocks while the queue is full.
func (h *Holder[S, C]) Send(ctx context.Context, cmd C) error {
	return h.put(ctx, message[S, C]{cmd: cmd})
}

// Get returns the state after every command sent before it was applied.
func (h *Holder[S, C]) Get(ctx context.Context) (S, error) {
	var zero S
	reply := make(chan S, 1)
	if err := h.put(ctx, message[S, C]{reply: reply}); err != nil {
		return zero, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.task.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Holder[S, C]) put(ctx context.Context, m message[S, C]) error {
	select {
	case <-h.task.Done():
		return ErrClosed
	default:
	}
	select {
	case h.msgs <- m:
		return nil
	case <-h.task.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a cursor over published states.
func (h *Holder[S, C]) Subscribe() broadcast.Subscription[S] {
	return h.out.Subscribe()
}

// Close stops the holder and waits for it. Queued commands that were not yet
// applied are discarded, and subscribers see broadcast.ErrClosed after the
// last published state.
func (h *Holder[S, C]) Close() {
	h.task.Cancel()
	<-h.task.Done()
}

var _ broadcast.Source[int] = (*Holder[int, int])(nil)
