package broadcast

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/vnykmshr/stagebridge/pkg/scheduling/task"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// Option configures Listen and ListenOnce.
type Option func(*listenConfig)

type listenConfig struct {
	name     string
	observer telemetry.Observer
	token    *task.Token
}

// WithName labels the listener in telemetry. Defaults to "listen".
func WithName(name string) Option {
	return func(c *listenConfig) { c.name = name }
}

// WithObserver sets where lag and handler panics are reported.
func WithObserver(obs telemetry.Observer) Option {
	return func(c *listenConfig) { c.observer = obs }
}

// WithToken governs the listener by an existing token instead of a fresh
// one, so it stops together with other work.
func WithToken(t *task.Token) Option {
	return func(c *listenConfig) { c.token = t }
}

func buildListen(opts []Option, name string) listenConfig {
	c := listenConfig{name: name}
	for _, opt := range opts {
		opt(&c)
	}
	c.observer = telemetry.OrDefault(c.observer)
	if c.token == nil {
		c.token = task.NewToken()
	}
	return c
}

// Listen subscribes to src and calls f on its own goroutine for every event,
// so handlers overlap each other and the next receive. Lag is reported and
// skipped; the loop ends when src closes or the returned token is cancelled.
// Cancelling does not stop handlers already running, and their context is
// never cancelled by the listener.
func Listen[T any](src Source[T], f func(ctx context.Context, v T), opts ...Option) *task.Token {
	cfg := buildListen(opts, "listen")
	sub := src.Subscribe()

	task.SpawnWithCleanupFrom(cfg.token, func(ctx context.Context) {
		defer sub.Close()
		hctx := context.WithoutCancel(ctx)
		for {
			v, ok := receive(ctx, sub, cfg)
			if !ok {
				return
			}
			go cfg.invoke(func() { f(hctx, v) })
		}
	}, closer(sub), task.WithName(cfg.name), task.WithObserver(cfg.observer))

	return cfg.token
}

// ListenOnce is Listen that stops after the first event for which pred
// returns true, calling f exactly once for it. Cancelling the token before a
// match abandons the wait and f never runs.
func ListenOnce[T any](src Source[T], pred func(T) bool, f func(ctx context.Context, v T), opts ...Option) *task.Token {
	cfg := buildListen(opts, "listen_once")
	sub := src.Subscribe()

	task.SpawnWithCleanupFrom(cfg.token, func(ctx context.Context) {
		defer sub.Close()
		for {
			v, ok := receive(ctx, sub, cfg)
			if !ok {
				return
			}
			if pred(v) {
				hctx := context.WithoutCancel(ctx)
				go cfg.invoke(func() { f(hctx, v) })
				return
			}
		}
	}, closer(sub), task.WithName(cfg.name), task.WithObserver(cfg.observer))

	return cfg.token
}

// receive returns the next event, reporting and skipping lag. It returns
// false once the subscription is closed or ctx ends.
func receive[T any](ctx context.Context, sub Subscription[T], cfg listenConfig) (T, bool) {
	for {
		v, err := sub.Recv(ctx)
		if err == nil {
			return v, true
		}
		var lagged *LaggedError
		if errors.As(err, &lagged) {
			cfg.observer.Lagged(cfg.name, lagged.Skipped)
			continue
		}
		return v, false
	}
}

// closer covers a listener whose token was cancelled before it started.
func closer[T any](sub Subscription[T]) func(context.Context) {
	return func(context.Context) { sub.Close() }
}

func (c listenConfig) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.observer.StageExited(c.name, &telemetry.PanicError{Value: r, Stack: debug.Stack()})
		}
	}()
	fn()
}
