package task

import (
	"context"
	"sync/atomic"
	"time"
)

// Task is one unit of concurrent work governed by a Token.
type Task struct {
	token     *Token
	done      chan struct{}
	cancelled atomic.Bool
	opts      options
	after     func()
}

// Spawn runs fn on a new goroutine under a fresh token. Cancelling the token
// cancels the context fn receives; fn is expected to return at its next
// suspension point. No cleanup runs.
func Spawn(fn func(ctx context.Context), opts ...Option) *Task {
	return SpawnWithCleanupFrom(NewToken(), fn, nil, opts...)
}

// SpawnWithCleanup is Spawn with a compensating action. If the token is
// cancelled before fn completes, onCancel runs to completion after fn has
// returned and before the task is done. If fn completes first, onCancel never
// runs.
func SpawnWithCleanup(fn, onCancel func(ctx context.Context), opts ...Option) *Task {
	return SpawnWithCleanupFrom(NewToken(), fn, onCancel, opts...)
}

// SpawnFrom is Spawn governed by a caller-supplied token, so one token can
// stop many tasks.
func SpawnFrom(token *Token, fn func(ctx context.Context), opts ...Option) *Task {
	return SpawnWithCleanupFrom(token, fn, nil, opts...)
}

// SpawnWithCleanupFrom is SpawnWithCleanup governed by token.
//
// onCancel receives a context carrying the token's values that is never
// cancelled, so it can still send on channels that honour ctx. A token
// cancelled before the task starts skips fn and runs only onCancel.
func SpawnWithCleanupFrom(token *Token, fn, onCancel func(ctx context.Context), opts ...Option) *Task {
	return spawn(token, fn, onCancel, buildOptions(opts), nil)
}

func spawn(token *Token, fn, onCancel func(ctx context.Context), o options, after func()) *Task {
	t := &Task{
		token: token,
		done:  make(chan struct{}),
		opts:  o,
		after: after,
	}
	t.begin()
	go t.run(fn, onCancel)
	return t
}

// SpawnInterval calls fn, waits period, and repeats until the token is
// cancelled. It drives time-based effects such as chases and strobes.
func SpawnInterval(fn func(ctx context.Context), period time.Duration, opts ...Option) *Task {
	return SpawnIntervalFrom(NewToken(), fn, period, opts...)
}

// SpawnIntervalFrom is SpawnInterval governed by token.
func SpawnIntervalFrom(token *Token, fn func(ctx context.Context), period time.Duration, opts ...Option) *Task {
	return SpawnFrom(token, func(ctx context.Context) {
		for {
			fn(ctx)
			if ctx.Err() != nil {
				return
			}
			timer := time.NewTimer(period)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}, opts...)
}

func (t *Task) run(fn, onCancel func(ctx context.Context)) {
	defer t.end()

	ctx := t.token.Context()
	if !t.token.IsCancelled() {
		fn(ctx)
		if !t.token.IsCancelled() {
			return
		}
	}

	t.cancelled.Store(true)
	if onCancel != nil {
		onCancel(context.WithoutCancel(ctx))
	}
	t.opts.observer.TaskCancelled(t.opts.name)
}

func (t *Task) begin() {
	if t.opts.metrics != nil {
		t.opts.metrics.TasksActive.WithLabelValues(t.opts.name).Inc()
	}
}

func (t *Task) end() {
	if t.opts.metrics != nil {
		t.opts.metrics.TasksActive.WithLabelValues(t.opts.name).Dec()
	}
	if t.after != nil {
		t.after()
	}
	close(t.done)
}

// Token returns the token governing t.
func (t *Task) Token() *Token {
	return t.token
}

// Cancel cancels the governing token. Other tasks sharing it are cancelled too.
func (t *Task) Cancel() {
	t.token.Cancel()
}

// Done is closed after fn and any cleanup have returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task is done or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancelled reports whether the task ended through the cancellation path.
// It is only meaningful after Done is closed.
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}
