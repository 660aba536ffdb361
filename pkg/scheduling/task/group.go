package task

import (
	"context"
	"sync"
)

// Group runs many tasks under one token and can wait for all of them,
// cleanups included, to finish.
type Group struct {
	token *Token
	opts  options

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewGroup creates a group with a fresh token.
func NewGroup(opts ...Option) *Group {
	return NewGroupFrom(NewToken(), opts...)
}

// NewGroupFrom creates a group governed by token.
func NewGroupFrom(token *Token, opts ...Option) *Group {
	idle := make(chan struct{})
	close(idle)
	return &Group{token: token, opts: buildOptions(opts), idle: idle}
}

// Go spawns fn with optional cleanup under the group token.
func (g *Group) Go(fn, onCancel func(ctx context.Context)) *Task {
	g.mu.Lock()
	if g.active == 0 {
		g.idle = make(chan struct{})
	}
	g.active++
	g.mu.Unlock()

	return spawn(g.token, fn, onCancel, g.opts, g.release)
}

func (g *Group) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
	if g.active == 0 {
		close(g.idle)
	}
}

// Token returns the group token.
func (g *Group) Token() *Token {
	return g.token
}

// Cancel cancels every task in the group.
func (g *Group) Cancel() {
	g.token.Cancel()
}

// Active returns the number of tasks that have not finished.
func (g *Group) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Wait blocks until no task in the group is running or ctx ends.
func (g *Group) Wait(ctx context.Context) error {
	g.mu.Lock()
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
