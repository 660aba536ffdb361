package task

import "context"

// Token is a shared cancellation handle. Once cancelled it never un-cancels,
// and cancelling it again is a no-op. The zero value is not usable; create
// tokens with NewToken or NewTokenFrom.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewToken returns a fresh, uncancelled token.
func NewToken() *Token {
	return NewTokenFrom(context.Background())
}

// NewTokenFrom returns a token that is also cancelled when parent is done.
// Values stored in parent are visible through Context.
func NewTokenFrom(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Cancel marks the token cancelled and wakes every waiter.
func (t *Token) Cancel() {
	t.cancel()
}

// Done is closed once the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// IsCancelled reports whether Cancel has been called on t or an ancestor.
func (t *Token) IsCancelled() bool {
	return t.ctx.Err() != nil
}

// Context returns a context that is cancelled with the token.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Child returns a token cancelled by t but cancellable on its own.
func (t *Token) Child() *Token {
	return NewTokenFrom(t.ctx)
}
