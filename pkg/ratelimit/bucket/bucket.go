package bucket

import (
	"context"
	"math"
	"sync"
	"time"

	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
	"github.com/vnykmshr/stagebridge/pkg/common/validation"
)

// Bucket is a token bucket. It paces output frames to a device: each frame
// takes one token and tokens refill at the configured rate up to the burst
// size. A Bucket is safe for concurrent use.
type Bucket struct {
	mu     sync.Mutex
	rate   Limit
	burst  int
	tokens float64
	last   time.Time
	clock  Clock
}

// New creates a full bucket.
func New(rate Limit, burst int) (*Bucket, error) {
	cfg := DefaultConfig()
	cfg.Rate = rate
	cfg.Burst = burst
	return NewWithConfig(cfg)
}

// NewWithConfig creates a bucket from cfg.
func NewWithConfig(cfg Config) (*Bucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	tokens := float64(cfg.InitialTokens)
	if cfg.InitialTokens < 0 || tokens > float64(cfg.Burst) {
		tokens = float64(cfg.Burst)
	}
	return &Bucket{
		rate:   cfg.Rate,
		burst:  cfg.Burst,
		tokens: tokens,
		last:   cfg.Clock.Now(),
		clock:  cfg.Clock,
	}, nil
}

// Allow takes a token if one is available now.
func (b *Bucket) Allow() bool {
	return b.AllowN(1)
}

// AllowN takes n tokens if they are available now.
func (b *Bucket) AllowN(n int) bool {
	return b.reserve(b.clock.Now(), n, 0).ok
}

// Wait blocks until a token is available and takes it.
func (b *Bucket) Wait(ctx context.Context) error {
	return b.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are available and takes them. It fails at
// once if n exceeds the burst or the rate is zero and the tokens are not
// already there.
func (b *Bucket) WaitN(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := b.clock.Now()
	r := b.reserve(now, n, math.MaxInt64)
	if !r.ok {
		return sberrors.NewOperationError("bucket", "wait", sberrors.ErrRateLimited).
			WithContext("request cannot be satisfied at this rate and burst")
	}

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Reserve takes a token now, possibly going into debt, and reports when the
// caller may act.
func (b *Bucket) Reserve() *Reservation {
	return b.ReserveN(1)
}

// ReserveN is Reserve for n tokens.
func (b *Bucket) ReserveN(n int) *Reservation {
	return b.reserve(b.clock.Now(), n, math.MaxInt64)
}

// SetRate changes the refill rate, keeping the tokens earned so far.
func (b *Bucket) SetRate(rate Limit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(b.clock.Now())
	b.rate = rate
}

// SetBurst changes the bucket size. Excess tokens are discarded.
func (b *Bucket) SetBurst(burst int) error {
	if err := validation.ValidatePositive("bucket", "burst", burst); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(b.clock.Now())
	b.burst = burst
	b.tokens = math.Min(b.tokens, float64(burst))
	return nil
}

// Rate returns the refill rate.
func (b *Bucket) Rate() Limit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rate
}

// Burst returns the bucket size.
func (b *Bucket) Burst() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.burst
}

// Tokens returns the tokens available now. It is negative while
// reservations are outstanding.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(b.clock.Now())
	return b.tokens
}

func (b *Bucket) reserve(now time.Time, n int, maxWait time.Duration) *Reservation {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := &Reservation{b: b, tokens: n, at: now}
	if n <= 0 || b.rate == Inf {
		r.ok = true
		if n < 0 {
			r.tokens = 0
		}
		return r
	}
	if n > b.burst {
		return r
	}

	b.refill(now)
	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		r.ok = true
		return r
	}
	if b.rate == 0 {
		return r
	}

	missing := float64(n) - b.tokens
	wait := time.Duration(float64(time.Second) * missing / float64(b.rate))
	if wait > maxWait {
		return r
	}
	b.tokens -= float64(n)
	r.ok = true
	r.at = now.Add(wait)
	return r
}

// refill must be called with mu held.
func (b *Bucket) refill(now time.Time) {
	switch {
	case b.rate == Inf:
		b.tokens = float64(b.burst)
	case b.rate > 0:
		if elapsed := now.Sub(b.last); elapsed > 0 {
			b.tokens = math.Min(b.tokens+elapsed.Seconds()*float64(b.rate), float64(b.burst))
		}
	}
	if now.After(b.last) {
		b.last = now
	}
}

// Reservation is a claim on tokens that may only be used after a delay.
type Reservation struct {
	b      *Bucket
	ok     bool
	tokens int
	at     time.Time
}

// OK reports whether the tokens were granted. A reservation that is not OK
// took nothing.
func (r *Reservation) OK() bool {
	return r.ok
}

// Delay returns how long to wait before acting.
func (r *Reservation) Delay() time.Duration {
	return r.DelayFrom(r.b.clock.Now())
}

// DelayFrom returns how long after now the caller may act.
func (r *Reservation) DelayFrom(now time.Time) time.Duration {
	if !r.ok {
		return 0
	}
	if d := r.at.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Cancel returns the reserved tokens.
func (r *Reservation) Cancel() {
	if !r.ok || r.tokens == 0 {
		return
	}
	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(b.clock.Now())
	b.tokens = math.Min(b.tokens+float64(r.tokens), float64(b.burst))
	r.ok = false
}
