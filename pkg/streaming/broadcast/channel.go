package broadcast

import (
	"context"
	"fmt"
	"sync"

	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
	"github.com/vnykmshr/stagebridge/pkg/common/validation"
	"github.com/vnykmshr/stagebridge/pkg/metrics"
)

// DefaultCapacity is the ring size used when none is given.
const DefaultCapacity = 128

// ErrClosed is returned by Recv once the source is closed and the subscriber
// has read everything still buffered, and by Send after Close.
var ErrClosed = fmt.Errorf("broadcast: closed: %w", sberrors.ErrClosed)

// LaggedError tells a subscriber it fell behind and Skipped events were
// overwritten before it read them. The next Recv continues with the oldest
// event still buffered.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("broadcast: subscriber lagged, %d events skipped", e.Skipped)
}

// Source is anything events can be subscribed to. Sources accept new
// subscribers for their whole lifetime.
type Source[T any] interface {
	Subscribe() Subscription[T]
}

// Subscription is an independent cursor into a Source. A Subscription is
// used by one goroutine at a time.
type Subscription[T any] interface {
	// Recv returns the next event, a *LaggedError, ErrClosed, or the
	// context error.
	Recv(ctx context.Context) (T, error)

	// Close releases the cursor. Later Recv calls return ErrClosed. Close is
	// idempotent.
	Close()
}

// Config holds configuration for a Channel.
type Config struct {
	// Capacity is how many events are kept for slow subscribers.
	Capacity int

	// Name labels the channel in metrics.
	Name string

	// Metrics records sends and subscriber counts. Nil disables recording.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{Capacity: DefaultCapacity, Name: "broadcast"}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidatePositive("broadcast", "capacity", c.Capacity)
}

type slot[T any] struct {
	v T
}

// Channel is a fixed-capacity broadcast queue. Send never blocks: when the
// ring is full the oldest event is overwritten and subscribers that had not
// read it get a *LaggedError on their next Recv.
type Channel[T any] struct {
	cfg Config

	mu     sync.RWMutex
	ring   []slot[T]
	tail   uint64 // sequence number of the next event
	closed bool
	notify chan struct{} // closed and replaced on every Send and on Close
	subs   int
}

// New creates a channel keeping capacity events. Non-positive capacities use
// DefaultCapacity.
func New[T any](capacity int) *Channel[T] {
	cfg := DefaultConfig()
	if capacity > 0 {
		cfg.Capacity = capacity
	}
	ch, _ := NewWithConfig[T](cfg)
	return ch
}

// NewWithConfig creates a channel from cfg.
func NewWithConfig[T any](cfg Config) (*Channel[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = DefaultConfig().Name
	}
	return &Channel[T]{
		cfg:    cfg,
		ring:   make([]slot[T], cfg.Capacity),
		notify: make(chan struct{}),
	}, nil
}

// Send publishes v to every subscriber and returns how many subscriptions
// were open. It fails only after Close.
func (c *Channel[T]) Send(v T) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	c.ring[c.tail%uint64(len(c.ring))] = slot[T]{v: v}
	c.tail++
	n := c.subs
	c.wake()
	c.mu.Unlock()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.BroadcastSent.WithLabelValues(c.cfg.Name).Inc()
	}
	return n, nil
}

// Close stops the channel. Subscribers drain what is buffered and then get
// ErrClosed. Close is idempotent.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.wake()
}

// wake must be called with mu held.
func (c *Channel[T]) wake() {
	close(c.notify)
	c.notify = make(chan struct{})
}

// Subscribe returns a cursor that sees every event sent after this call.
func (c *Channel[T]) Subscribe() Subscription[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &subscriber[T]{ch: c, next: c.tail}
	if c.closed {
		s.closed = true
		return s
	}
	c.subs++
	c.gauge(1)
	return s
}

// Subscribers returns the number of open subscriptions.
func (c *Channel[T]) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs
}

// Cap returns the ring capacity.
func (c *Channel[T]) Cap() int {
	return len(c.ring)
}

func (c *Channel[T]) gauge(delta float64) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.BroadcastSubscribers.WithLabelValues(c.cfg.Name).Add(delta)
	}
}

type subscriber[T any] struct {
	ch     *Channel[T]
	next   uint64
	closed bool
}

func (s *subscriber[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		if s.closed {
			return zero, ErrClosed
		}

		c := s.ch
		c.mu.RLock()
		if s.next < c.tail {
			size := uint64(len(c.ring))
			if c.tail > size && s.next < c.tail-size {
				oldest := c.tail - size
				skipped := oldest - s.next
				s.next = oldest
				c.mu.RUnlock()
				return zero, &LaggedError{Skipped: skipped}
			}
			v := c.ring[s.next%size].v
			s.next++
			c.mu.RUnlock()
			return v, nil
		}
		if c.closed {
			c.mu.RUnlock()
			return zero, ErrClosed
		}
		wait := c.notify
		c.mu.RUnlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (s *subscriber[T]) Close() {
	if s.closed {
		return
	}
	s.closed = true
	c := s.ch
	c.mu.Lock()
	c.subs--
	c.mu.Unlock()
	c.gauge(-1)
}
