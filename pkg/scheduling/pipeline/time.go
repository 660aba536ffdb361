package pipeline

import (
	"context"
	"sync"
	"time"
)

// Delay forwards every value d after it reached the stage. Values keep their
// order and the stage keeps reading while earlier values wait.
func Delay[I, O any](p Pipeline[I, O], d time.Duration) Pipeline[I, O] {
	return paced(p, "delay", func(arrived, _ time.Time) time.Time {
		return arrived.Add(d)
	})
}

// Stagger forwards values in order with at least d between consecutive
// sends. Bursts are buffered without blocking the upstream stage, which is
// how a row of pads pressed at once turns into a chase.
func Stagger[I, O any](p Pipeline[I, O], d time.Duration) Pipeline[I, O] {
	return paced(p, "stagger", func(arrived, lastSent time.Time) time.Time {
		if lastSent.IsZero() {
			return arrived
		}
		if next := lastSent.Add(d); next.After(arrived) {
			return next
		}
		return arrived
	})
}

type timed[T any] struct {
	v       T
	arrived time.Time
}

// paced reads eagerly into an unbounded FIFO and sends each value no earlier
// than due(arrived, lastSent).
func paced[I, O any](p Pipeline[I, O], name string, due func(arrived, lastSent time.Time) time.Time) Pipeline[I, O] {
	return appendStage[I, O, O](p, name, func(ctx context.Context, in *Receiver[O], out Sender[O], _ stageEnv) {
		q := newFifo[timed[O]]()

		sent := make(chan struct{})
		go func() {
			defer close(sent)
			var last time.Time
			for {
				e, ok := q.pop(ctx)
				if !ok {
					return
				}
				if wait := time.Until(due(e.arrived, last)); wait > 0 {
					timer := time.NewTimer(wait)
					select {
					case <-timer.C:
					case <-ctx.Done():
						timer.Stop()
						return
					}
				}
				_ = out.Send(ctx, e.v)
				last = time.Now()
			}
		}()

		for v := range in.All(ctx) {
			q.push(timed[O]{v: v, arrived: time.Now()})
		}
		q.close()
		<-sent
	})
}

// fifo is an unbounded single-consumer queue.
type fifo[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{} // capacity 1, signalled on push and close
}

func newFifo[T any]() *fifo[T] {
	return &fifo[T]{ready: make(chan struct{}, 1)}
}

func (q *fifo[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
}

func (q *fifo[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *fifo[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pop blocks for the next value. It returns false once the queue is closed
// and empty, or when ctx ends.
func (q *fifo[T]) pop(ctx context.Context) (T, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, true
		}
		closed := q.closed
		q.mu.Unlock()

		var zero T
		if closed {
			return zero, false
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return zero, false
		}
	}
}
