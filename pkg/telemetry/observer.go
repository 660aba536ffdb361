package telemetry

import (
	"errors"
)

// Observer receives the events the dataflow core would otherwise log. Every
// method must be safe for concurrent use and must not block.
type Observer interface {
	// Lagged reports that a subscriber skipped events to catch up.
	Lagged(component string, skipped uint64)

	// Dropped reports a value discarded because its receiver was gone.
	Dropped(component string, err error)

	// StageExited reports that a stage goroutine finished. err is nil for an
	// orderly shutdown and a *PanicError when the stage function panicked.
	StageExited(stage string, err error)

	// TaskCancelled reports that a task's cleanup path ran.
	TaskCancelled(component string)
}

// PanicError carries a value recovered from a stage or handler.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return "panic: " + stringify(e.Value)
}

// IsPanic reports whether err wraps a *PanicError.
func IsPanic(err error) bool {
	_, ok := asPanic(err)
	return ok
}

func asPanic(err error) (*PanicError, bool) {
	var pe *PanicError
	ok := errors.As(err, &pe)
	return pe, ok
}

// Nop discards every event.
type Nop struct{}

func (Nop) Lagged(string, uint64)     {}
func (Nop) Dropped(string, error)     {}
func (Nop) StageExited(string, error) {}
func (Nop) TaskCancelled(string)      {}

type multi []Observer

// Multi fans every event out to each observer in order. Nil entries are
// skipped.
func Multi(observers ...Observer) Observer {
	var m multi
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return Nop{}
	case 1:
		return m[0]
	}
	return m
}

func (m multi) Lagged(component string, skipped uint64) {
	for _, o := range m {
		o.Lagged(component, skipped)
	}
}

func (m multi) Dropped(component string, err error) {
	for _, o := range m {
		o.Dropped(component, err)
	}
}

func (m multi) StageExited(stage string, err error) {
	for _, o := range m {
		o.StageExited(stage, err)
	}
}

func (m multi) TaskCancelled(component string) {
	for _, o := range m {
		o.TaskCancelled(component)
	}
}

// OrDefault returns o, or Default() when o is nil.
func OrDefault(o Observer) Observer {
	if o == nil {
		return Default()
	}
	return o
}
