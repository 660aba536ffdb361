package telemetry

import "sync/atomic"

// Counter tallies events in memory. It is handy for health checks and tests.
type Counter struct {
	lagged    atomic.Uint64
	skipped   atomic.Uint64
	dropped   atomic.Uint64
	exited    atomic.Uint64
	failed    atomic.Uint64
	cancelled atomic.Uint64
}

// Snapshot is a point-in-time copy of a Counter.
type Snapshot struct {
	Lagged    uint64 // lag notifications
	Skipped   uint64 // events skipped across all notifications
	Dropped   uint64
	Exited    uint64 // stage exits, including failures
	Failed    uint64 // stage exits with a non-nil error
	Cancelled uint64
}

func (c *Counter) Lagged(_ string, skipped uint64) {
	c.lagged.Add(1)
	c.skipped.Add(skipped)
}

func (c *Counter) Dropped(string, error) { c.dropped.Add(1) }

func (c *Counter) StageExited(_ string, err error) {
	c.exited.Add(1)
	if err != nil {
		c.failed.Add(1)
	}
}

func (c *Counter) TaskCancelled(string) { c.cancelled.Add(1) }

// Snapshot returns the current tallies.
func (c *Counter) Snapshot() Snapshot {
	return Snapshot{
		Lagged:    c.lagged.Load(),
		Skipped:   c.skipped.Load(),
		Dropped:   c.dropped.Load(),
		Exited:    c.exited.Load(),
		Failed:    c.failed.Load(),
		Cancelled: c.cancelled.Load(),
	}
}
