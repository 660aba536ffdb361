package telemetry

import (
	"context"
	"errors"

	"github.com/vnykmshr/stagebridge/pkg/metrics"
)

// Stage exit reasons recorded by MetricsObserver.
const (
	ReasonClosed    = "closed"
	ReasonCancelled = "cancelled"
	ReasonPanic     = "panic"
	ReasonError     = "error"
)

// MetricsObserver records core events in a metrics.Registry.
type MetricsObserver struct {
	reg *metrics.Registry
}

// NewMetricsObserver returns an Observer backed by reg. A nil reg yields Nop.
func NewMetricsObserver(reg *metrics.Registry) Observer {
	if reg == nil {
		return Nop{}
	}
	return &MetricsObserver{reg: reg}
}

func (o *MetricsObserver) Lagged(component string, skipped uint64) {
	o.reg.BroadcastLagged.WithLabelValues(component).Add(float64(skipped))
}

func (o *MetricsObserver) Dropped(component string, _ error) {
	o.reg.SendDrops.WithLabelValues(component).Inc()
}

func (o *MetricsObserver) StageExited(stage string, err error) {
	o.reg.StageExits.WithLabelValues(stage, ExitReason(err)).Inc()
}

func (o *MetricsObserver) TaskCancelled(component string) {
	o.reg.TasksCancelled.WithLabelValues(component).Inc()
}

// ExitReason classifies a StageExited error.
func ExitReason(err error) string {
	switch {
	case err == nil:
		return ReasonClosed
	case IsPanic(err):
		return ReasonPanic
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	}
	return ReasonError
}
