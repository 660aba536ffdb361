package cue

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/stagebridge/pkg/common/validation"
	"github.com/vnykmshr/stagebridge/pkg/metrics"
	"github.com/vnykmshr/stagebridge/pkg/streaming/broadcast"
)

// Config holds configuration for a Scheduler.
type Config struct {
	// Name labels the cue broadcast in metrics.
	Name string

	// Location is the time zone expressions are evaluated in. Defaults to
	// time.Local.
	Location *time.Location

	// Capacity is the size of the cue broadcast ring.
	Capacity int

	// Logger receives scheduler diagnostics and recovered cue panics. Nil
	// discards them.
	Logger *zerolog.Logger

	// Metrics counts fired cues. Nil disables recording.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Name:     "cues",
		Location: time.Local,
		Capacity: broadcast.DefaultCapacity,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidateNotEmpty("cue", "name", c.Name); err != nil {
		return err
	}
	return validation.ValidatePositive("cue", "capacity", c.Capacity)
}

// Options tune a single cue.
type Options struct {
	// MaxFires removes the cue after it fired this many times. Zero means
	// no limit.
	MaxFires int
}
