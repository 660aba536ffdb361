package bucket

import (
	"math"
	"time"

	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
	"github.com/vnykmshr/stagebridge/pkg/common/validation"
)

// Limit is a rate in events per second. Zero allows only the initial burst;
// Inf allows everything.
type Limit float64

// Inf is the infinite rate limit.
var Inf = Limit(math.Inf(1))

// Every converts a minimum interval between events to a Limit.
func Every(interval time.Duration) Limit {
	if interval <= 0 {
		return Inf
	}
	return Limit(time.Second) / Limit(interval)
}

// FrameRate is the Limit for fps frames per second. DMX universes refresh
// at most about 44 times a second; most controllers want far less.
func FrameRate(fps float64) Limit {
	if fps <= 0 {
		return Inf
	}
	return Limit(fps)
}

// Clock provides the current time. It can be replaced in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration for a Bucket.
type Config struct {
	// Rate is how many tokens are added per second.
	Rate Limit

	// Burst is the bucket size.
	Burst int

	// Clock defaults to SystemClock.
	Clock Clock

	// InitialTokens is how many tokens the bucket starts with. Negative
	// means full.
	InitialTokens int
}

// DefaultConfig returns a full bucket of one token refilled 30 times a second.
func DefaultConfig() Config {
	return Config{
		Rate:          FrameRate(30),
		Burst:         1,
		Clock:         SystemClock{},
		InitialTokens: -1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Rate < 0 || math.IsNaN(float64(c.Rate)) {
		return sberrors.NewValidationError("bucket", "rate", c.Rate, "rate cannot be negative").
			WithHint("use 0 to allow only the initial burst, or Inf for no limit")
	}
	if err := validation.ValidatePositive("bucket", "burst", c.Burst); err != nil {
		return err
	}
	return nil
}
