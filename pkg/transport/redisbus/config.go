package redisbus

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/stagebridge/pkg/common/validation"
	"github.com/vnykmshr/stagebridge/pkg/metrics"
	"github.com/vnykmshr/stagebridge/pkg/streaming/broadcast"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "stagebridge:control"

// Config holds configuration for a Source or Publisher.
type Config struct {
	// Redis is the client used for pub/sub. It is not closed by this
	// package.
	Redis redis.UniversalClient

	// Channel is the pub/sub channel name.
	Channel string

	// Capacity is the size of a Source's broadcast ring.
	Capacity int

	// Timeout bounds each publish.
	Timeout time.Duration

	// Observer receives undecodable messages and publish failures.
	Observer telemetry.Observer

	// Metrics counts messages in each direction. Nil disables recording.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration without a client.
func DefaultConfig() Config {
	return Config{
		Channel:  DefaultChannel,
		Capacity: broadcast.DefaultCapacity,
		Timeout:  500 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidateNotNil("redisbus", "redis", c.Redis); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("redisbus", "channel", c.Channel); err != nil {
		return err
	}
	if err := validation.ValidatePositive("redisbus", "capacity", c.Capacity); err != nil {
		return err
	}
	return validation.ValidatePositiveDuration("redisbus", "timeout", c.Timeout)
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Channel == "" {
		c.Channel = def.Channel
	}
	if c.Capacity == 0 {
		c.Capacity = def.Capacity
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	c.Observer = telemetry.OrDefault(c.Observer)
}

func (c Config) count(direction string) {
	if c.Metrics != nil {
		c.Metrics.BusMessages.WithLabelValues(c.Channel, direction).Inc()
	}
}
