package telemetry

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/stagebridge/pkg/common/errors"
)

// Log formats accepted by LogConfig.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// LogConfig describes how to build a zerolog.Logger.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error. Defaults to warn.
	Level string

	// Format is FormatJSON or FormatConsole. Defaults to FormatConsole.
	Format string

	// Output is "stdout" or "stderr". Ignored when Writer is set.
	Output string

	// Writer overrides Output.
	Writer io.Writer

	NoColor   bool
	Timestamp bool
}

// DefaultLogConfig returns the configuration used by Default.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:     "warn",
		Format:    FormatConsole,
		Output:    "stderr",
		Timestamp: true,
	}
}

// ApplyDefaults fills empty fields.
func (c *LogConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "warn"
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate checks level and format.
func (c LogConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil || c.Level == "" {
		return errors.NewValidationError("telemetry", "level", c.Level, "unknown log level").
			WithHint("use trace, debug, info, warn or error")
	}
	switch strings.ToLower(c.Format) {
	case FormatJSON, FormatConsole:
	default:
		return errors.NewValidationError("telemetry", "format", c.Format, "unknown log format").
			WithHint("use json or console")
	}
	return nil
}

// Logger builds a zerolog.Logger from cfg. Invalid levels fall back to warn.
func Logger(cfg LogConfig) zerolog.Logger {
	cfg.ApplyDefaults()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.WarnLevel
	}

	out := cfg.Writer
	if out == nil {
		out = os.Stderr
		if cfg.Output == "stdout" {
			out = os.Stdout
		}
	}
	if strings.ToLower(cfg.Format) == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, NoColor: cfg.NoColor, TimeFormat: "15:04:05.000"}
	}

	ctx := zerolog.New(out).Level(level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// LogObserver writes core events through zerolog.
type LogObserver struct {
	log zerolog.Logger
}

// NewLogObserver returns an Observer logging to l.
func NewLogObserver(l zerolog.Logger) *LogObserver {
	return &LogObserver{log: l}
}

var (
	defaultOnce     sync.Once
	defaultObserver Observer
)

// Default returns the shared Observer that logs warnings and above to
// stderr. It is built on first use and never mutated.
func Default() Observer {
	defaultOnce.Do(func() {
		defaultObserver = NewLogObserver(Logger(DefaultLogConfig()))
	})
	return defaultObserver
}

func (o *LogObserver) Lagged(component string, skipped uint64) {
	o.log.Warn().Str("component", component).Uint64("skipped", skipped).Msg("subscriber lagged")
}

func (o *LogObserver) Dropped(component string, err error) {
	o.log.Debug().Str("component", component).Err(err).Msg("value dropped")
}

func (o *LogObserver) StageExited(stage string, err error) {
	if err == nil {
		o.log.Debug().Str("stage", stage).Msg("stage finished")
		return
	}
	if ExitReason(err) == ReasonCancelled {
		o.log.Debug().Str("stage", stage).Err(err).Msg("stage cancelled")
		return
	}
	ev := o.log.Error().Str("stage", stage).Err(err)
	if pe, ok := asPanic(err); ok && len(pe.Stack) > 0 {
		ev = ev.Bytes("stack", pe.Stack)
	}
	ev.Msg("stage failed")
}

func (o *LogObserver) TaskCancelled(component string) {
	o.log.Debug().Str("component", component).Msg("task cancelled, cleanup ran")
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}
