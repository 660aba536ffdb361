package cue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
	"github.com/vnykmshr/stagebridge/pkg/streaming/broadcast"
)

// Parser accepts six-field expressions with seconds first, plus descriptors
// such as "@every 30s" and "@hourly".
var Parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ErrNotFound is returned for an unknown cue ID.
var ErrNotFound = fmt.Errorf("cue: not found")

// Event is published every time a cue fires.
type Event struct {
	Cue string
	Seq uint64 // per-cue, starting at 1
	At  time.Time
}

// Cue describes a scheduled cue.
type Cue struct {
	ID         string
	Expression string
	Next       time.Time
	Prev       time.Time
	Fired      uint64
	Options    Options
}

type entry struct {
	id      cron.EntryID
	expr    string
	opts    Options
	fired   atomic.Uint64
	removed atomic.Bool
}

// Scheduler fires named cues on cron schedules and broadcasts each firing
// as an Event. It is a broadcast.Source, so cues feed pipelines and
// listeners like any other control surface.
type Scheduler struct {
	cfg  Config
	cron *cron.Cron
	out  *broadcast.Channel[Event]

	mu      sync.Mutex
	entries map[string]*entry
	stopped bool
}

// New creates a scheduler. It fires nothing until Start.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out, err := broadcast.NewWithConfig[Event](broadcast.Config{
		Capacity: cfg.Capacity,
		Name:     cfg.Name,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", cfg.Name).Logger()
	}
	cl := cronLogger{log: logger}

	return &Scheduler{
		cfg: cfg,
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		out:     out,
		entries: make(map[string]*entry),
	}, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waits for firings in progress and closes the
// cue broadcast. Stop is idempotent.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.out.Close()
	return nil
}

// Subscribe returns a cursor over cue events.
func (s *Scheduler) Subscribe() broadcast.Subscription[Event] {
	return s.out.Subscribe()
}

// Add schedules cue id on a cron expression.
func (s *Scheduler) Add(id, expr string, opts ...Options) error {
	if id == "" {
		return sberrors.NewValidationError("cue", "id", id, "must not be empty")
	}
	sched, err := Parser.Parse(expr)
	if err != nil {
		return sberrors.NewValidationError("cue", "expression", expr, err.Error()).
			WithHint("use six fields with seconds first, e.g. \"0 */5 * * * *\"")
	}
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	return s.AddSchedule(id, expr, sched, o)
}

// AddSchedule schedules cue id on any cron.Schedule. expr is only used for
// display.
func (s *Scheduler) AddSchedule(id, expr string, sched cron.Schedule, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return sberrors.NewOperationError("cue", "add", sberrors.ErrClosed)
	}
	if _, ok := s.entries[id]; ok {
		return sberrors.NewValidationError("cue", "id", id, "already scheduled").
			WithHint("use Update to change an existing cue")
	}

	e := &entry{expr: expr, opts: opts}
	e.id = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id, e) }))
	s.entries[id] = e
	return nil
}

// Update replaces the expression of cue id. Its fire count is kept.
func (s *Scheduler) Update(id, expr string) error {
	sched, err := Parser.Parse(expr)
	if err != nil {
		return sberrors.NewValidationError("cue", "expression", expr, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	old.removed.Store(true)
	s.cron.Remove(old.id)

	e := &entry{expr: expr, opts: old.opts}
	e.fired.Store(old.fired.Load())
	e.id = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id, e) }))
	s.entries[id] = e
	return nil
}

// Remove unschedules cue id. It reports whether the cue existed.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.removed.Store(true)
	s.cron.Remove(e.id)
	delete(s.entries, id)
	return true
}

// Fire publishes cue id immediately, as if its schedule had come due. It
// counts toward MaxFires.
func (s *Scheduler) Fire(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.fire(id, e)
	return nil
}

// Next returns when cue id fires next. It is zero until Start.
func (s *Scheduler) Next(id string) (time.Time, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.cron.Entry(e.id).Next, nil
}

// List returns every scheduled cue ordered by ID.
func (s *Scheduler) List() []Cue {
	s.mu.Lock()
	defer s.mu.Unlock()

	cues := make([]Cue, 0, len(s.entries))
	for id, e := range s.entries {
		ce := s.cron.Entry(e.id)
		cues = append(cues, Cue{
			ID:         id,
			Expression: e.expr,
			Next:       ce.Next,
			Prev:       ce.Prev,
			Fired:      e.fired.Load(),
			Options:    e.opts,
		})
	}
	sort.Slice(cues, func(i, j int) bool { return cues[i].ID < cues[j].ID })
	return cues
}

func (s *Scheduler) fire(id string, e *entry) {
	if e.removed.Load() {
		return
	}
	seq := e.fired.Add(1)
	if limit := e.opts.MaxFires; limit > 0 && seq > uint64(limit) {
		return
	}

	_, _ = s.out.Send(Event{Cue: id, Seq: seq, At: time.Now().In(s.cfg.Location)})
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.CuesFired.WithLabelValues(id).Inc()
	}

	if limit := e.opts.MaxFires; limit > 0 && seq == uint64(limit) {
		s.mu.Lock()
		if cur, ok := s.entries[id]; ok && cur == e {
			e.removed.Store(true)
			s.cron.Remove(e.id)
			delete(s.entries, id)
		}
		s.mu.Unlock()
	}
}

// Validate reports whether expr parses.
func Validate(expr string) error {
	_, err := Parser.Parse(expr)
	return err
}

// Upcoming returns the next n times expr fires after from.
func Upcoming(expr string, from time.Time, n int) ([]time.Time, error) {
	sched, err := Parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}
