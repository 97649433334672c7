// Package schedule computes a JobDefinition's next-run instant from a cron
// expression, an earliest-start floor, and a jitter window.
//
// The cron-expression parser itself is treated as an external collaborator:
// this package only ever calls robfig/cron's Parse + Schedule.Next, never
// reimplements cron semantics.
package schedule

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var epochFloor = time.Unix(0, 0).UTC()

// neverRunTime is the sentinel NextRunTime for an exhausted one-shot
// schedule: far enough in the future that canRunJob's "now >= next"
// comparison never holds again.
var neverRunTime = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule is the value object described by §3/§4.1 of the spec: it derives
// NextRunTime from a cron expression, an earliest-start bound, and a jitter
// window, re-deriving it every time LastRunTime is assigned.
type Schedule struct {
	mu sync.Mutex

	cronExpr     string
	cronSchedule cron.Schedule // nil when no cron, or parsing degraded

	hasEarliestStart bool
	earliestStart    time.Time

	jitter time.Duration

	nextRunTime    time.Time
	hasLastRunTime bool
	lastRunTime    time.Time

	// exhausted is set once a no-cron (one-shot) schedule has completed
	// its single run. Per §3/§8, a one-shot definition runs exactly once;
	// once set, NextRunTime permanently reports neverRunTime so the
	// definition is never re-dispatched while it waits to be retired.
	exhausted bool
}

// Option configures a Schedule at construction time.
type Option func(*Schedule)

// WithCron sets the cron expression. An expression the parser rejects
// silently degrades the schedule to one-shot (earliest-start only); the
// constructor never fails.
func WithCron(expr string) Option {
	return func(s *Schedule) {
		if expr == "" {
			return
		}
		s.cronExpr = expr
		if parsed, err := cronParser.Parse(expr); err == nil {
			s.cronSchedule = parsed
		}
	}
}

// WithEarliestStart sets the floor below which NextRunTime will not be
// scheduled (though it may still fire immediately once jitter is applied).
func WithEarliestStart(t time.Time) Option {
	return func(s *Schedule) {
		s.hasEarliestStart = true
		s.earliestStart = t.UTC()
	}
}

// WithJitter sets a symmetric random offset window applied on every
// recomputation. Zero (the default) disables jitter.
func WithJitter(d time.Duration) Option {
	return func(s *Schedule) {
		if d > 0 {
			s.jitter = d
		}
	}
}

// New constructs a Schedule and computes its initial NextRunTime using the
// epoch floor as the reference instant, per §4.1.
func New(opts ...Option) *Schedule {
	s := &Schedule{}
	for _, opt := range opts {
		opt(s)
	}
	s.recompute(epochFloor)
	return s
}

// HasCron reports whether this schedule is cron-driven (parsing succeeded).
// A schedule with an unset or unparsable cron expression is one-shot.
func (s *Schedule) HasCron() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cronSchedule != nil
}

// CronExpr returns the configured cron expression, which may be set even
// when parsing failed (HasCron reports false in that case).
func (s *Schedule) CronExpr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cronExpr
}

// NextRunTime returns the instant at which the definition is next eligible.
func (s *Schedule) NextRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunTime
}

// LastRunTime returns the reference instant of the most recent run, and
// whether one has been recorded.
func (s *Schedule) LastRunTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunTime, s.hasLastRunTime
}

// SetLastRunTime records the start of a run and recomputes NextRunTime
// using that instant as the reference, per §4.1/§4.3 step 3: cadence is
// kept regular relative to the start of a run, not its finish. A no-cron
// schedule is marked exhausted here: it has now had its one run, and must
// never become eligible again (§3/§8).
func (s *Schedule) SetLastRunTime(t time.Time) {
	s.mu.Lock()
	s.hasLastRunTime = true
	s.lastRunTime = t.UTC()
	if s.cronSchedule == nil {
		s.exhausted = true
	}
	s.mu.Unlock()
	s.recompute(t.UTC())
}

// Exhausted reports whether a no-cron schedule has already had its one
// run and will never become eligible again.
func (s *Schedule) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// ClearLastRunTime unsets LastRunTime without recomputing NextRunTime.
func (s *Schedule) ClearLastRunTime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasLastRunTime = false
	s.lastRunTime = time.Time{}
}

func (s *Schedule) recompute(reference time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted {
		s.nextRunTime = neverRunTime
		return
	}

	floor := epochFloor
	if s.hasEarliestStart {
		floor = s.earliestStart
	}

	next := floor
	if s.cronSchedule != nil {
		if n := s.cronSchedule.Next(reference); !n.IsZero() {
			if n.After(floor) {
				next = n
			}
		}
	}

	if s.jitter > 0 {
		next = next.Add(jitterOffset(s.jitter))
	}

	s.nextRunTime = next
}

// jitterOffset draws a uniformly random duration in [-window, +window].
func jitterOffset(window time.Duration) time.Duration {
	span := 2*window.Nanoseconds() + 1
	draw := rand.Int64N(span)
	return time.Duration(draw - window.Nanoseconds())
}
