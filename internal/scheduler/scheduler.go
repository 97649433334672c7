// Package scheduler implements the dispatch loop and registry (§4.4, C5):
// the Scheduler owns the JobDefinition registry, runs the polling dispatch
// tick, arbitrates overlap and force-start, fires lifecycle events, and
// retires exhausted one-shot definitions.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/loykin/jobsched/internal/clock"
	"github.com/loykin/jobsched/internal/definition"
	"github.com/loykin/jobsched/internal/execution"
	"github.com/loykin/jobsched/internal/notifier"
	"github.com/loykin/jobsched/internal/serviceprovider"
)

// DefaultPollFrequency is used by Start when no frequency is given.
const DefaultPollFrequency = time.Second

// registryEntry wraps a Definition with scheduler-private bookkeeping.
// hasExecuted guards retirement: a one-shot definition must run at least
// once before it can be retired, otherwise a definition added with a
// future earliest-start would be retired on the very next tick, before it
// ever gets to run (see the retirement Open Question in DESIGN.md).
type registryEntry struct {
	def         definition.Definition
	hasExecuted atomic.Bool
}

// Scheduler is the registry owner and dispatch-loop driver. The zero value
// is not usable; construct with New.
type Scheduler struct {
	clk      clock.Clock
	notify   notifier.Notifier
	services serviceprovider.Provider

	mu       sync.Mutex // guards registry; snapshots are returned so readers never hold it
	registry []*registryEntry

	roster executionRoster
	force  *forceStartSet

	running      atomic.Bool
	cancel       context.CancelFunc
	dispatchDone chan struct{}
	execGroup    *errgroup.Group
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithClock overrides the time source. Defaults to clock.System.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clk = c }
}

// WithNotifier attaches the lifecycle-event sink. Defaults to an empty Multi.
func WithNotifier(n notifier.Notifier) Option {
	return func(s *Scheduler) { s.notify = n }
}

// WithServiceProvider attaches the optional DI collaborator Task-backed
// definitions use to resolve their runner.
func WithServiceProvider(p serviceprovider.Provider) Option {
	return func(s *Scheduler) { s.services = p }
}

// New builds a Scheduler. Call Add to register definitions and Start to
// begin the dispatch loop.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clk:    clock.System,
		notify: notifier.NewMulti(),
		force:  newForceStartSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends one or more definitions to the registry. Never fails.
func (s *Scheduler) Add(defs ...definition.Definition) {
	added := make([]definition.Definition, 0, len(defs))
	s.mu.Lock()
	for _, d := range defs {
		if d == nil {
			continue
		}
		s.registry = append(s.registry, &registryEntry{def: d})
		added = append(added, d)
	}
	s.mu.Unlock()

	for _, d := range added {
		s.notify.DefinitionAdded(notifier.DefinitionInfo{ID: d.ID(), Name: d.Name()})
	}
}

// Remove deletes the definitions matching the given ids from the registry.
// Unknown ids are silently ignored.
func (s *Scheduler) Remove(ids ...string) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var removed []definition.Definition
	s.mu.Lock()
	kept := s.registry[:0:0]
	for _, e := range s.registry {
		if _, match := want[e.def.ID()]; match {
			removed = append(removed, e.def)
			continue
		}
		kept = append(kept, e)
	}
	s.registry = kept
	s.mu.Unlock()

	for _, d := range removed {
		s.notify.DefinitionRemoved(notifier.DefinitionInfo{ID: d.ID(), Name: d.Name()})
	}
}

// Get returns a snapshot of every registered definition.
func (s *Scheduler) Get() []definition.Definition {
	return s.GetFiltered(nil)
}

// GetFiltered returns a snapshot of definitions matching pred (or all, if
// pred is nil). Mutating the returned slice never affects the registry.
func (s *Scheduler) GetFiltered(pred func(definition.Definition) bool) []definition.Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]definition.Definition, 0, len(s.registry))
	for _, e := range s.registry {
		if pred == nil || pred(e.def) {
			out = append(out, e.def)
		}
	}
	return out
}

// GetByID looks up a single registered definition.
func (s *Scheduler) GetByID(id string) (definition.Definition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.registry {
		if e.def.ID() == id {
			return e.def, true
		}
	}
	return nil, false
}

// GetExecutions returns a snapshot of executions for defID, newest
// StartTime first, optionally narrowed by pred.
func (s *Scheduler) GetExecutions(defID string, pred func(*execution.Execution) bool) []*execution.Execution {
	execs := s.roster.forDefinition(defID)
	if pred == nil {
		return execs
	}
	out := make([]*execution.Execution, 0, len(execs))
	for _, e := range execs {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// IsRunning reports whether the dispatch loop is active.
func (s *Scheduler) IsRunning() bool { return s.running.Load() }

// Start begins the dispatch loop at pollFrequency (default 1s if zero or
// omitted). A no-op if already running.
func (s *Scheduler) Start(pollFrequency ...time.Duration) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	freq := DefaultPollFrequency
	if len(pollFrequency) > 0 && pollFrequency[0] > 0 {
		freq = pollFrequency[0]
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.dispatchDone = make(chan struct{})
	s.execGroup = &errgroup.Group{}

	s.notify.SchedulerStarted()
	go s.dispatchLoop(ctx, freq)
}

// Stop cancels the root context, awaits every running execution, and
// transitions to stopped. A no-op if not running.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.cancel()
	<-s.dispatchDone
	_ = s.execGroup.Wait()
	s.notify.SchedulerStopped()
}

// ForceStart flags defId for one immediate dispatch on the next tick,
// bypassing schedule and overlap evaluation. Silently ignored if defId is
// unknown or already flagged.
func (s *Scheduler) ForceStart(defId string) {
	if _, ok := s.GetByID(defId); !ok {
		return
	}
	s.force.add(defId)
}

func (s *Scheduler) dispatchLoop(ctx context.Context, freq time.Duration) {
	defer close(s.dispatchDone)
	ticker := time.NewTicker(freq)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick is one dispatch iteration (§4.4): drain force-start, snapshot the
// registry under its lock, launch each eligible definition in insertion
// order, then retire expired one-shots.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.clk.Now()
	forced := s.force.drain()

	s.mu.Lock()
	entries := make([]*registryEntry, len(s.registry))
	copy(entries, s.registry)
	s.mu.Unlock()

	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if s.canRunJob(e.def, now, forced) {
			s.launch(ctx, e)
		}
	}

	s.retireExpired()
}

// canRunJob is eligibility (§4.4), evaluated in spec order: force-start
// bypasses everything; overlap check next; schedule comparison last.
func (s *Scheduler) canRunJob(def definition.Definition, now time.Time, forced map[string]struct{}) bool {
	if _, ok := forced[def.ID()]; ok {
		return true
	}
	if !def.ExecutionsCanOverlap() && s.roster.runningFor(def.ID()) {
		return false
	}
	sched := def.Schedule()
	if sched == nil {
		return true
	}
	return !now.Before(sched.NextRunTime())
}

// launch constructs a JobExecution and runs its body on its own goroutine,
// per the §4.3 construction sequence and §4.4 step 3.
func (s *Scheduler) launch(ctx context.Context, e *registryEntry) {
	def := e.def
	startTime := s.clk.Now()

	if sched := def.Schedule(); sched != nil {
		sched.SetLastRunTime(startTime)
	}

	ex := execution.New(uuid.NewString(), def.ID(), def.Name(), ctx, startTime)
	s.roster.add(ex)
	e.hasExecuted.Store(true)
	s.notify.JobStarted(ex)

	s.execGroup.Go(func() error {
		ex.Run(s.clk, func(runCtx context.Context) error {
			return def.Execute(ex, s.services, runCtx)
		})
		s.notify.JobCompleted(ex)
		return nil
	})
}

// retireExpired removes one-shot definitions that have finished running
// and have no cron expression (§4.4 Retirement).
func (s *Scheduler) retireExpired() {
	s.mu.Lock()
	kept := s.registry[:0:0]
	var retired []definition.Definition
	for _, e := range s.registry {
		if s.isExpired(e) {
			retired = append(retired, e.def)
			continue
		}
		kept = append(kept, e)
	}
	s.registry = kept
	s.mu.Unlock()

	for _, d := range retired {
		s.roster.removeForDefinition(d.ID())
		s.notify.DefinitionRemoved(notifier.DefinitionInfo{ID: d.ID(), Name: d.Name()})
	}
}

func (s *Scheduler) isExpired(e *registryEntry) bool {
	if !e.hasExecuted.Load() {
		return false
	}
	if s.roster.runningFor(e.def.ID()) {
		return false
	}
	sched := e.def.Schedule()
	return sched == nil || !sched.HasCron()
}
