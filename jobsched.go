// Package jobsched is a thin, stable facade over the internal scheduler,
// definition, schedule, execution, retry, notifier, and service-provider
// packages. Re-exported types are aliases, so conversions between the
// facade and internal types are zero-cost.
package jobsched

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/jobsched/internal/clock"
	"github.com/loykin/jobsched/internal/definition"
	"github.com/loykin/jobsched/internal/execution"
	"github.com/loykin/jobsched/internal/notifier"
	"github.com/loykin/jobsched/internal/retrypolicy"
	"github.com/loykin/jobsched/internal/schedule"
	"github.com/loykin/jobsched/internal/scheduler"
	"github.com/loykin/jobsched/internal/serviceprovider"
)

// Re-exported core types.

type (
	Definition         = definition.Definition
	ActionDef          = definition.ActionDefinition
	TaskDef            = definition.TaskDefinition
	DefinitionOpt      = definition.Option
	Action             = definition.Action
	Runner             = definition.Runner
	Releasable         = definition.Releasable
	Execution          = execution.Execution
	Schedule           = schedule.Schedule
	ScheduleOpt        = schedule.Option
	Clock              = clock.Clock
	ManualClock        = clock.Manual
	RetryPolicy        = retrypolicy.Policy
	RetryBackoff       = retrypolicy.Backoff
	RetryNoop          = retrypolicy.Noop
	RetryBag           = retrypolicy.Bag
	Notifier           = notifier.Notifier
	NotifierInfo       = notifier.DefinitionInfo
	LogNotifier        = notifier.Log
	MetricsNotifier    = notifier.Metrics
	SQLNotifier        = notifier.SQL
	ClickHouseNotifier = notifier.ClickHouse
	ServiceProvider    = serviceprovider.Provider
	ServiceScope       = serviceprovider.Scope
)

// Constructors re-exported for convenience.

var (
	NewSchedule           = schedule.New
	WithCron              = schedule.WithCron
	WithEarliestStart     = schedule.WithEarliestStart
	WithJitter            = schedule.WithJitter
	NewActionDefinition   = definition.NewAction
	NewTaskDefinition     = definition.NewTask
	WithSchedule          = definition.WithSchedule
	WithOverlap           = definition.WithOverlap
	WithRetryPolicy       = definition.WithRetryPolicy
	NewManualClock        = clock.NewManual
	NewStaticServices     = serviceprovider.NewStatic
	NewLogNotifier        = notifier.NewLog
	NewMetricsNotifier    = notifier.NewMetrics
	NewMultiNotifier      = notifier.NewMulti
	NewSQLNotifierFromDSN = notifier.NewSQLFromDSN
	NewClickHouseNotifier = notifier.NewClickHouse
)

// Scheduler is a thin facade over internal/scheduler.Scheduler: the
// registry owner, dispatch loop, and arbiter of overlap / force-start
// described by the core job-scheduler contract.
type Scheduler struct {
	inner *scheduler.Scheduler
}

// Option configures a Scheduler at construction time.
type Option = scheduler.Option

// WithClock overrides the scheduler's time source. Tests should inject a
// ManualClock; production code can omit this to use the system clock.
func WithClock(c Clock) Option { return scheduler.WithClock(c) }

// WithNotifier attaches the lifecycle-event sink.
func WithNotifier(n Notifier) Option { return scheduler.WithNotifier(n) }

// WithServiceProvider attaches the optional DI collaborator.
func WithServiceProvider(p ServiceProvider) Option { return scheduler.WithServiceProvider(p) }

// New builds a Scheduler. Call Add to register definitions and Start to
// begin the dispatch loop.
func New(opts ...Option) *Scheduler {
	return &Scheduler{inner: scheduler.New(opts...)}
}

func (s *Scheduler) Add(defs ...Definition) { s.inner.Add(defs...) }

func (s *Scheduler) Remove(ids ...string) { s.inner.Remove(ids...) }

func (s *Scheduler) Get() []Definition { return s.inner.Get() }

func (s *Scheduler) GetFiltered(pred func(Definition) bool) []Definition {
	return s.inner.GetFiltered(pred)
}

func (s *Scheduler) GetByID(id string) (Definition, bool) { return s.inner.GetByID(id) }

func (s *Scheduler) GetExecutions(defID string, pred func(*Execution) bool) []*Execution {
	return s.inner.GetExecutions(defID, pred)
}

func (s *Scheduler) Start(pollFrequency ...time.Duration) { s.inner.Start(pollFrequency...) }

func (s *Scheduler) Stop() { s.inner.Stop() }

func (s *Scheduler) ForceStart(defId string) { s.inner.ForceStart(defId) }

func (s *Scheduler) IsRunning() bool { return s.inner.IsRunning() }

// RegisterMetrics registers the Prometheus collectors behind
// MetricsNotifier with r. Call before the scheduler is started.
func RegisterMetrics(m *MetricsNotifier, r prometheus.Registerer) error { return m.Register(r) }

// NewActionContext is a convenience constructor for an Action that simply
// ignores the execution and service scope, for the common case of a
// parameterless job body.
func NewActionContext(fn func(ctx context.Context) error) Action {
	return func(_ *Execution, _ ServiceProvider, ctx context.Context) error { return fn(ctx) }
}
