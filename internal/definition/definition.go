// Package definition implements the JobDefinition variant set (§3, §4.2):
// registry records that know how to run themselves, polymorphic over an
// Action-backed callable and a Task-backed disposable runner type. Callers
// may also implement Definition directly for any other variant.
package definition

import (
	"context"
	"errors"

	"github.com/loykin/jobsched/internal/execution"
	"github.com/loykin/jobsched/internal/retrypolicy"
	"github.com/loykin/jobsched/internal/schedule"
	"github.com/loykin/jobsched/internal/serviceprovider"
)

// Definition is the capability set every registry entry must satisfy.
// ExecutionsCanOverlap, Schedule, and RetryPolicy are read-only from the
// scheduler's perspective once constructed.
type Definition interface {
	ID() string
	Name() string
	Schedule() *schedule.Schedule
	ExecutionsCanOverlap() bool
	// Execute runs the workload for one execution under the definition's
	// retry policy, which may make several attempts (a no-op,
	// single-attempt policy when none is configured), observing ctx
	// cancellation.
	Execute(ex *execution.Execution, services serviceprovider.Provider, ctx context.Context) error
}

// base carries the attributes common to every variant.
type base struct {
	id      string
	name    string
	sched   *schedule.Schedule
	overlap bool
	retry   retrypolicy.Policy
}

func (b *base) ID() string                    { return b.id }
func (b *base) Name() string                  { return b.name }
func (b *base) Schedule() *schedule.Schedule  { return b.sched }
func (b *base) ExecutionsCanOverlap() bool    { return b.overlap }
func (b *base) policy() retrypolicy.Policy {
	if b.retry != nil {
		return b.retry
	}
	return retrypolicy.Noop{}
}

func (b *base) bag(ex *execution.Execution) retrypolicy.Bag {
	return retrypolicy.NewBag(ex, retrypolicy.DefinitionInfo{ID: b.id, Name: b.name})
}

// Option configures a base attribute shared by every variant.
type Option func(*base)

// WithSchedule attaches a Schedule. Omitting it makes the definition
// one-shot and immediately eligible (Schedule() returns nil; the
// scheduler treats a nil Schedule as "always now" per §4.4).
func WithSchedule(s *schedule.Schedule) Option {
	return func(b *base) { b.sched = s }
}

// WithOverlap sets ExecutionsCanOverlap. Default is false.
func WithOverlap(allowed bool) Option {
	return func(b *base) { b.overlap = allowed }
}

// WithRetryPolicy attaches a retry policy. Omitting it uses retrypolicy.Noop.
func WithRetryPolicy(p retrypolicy.Policy) Option {
	return func(b *base) { b.retry = p }
}

// Action is the callable an Action-backed definition invokes on every
// attempt.
type Action func(ex *execution.Execution, services serviceprovider.Provider, ctx context.Context) error

// ActionDefinition invokes a user-supplied callable per attempt.
type ActionDefinition struct {
	base
	action Action
}

// NewAction builds an Action-backed definition.
func NewAction(id, name string, action Action, opts ...Option) *ActionDefinition {
	d := &ActionDefinition{base: base{id: id, name: name}, action: action}
	for _, opt := range opts {
		opt(&d.base)
	}
	return d
}

func (d *ActionDefinition) Execute(ex *execution.Execution, services serviceprovider.Provider, ctx context.Context) error {
	return d.policy().Execute(ctx, d.bag(ex), func(ctx context.Context) error {
		return d.action(ex, services, ctx)
	})
}

// Runner is a disposable unit of work constructed fresh for every attempt
// of a Task-backed definition.
type Runner interface {
	Run(ctx context.Context, ex *execution.Execution) error
}

// Releasable is implemented by runners that hold resources needing
// explicit release once an attempt finishes, regardless of outcome.
type Releasable interface {
	Release()
}

// TaskDefinition constructs a fresh Runner per attempt: via the service
// provider's constructor-injection when one is supplied and ServiceName
// resolves, falling back to New directly otherwise.
type TaskDefinition struct {
	base
	// ServiceName is the name this definition's runner is registered
	// under in the service provider, if any.
	ServiceName string
	// New constructs a runner directly. Required when ServiceName is
	// empty or does not resolve via the provided services.
	New func() Runner
}

// NewTask builds a Task-backed definition around a runner factory.
func NewTask(id, name string, newRunner func() Runner, opts ...Option) *TaskDefinition {
	d := &TaskDefinition{base: base{id: id, name: name}, New: newRunner}
	for _, opt := range opts {
		opt(&d.base)
	}
	return d
}

var errNoRunnerFactory = errors.New("definition: task-backed definition has no runner factory and no resolvable service")

func (d *TaskDefinition) Execute(ex *execution.Execution, services serviceprovider.Provider, ctx context.Context) error {
	return d.policy().Execute(ctx, d.bag(ex), func(ctx context.Context) error {
		var scope serviceprovider.Scope
		if services != nil {
			s, err := services.CreateScope()
			if err != nil {
				return err
			}
			scope = s
			defer func() { _ = scope.Close() }()
		}

		runner, err := d.newRunner(scope)
		if err != nil {
			return err
		}
		defer releaseIfReleasable(runner)

		return runner.Run(ctx, ex)
	})
}

func (d *TaskDefinition) newRunner(scope serviceprovider.Provider) (Runner, error) {
	if scope != nil && d.ServiceName != "" {
		if v, ok := scope.Resolve(d.ServiceName); ok {
			if r, ok := v.(Runner); ok {
				return r, nil
			}
		}
	}
	if d.New == nil {
		return nil, errNoRunnerFactory
	}
	return d.New(), nil
}

func releaseIfReleasable(r Runner) {
	if rel, ok := r.(Releasable); ok {
		rel.Release()
	}
}
