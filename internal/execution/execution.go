// Package execution implements the JobExecution state machine: a single,
// never-repeated attempt to run a JobDefinition.
package execution

import (
	"context"
	"sync"
	"time"

	"github.com/loykin/jobsched/internal/clock"
)

// Execution is one concrete run of a definition. It is created only by the
// scheduler, never re-run, and never mutated once FinishTime is set.
//
//	[created] --start--> RUNNING --success--> FINISHED_OK
//	                        \--failure--> FINISHED_ERR
//	                        \--cancel---> FINISHED_ERR (Error = context.Canceled
//	                                      unless the body returned its own error)
//
// All transitions are one-way.
type Execution struct {
	mu sync.RWMutex

	id             string
	definitionID   string
	definitionName string

	startTime time.Time

	finished   bool
	finishTime time.Time
	err        error

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs an execution linked to parent's cancellation and records
// startTime (captured by the scheduler from its Clock before this call, so
// it can be reused as the reference for Schedule.SetLastRunTime).
func New(id, definitionID, definitionName string, parent context.Context, startTime time.Time) *Execution {
	ctx, cancel := context.WithCancel(parent)
	return &Execution{
		id:             id,
		definitionID:   definitionID,
		definitionName: definitionName,
		startTime:      startTime,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// ID returns the execution's unique identifier.
func (e *Execution) ID() string { return e.id }

// DefinitionID returns the id of the definition this execution belongs to.
func (e *Execution) DefinitionID() string { return e.definitionID }

// DefinitionName returns the human name of the owning definition.
func (e *Execution) DefinitionName() string { return e.definitionName }

// StartTime returns the instant this execution began.
func (e *Execution) StartTime() time.Time { return e.startTime }

// Context returns the cancellation-bearing context passed to user code.
// It is cancelled when the scheduler's root is cancelled, or when Cancel
// is called directly on this execution.
func (e *Execution) Context() context.Context { return e.ctx }

// Cancel cancels only this execution; sibling executions are unaffected.
func (e *Execution) Cancel() { e.cancel() }

// Running reports whether FinishTime is still unset.
func (e *Execution) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.finished
}

// FinishTime returns the completion instant, and whether the execution has
// finished.
func (e *Execution) FinishTime() (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finishTime, e.finished
}

// Success reports whether the execution finished without error. It is
// undefined (and returns false) while the execution is still running.
func (e *Execution) Success() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finished && e.err == nil
}

// Err returns the terminal error, if any. It is only meaningful once the
// execution has finished.
func (e *Execution) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Duration returns FinishTime-StartTime and whether the execution has
// finished.
func (e *Execution) Duration() (time.Duration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.finished {
		return 0, false
	}
	return e.finishTime.Sub(e.startTime), true
}

// Run invokes body with this execution's context and records the terminal
// state once body returns. It blocks until body returns, so callers launch
// it in their own goroutine to get the independent-concurrent-execution
// semantics the scheduler requires.
func (e *Execution) Run(clk clock.Clock, body func(ctx context.Context) error) {
	err := body(e.ctx)
	if err == nil && e.ctx.Err() != nil {
		// Cancelled mid-run: the run still ends in FINISHED_ERR even when
		// the body ignored cancellation and returned nil.
		err = e.ctx.Err()
	}

	e.mu.Lock()
	e.finishTime = clk.Now()
	e.finished = true
	e.err = err
	e.mu.Unlock()

	// Release the derived context's resources now that the body has
	// returned; this is a no-op if the root was already cancelled.
	e.cancel()
}
